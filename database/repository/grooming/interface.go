// File: database/repository/grooming/interface.go
package groomingRepo

import (
	"context"
	"time"

	"pawboard/database"
	"pawboard/models"

	"go.mongodb.org/mongo-driver/mongo"
)

const collectionName = "grooming_bookings"

type GroomingRepository interface {
	GetByWindow(ctx context.Context, from, to time.Time) ([]models.ServiceBooking, error)
	GetByID(ctx context.Context, id string) (*models.ServiceBooking, error)
	Create(ctx context.Context, booking *models.ServiceBooking) (string, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus) (*models.ServiceBooking, error)
	Reschedule(ctx context.Context, id string, start, end time.Time) (*models.ServiceBooking, error)
	Delete(ctx context.Context, id string) error
	EnsureIndexes() error
}

type mongoGroomingRepo struct {
	coll *mongo.Collection
}

// NewMongoGroomingRepo constructs a GroomingRepository on the shared client.
func NewMongoGroomingRepo(dbName string) GroomingRepository {
	db := database.MongoClient.Database(dbName)
	return &mongoGroomingRepo{
		coll: db.Collection(collectionName),
	}
}

// NewGroomingRepoWithCollection is used when the caller owns the collection.
func NewGroomingRepoWithCollection(coll *mongo.Collection) GroomingRepository {
	return &mongoGroomingRepo{coll: coll}
}
