// File: database/repository/grooming/crud.go
package groomingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pawboard/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoGroomingRepo) Create(ctx context.Context, booking *models.ServiceBooking) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	booking.Domain = models.DomainGrooming
	booking.UpdatedAt = time.Now().UTC()
	if _, err := r.coll.InsertOne(ctx, booking); err != nil {
		return "", fmt.Errorf("failed to insert grooming booking: %w", err)
	}
	return booking.ID, nil
}

func (r *mongoGroomingRepo) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) (*models.ServiceBooking, error) {
	return r.update(ctx, id, bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
}

func (r *mongoGroomingRepo) Reschedule(ctx context.Context, id string, start, end time.Time) (*models.ServiceBooking, error) {
	return r.update(ctx, id, bson.M{
		"start_at":   start.UTC(),
		"end_at":     end.UTC(),
		"updated_at": time.Now().UTC(),
	})
}

func (r *mongoGroomingRepo) update(ctx context.Context, id string, set bson.M) (*models.ServiceBooking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var booking models.ServiceBooking
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"id": id}, bson.M{"$set": set}, opts).Decode(&booking)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("grooming booking %s: %w", id, models.ErrBookingNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update grooming booking %s: %w", id, err)
	}
	normalize(&booking)
	return &booking, nil
}

func (r *mongoGroomingRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete grooming booking %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("grooming booking %s: %w", id, models.ErrBookingNotFound)
	}
	return nil
}

// normalize maps legacy status spellings onto the closed set and stamps the
// domain. Unknown statuses are kept as-is so the merge step can reject them.
func normalize(b *models.ServiceBooking) {
	b.Domain = models.DomainGrooming
	if s, err := models.ParseBookingStatus(string(b.Status)); err == nil {
		b.Status = s
	}
}
