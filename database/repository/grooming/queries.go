// File: database/repository/grooming/queries.go
package groomingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pawboard/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetByWindow returns the bookings starting in [from, to), ordered by start.
func (r *mongoGroomingRepo) GetByWindow(ctx context.Context, from, to time.Time) ([]models.ServiceBooking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"start_at": bson.M{"$gte": from.UTC(), "$lt": to.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_at", Value: 1}, {Key: "id", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grooming bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []models.ServiceBooking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding grooming bookings: %w", err)
	}
	for i := range bookings {
		normalize(&bookings[i])
	}
	return bookings, nil
}

func (r *mongoGroomingRepo) GetByID(ctx context.Context, id string) (*models.ServiceBooking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var booking models.ServiceBooking
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&booking)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("grooming booking %s: %w", id, models.ErrBookingNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grooming booking %s: %w", id, err)
	}
	normalize(&booking)
	return &booking, nil
}
