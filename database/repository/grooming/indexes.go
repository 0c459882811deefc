// FILE: database/repository/grooming/indexes.go
package groomingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the board's queries rely on.
func (r *mongoGroomingRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		// day window scans
		{
			Keys:    bson.D{{Key: "start_at", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetName("start_at_idx"),
		},
		{
			Keys:    bson.D{{Key: "subject_id", Value: 1}, {Key: "start_at", Value: 1}},
			Options: options.Index().SetName("subject_start_idx"),
		},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create grooming indexes: %w", err)
	}
	return nil
}
