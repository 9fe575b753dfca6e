package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	treeItemsCollection    = "tree_items"
	fileRecordsCollection  = "file_records"
	deletionJobsCollection = "deletion_jobs"
)

// EnsureIndexes creates the indexes the stores rely on. Safe to run on
// every startup; Mongo treats existing definitions as no-ops.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	treeIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		{Keys: bson.D{{Key: "content_ref", Value: 1}}},
		{Keys: bson.D{{Key: "owner.id", Value: 1}, {Key: "owner.kind", Value: 1}, {Key: "is_deleted", Value: 1}}},
		{
			// One root per (owner id, owner kind).
			Keys: bson.D{{Key: "owner.id", Value: 1}, {Key: "owner.kind", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_root": true}),
		},
	}
	if _, err := db.Collection(treeItemsCollection).Indexes().CreateMany(ctx, treeIndexes); err != nil {
		return fmt.Errorf("failed to create tree item indexes: %w", err)
	}

	jobIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "idempotency_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "run_at", Value: 1}}},
	}
	if _, err := db.Collection(deletionJobsCollection).Indexes().CreateMany(ctx, jobIndexes); err != nil {
		return fmt.Errorf("failed to create deletion job indexes: %w", err)
	}

	return nil
}
