package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"treevault/models"
	"treevault/services"
)

// JobStore is the Mongo-backed deletion-job queue. The unique index on
// idempotency_key is what makes scheduling idempotent.
type JobStore struct {
	collection *mongo.Collection
}

func NewJobStore(db *mongo.Database) *JobStore {
	return &JobStore{collection: db.Collection(deletionJobsCollection)}
}

func (s *JobStore) Insert(ctx context.Context, job *models.DeletionJob) error {
	_, err := s.collection.InsertOne(ctx, job)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrJobExists
	}
	return err
}

func (s *JobStore) DeleteByKey(ctx context.Context, key string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"idempotency_key": key})
	return err
}

// ClaimDue atomically takes one runnable job: pending and past run_at, or
// running with an expired lease (a worker died mid-job). Claiming bumps the
// attempt counter and extends the lease, so a crashed attempt still counts
// against max_attempts.
func (s *JobStore) ClaimDue(ctx context.Context, now time.Time, leaseUntil time.Time) (*models.DeletionJob, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"status": models.JobStatusPending, "run_at": bson.M{"$lte": now}},
		bson.M{"status": models.JobStatusRunning, "lease_until": bson.M{"$lte": now}},
	}}
	update := bson.M{
		"$set": bson.M{
			"status":      models.JobStatusRunning,
			"lease_until": leaseUntil,
			"updated_at":  now,
		},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.M{"run_at": 1}).
		SetReturnDocument(options.After)

	var job models.DeletionJob
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) Reschedule(ctx context.Context, id primitive.ObjectID, runAt time.Time, lastError string) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":      models.JobStatusPending,
			"run_at":      runAt,
			"last_error":  lastError,
			"lease_until": nil,
			"updated_at":  time.Now().UTC(),
		},
	})
	return err
}

func (s *JobStore) MarkFailed(ctx context.Context, id primitive.ObjectID, lastError string) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":      models.JobStatusFailed,
			"last_error":  lastError,
			"lease_until": nil,
			"updated_at":  time.Now().UTC(),
		},
	})
	return err
}

func (s *JobStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
