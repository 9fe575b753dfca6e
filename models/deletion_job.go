package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobKind selects which hard-delete routine a deletion job dispatches to.
type JobKind string

const (
	JobDeleteFile   JobKind = "delete_file"
	JobDeleteFolder JobKind = "delete_folder"
)

// JobStatus tracks a job through the queue. Completed jobs are removed, so
// only pending, running and failed appear in the collection.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusFailed  JobStatus = "failed"
)

// DeletionJob is a durable, delayed unit of irreversible cleanup work.
// IdempotencyKey is derived from kind and target so re-enqueuing the same
// deletion is a no-op, enforced by a unique index.
type DeletionJob struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind           JobKind            `bson:"kind" json:"kind"`
	TargetID       primitive.ObjectID `bson:"target_id" json:"target_id"`
	IdempotencyKey string             `bson:"idempotency_key" json:"idempotency_key"`
	Status         JobStatus          `bson:"status" json:"status"`
	RunAt          time.Time          `bson:"run_at" json:"run_at"`
	Attempts       int                `bson:"attempts" json:"attempts"`
	MaxAttempts    int                `bson:"max_attempts" json:"max_attempts"`
	LeaseUntil     *time.Time         `bson:"lease_until,omitempty" json:"lease_until,omitempty"`
	LastError      string             `bson:"last_error,omitempty" json:"last_error,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// JobIdempotencyKey derives the stable queue key for a deletion target.
func JobIdempotencyKey(kind JobKind, targetID primitive.ObjectID) string {
	return fmt.Sprintf("%s-%s", kind, targetID.Hex())
}
