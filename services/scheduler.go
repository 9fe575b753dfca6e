package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/models"
)

// RetryPolicy caps deletion-job attempts and seeds the exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// DefaultRetryPolicy matches the queue settings deletion jobs have always
// run with: five attempts, exponential backoff starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BackoffBase: time.Second}
}

// NextDelay returns the backoff before the given retry. attempt is the
// number of attempts already made (>= 1).
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BackoffBase << (attempt - 1)
}

// Scheduler enqueues delayed, retryable deletion jobs. At most one pending
// job exists per idempotency key; the unique index on the key enforces it,
// not application-level locking.
type Scheduler struct {
	jobs   JobStore
	policy RetryPolicy
}

func NewScheduler(jobs JobStore, policy RetryPolicy) *Scheduler {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Scheduler{jobs: jobs, policy: policy}
}

func (s *Scheduler) Policy() RetryPolicy { return s.policy }

// Schedule enqueues a job to run after delay. Re-scheduling a target whose
// job is still queued is a successful no-op.
func (s *Scheduler) Schedule(ctx context.Context, kind models.JobKind, targetID primitive.ObjectID, delay time.Duration) error {
	now := time.Now().UTC()
	job := &models.DeletionJob{
		ID:             primitive.NewObjectID(),
		Kind:           kind,
		TargetID:       targetID,
		IdempotencyKey: models.JobIdempotencyKey(kind, targetID),
		Status:         models.JobStatusPending,
		RunAt:          now.Add(delay),
		MaxAttempts:    s.policy.MaxAttempts,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.jobs.Insert(ctx, job); err != nil {
		if errors.Is(err, ErrJobExists) {
			return nil
		}
		return fmt.Errorf("failed to schedule %s job for %s: %w", kind, targetID.Hex(), err)
	}
	return nil
}

// Cancel removes a queued job for the target, if any. Used by restore before
// the restore window elapses.
func (s *Scheduler) Cancel(ctx context.Context, kind models.JobKind, targetID primitive.ObjectID) error {
	return s.jobs.DeleteByKey(ctx, models.JobIdempotencyKey(kind, targetID))
}
