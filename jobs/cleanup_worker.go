package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/models"
	"treevault/services"
)

// CleanupWorker drains the deletion-job queue. Delivery is at-least-once:
// a claimed job whose worker dies is re-claimed after its lease expires, so
// every handler it dispatches to must be idempotent.
type CleanupWorker struct {
	jobs         services.JobStore
	policy       services.RetryPolicy
	pollInterval time.Duration
	lease        time.Duration

	runFolder func(ctx context.Context, targetID primitive.ObjectID) error
	runFile   func(ctx context.Context, targetID primitive.ObjectID) error
}

func NewCleanupWorker(jobs services.JobStore, cleanup *services.CleanupService, policy services.RetryPolicy, pollInterval, lease time.Duration) *CleanupWorker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	w := &CleanupWorker{
		jobs:         jobs,
		policy:       policy,
		pollInterval: pollInterval,
		lease:        lease,
	}
	if cleanup != nil {
		w.runFolder = cleanup.HardDeleteFolder
		w.runFile = cleanup.HardDeleteFile
	}
	return w
}

// Start polls for due jobs until the context is cancelled. Run it in its own
// goroutine.
func (w *CleanupWorker) Start(ctx context.Context) {
	log.Info().Dur("poll_interval", w.pollInterval).Msg("cleanup worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("cleanup worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain claims and runs due jobs until the queue is empty or the context is
// cancelled.
func (w *CleanupWorker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		now := time.Now().UTC()
		job, err := w.jobs.ClaimDue(ctx, now, now.Add(w.lease))
		if err != nil {
			log.Error().Err(err).Msg("failed to claim deletion job")
			return
		}
		if job == nil {
			return
		}
		w.process(ctx, job)
	}
}

func (w *CleanupWorker) process(ctx context.Context, job *models.DeletionJob) {
	logger := log.With().
		Str("job_id", job.ID.Hex()).
		Str("kind", string(job.Kind)).
		Str("target_id", job.TargetID.Hex()).
		Int("attempt", job.Attempts).
		Logger()

	err := w.run(ctx, job)
	if err == nil {
		if err := w.jobs.Delete(ctx, job.ID); err != nil {
			logger.Error().Err(err).Msg("failed to remove completed job")
		}
		return
	}

	if job.Attempts >= job.MaxAttempts {
		logger.Error().Err(err).Msg("deletion job exhausted all attempts")
		if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			logger.Error().Err(markErr).Msg("failed to mark job failed")
		}
		return
	}

	runAt := time.Now().UTC().Add(w.policy.NextDelay(job.Attempts))
	logger.Warn().Err(err).Time("next_run", runAt).Msg("deletion job failed, rescheduling")
	if rescheduleErr := w.jobs.Reschedule(ctx, job.ID, runAt, err.Error()); rescheduleErr != nil {
		logger.Error().Err(rescheduleErr).Msg("failed to reschedule job")
	}
}

func (w *CleanupWorker) run(ctx context.Context, job *models.DeletionJob) error {
	switch job.Kind {
	case models.JobDeleteFolder:
		return w.runFolder(ctx, job.TargetID)
	case models.JobDeleteFile:
		return w.runFile(ctx, job.TargetID)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
