package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/models"
	"treevault/services"
)

type memJobStore struct {
	mu   sync.Mutex
	jobs map[primitive.ObjectID]*models.DeletionJob
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[primitive.ObjectID]*models.DeletionJob)}
}

func (s *memJobStore) Insert(_ context.Context, job *models.DeletionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.IdempotencyKey == job.IdempotencyKey {
			return services.ErrJobExists
		}
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memJobStore) DeleteByKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if job.IdempotencyKey == key {
			delete(s.jobs, id)
		}
	}
	return nil
}

func (s *memJobStore) ClaimDue(_ context.Context, now, leaseUntil time.Time) (*models.DeletionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due *models.DeletionJob
	for _, job := range s.jobs {
		runnable := (job.Status == models.JobStatusPending && !job.RunAt.After(now)) ||
			(job.Status == models.JobStatusRunning && job.LeaseUntil != nil && !job.LeaseUntil.After(now))
		if !runnable {
			continue
		}
		if due == nil || job.RunAt.Before(due.RunAt) {
			due = job
		}
	}
	if due == nil {
		return nil, nil
	}
	due.Status = models.JobStatusRunning
	due.LeaseUntil = &leaseUntil
	due.Attempts++
	cp := *due
	return &cp, nil
}

func (s *memJobStore) Reschedule(_ context.Context, id primitive.ObjectID, runAt time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return services.ErrNotFound
	}
	job.Status = models.JobStatusPending
	job.RunAt = runAt
	job.LastError = lastError
	job.LeaseUntil = nil
	return nil
}

func (s *memJobStore) MarkFailed(_ context.Context, id primitive.ObjectID, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return services.ErrNotFound
	}
	job.Status = models.JobStatusFailed
	job.LastError = lastError
	job.LeaseUntil = nil
	return nil
}

func (s *memJobStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *memJobStore) get(id primitive.ObjectID) *models.DeletionJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

func (s *memJobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *memJobStore) put(job *models.DeletionJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
}

// stubCleanup counts handler invocations and fails on demand. The worker
// only needs something to dispatch to; the cleanup routines themselves are
// covered in the services package.
type stubCleanup struct {
	mu          sync.Mutex
	folderCalls []primitive.ObjectID
	fileCalls   []primitive.ObjectID
	failures    int
}

func (s *stubCleanup) folder(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folderCalls = append(s.folderCalls, id)
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("object storage down")
	}
	return nil
}

func (s *stubCleanup) file(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileCalls = append(s.fileCalls, id)
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("object storage down")
	}
	return nil
}

func pendingJob(kind models.JobKind, runAt time.Time, attempts, maxAttempts int) *models.DeletionJob {
	now := time.Now().UTC()
	target := primitive.NewObjectID()
	return &models.DeletionJob{
		ID:             primitive.NewObjectID(),
		Kind:           kind,
		TargetID:       target,
		IdempotencyKey: models.JobIdempotencyKey(kind, target),
		Status:         models.JobStatusPending,
		RunAt:          runAt,
		Attempts:       attempts,
		MaxAttempts:    maxAttempts,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func newTestWorker(store *memJobStore, cleanup *stubCleanup) *CleanupWorker {
	w := NewCleanupWorker(store, nil, services.DefaultRetryPolicy(), time.Second, time.Minute)
	w.runFolder = cleanup.folder
	w.runFile = cleanup.file
	return w
}

func TestWorkerRunsDueJobAndRemovesIt(t *testing.T) {
	store := newMemJobStore()
	cleanup := &stubCleanup{}
	w := newTestWorker(store, cleanup)

	job := pendingJob(models.JobDeleteFolder, time.Now().UTC().Add(-time.Minute), 0, 5)
	store.put(job)

	w.drain(context.Background())

	require.Len(t, cleanup.folderCalls, 1)
	assert.Equal(t, job.TargetID, cleanup.folderCalls[0])
	assert.Equal(t, 0, store.count(), "completed jobs leave the queue")
}

func TestWorkerLeavesFutureJobs(t *testing.T) {
	store := newMemJobStore()
	cleanup := &stubCleanup{}
	w := newTestWorker(store, cleanup)

	store.put(pendingJob(models.JobDeleteFile, time.Now().UTC().Add(time.Hour), 0, 5))

	w.drain(context.Background())

	assert.Empty(t, cleanup.fileCalls)
	assert.Equal(t, 1, store.count())
}

func TestWorkerReschedulesFailureWithBackoff(t *testing.T) {
	store := newMemJobStore()
	cleanup := &stubCleanup{failures: 1}
	w := newTestWorker(store, cleanup)

	job := pendingJob(models.JobDeleteFile, time.Now().UTC().Add(-time.Minute), 0, 5)
	store.put(job)

	before := time.Now().UTC()
	w.drain(context.Background())

	got := store.get(job.ID)
	require.NotNil(t, got)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "object storage down", got.LastError)
	// First retry comes after the base backoff of one second.
	assert.WithinDuration(t, before.Add(time.Second), got.RunAt, 2*time.Second)
}

func TestWorkerBackoffGrowsPerAttempt(t *testing.T) {
	store := newMemJobStore()
	cleanup := &stubCleanup{failures: 3}
	w := newTestWorker(store, cleanup)

	job := pendingJob(models.JobDeleteFile, time.Now().UTC().Add(-time.Minute), 0, 5)
	store.put(job)

	delays := make([]time.Duration, 0, 3)
	for i := 0; i < 3; i++ {
		before := time.Now().UTC()
		w.drain(context.Background())
		got := store.get(job.ID)
		require.NotNil(t, got)
		delays = append(delays, got.RunAt.Sub(before).Round(time.Second))
		// Force the retry due; attempts accrued by the claim are kept.
		require.NoError(t, store.Reschedule(context.Background(), job.ID, time.Now().UTC().Add(-time.Second), got.LastError))
	}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestWorkerMarksExhaustedJobFailed(t *testing.T) {
	store := newMemJobStore()
	cleanup := &stubCleanup{failures: 10}
	w := newTestWorker(store, cleanup)

	// Four attempts already burned; the next failure is the last.
	job := pendingJob(models.JobDeleteFolder, time.Now().UTC().Add(-time.Minute), 4, 5)
	store.put(job)

	w.drain(context.Background())

	got := store.get(job.ID)
	require.NotNil(t, got)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, 5, got.Attempts)

	// Failed jobs are never picked up again.
	w.drain(context.Background())
	require.Len(t, cleanup.folderCalls, 1)
}

func TestWorkerReclaimsExpiredLease(t *testing.T) {
	store := newMemJobStore()
	cleanup := &stubCleanup{}
	w := newTestWorker(store, cleanup)

	job := pendingJob(models.JobDeleteFile, time.Now().UTC().Add(-time.Hour), 0, 5)
	job.Status = models.JobStatusRunning
	expired := time.Now().UTC().Add(-time.Minute)
	job.LeaseUntil = &expired
	store.put(job)

	w.drain(context.Background())

	require.Len(t, cleanup.fileCalls, 1)
	assert.Equal(t, 0, store.count())
}

func TestWorkerRejectsUnknownKind(t *testing.T) {
	store := newMemJobStore()
	cleanup := &stubCleanup{}
	w := newTestWorker(store, cleanup)

	job := pendingJob(models.JobKind("compact_segments"), time.Now().UTC().Add(-time.Minute), 4, 5)
	store.put(job)

	w.drain(context.Background())

	got := store.get(job.ID)
	require.NotNil(t, got)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Empty(t, cleanup.folderCalls)
	assert.Empty(t, cleanup.fileCalls)
}

func TestWorkerDrainsMultipleJobs(t *testing.T) {
	store := newMemJobStore()
	cleanup := &stubCleanup{}
	w := newTestWorker(store, cleanup)

	for i := 0; i < 5; i++ {
		store.put(pendingJob(models.JobDeleteFile, time.Now().UTC().Add(-time.Minute), 0, 5))
	}

	w.drain(context.Background())

	assert.Len(t, cleanup.fileCalls, 5)
	assert.Equal(t, 0, store.count())
}
