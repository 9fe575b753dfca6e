package services

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/models"
)

// In-memory store implementations backing the service tests.

type fakeTreeStore struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.TreeItem
}

func newFakeTreeStore() *fakeTreeStore {
	return &fakeTreeStore{items: make(map[primitive.ObjectID]*models.TreeItem)}
}

func (s *fakeTreeStore) Insert(_ context.Context, item *models.TreeItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.IsRoot {
		for _, existing := range s.items {
			if existing.IsRoot && existing.Owner.Equal(item.Owner) {
				return fmt.Errorf("duplicate root for owner %s", item.Owner.ID.Hex())
			}
		}
	}
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *fakeTreeStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.TreeItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *fakeTreeStore) FindRoot(_ context.Context, owner models.Owner) (*models.TreeItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.IsRoot && item.Owner.Equal(owner) {
			cp := *item
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeTreeStore) FindChildren(_ context.Context, parentID primitive.ObjectID) ([]models.TreeItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var children []models.TreeItem
	for _, item := range s.items {
		if item.ParentID != nil && *item.ParentID == parentID {
			children = append(children, *item)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}

func (s *fakeTreeStore) FindByContentRef(_ context.Context, recordID primitive.ObjectID) ([]models.TreeItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var linked []models.TreeItem
	for _, item := range s.items {
		if item.ContentRef != nil && *item.ContentRef == recordID {
			linked = append(linked, *item)
		}
	}
	return linked, nil
}

func (s *fakeTreeStore) FindDeletedByOwner(_ context.Context, owner models.Owner, limit, offset int64) ([]models.TreeItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted []models.TreeItem
	for _, item := range s.items {
		if item.IsDeleted && item.Owner.Equal(owner) {
			deleted = append(deleted, *item)
		}
	}
	sort.Slice(deleted, func(i, j int) bool {
		ti, tj := time.Time{}, time.Time{}
		if deleted[i].DeletedAt != nil {
			ti = *deleted[i].DeletedAt
		}
		if deleted[j].DeletedAt != nil {
			tj = *deleted[j].DeletedAt
		}
		return ti.After(tj)
	})
	if offset >= int64(len(deleted)) {
		return nil, nil
	}
	deleted = deleted[offset:]
	if limit > 0 && int64(len(deleted)) > limit {
		deleted = deleted[:limit]
	}
	return deleted, nil
}

func (s *fakeTreeStore) UpdateName(_ context.Context, ids []primitive.ObjectID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			item.Name = name
		}
	}
	return nil
}

func (s *fakeTreeStore) UpdateParent(_ context.Context, id, parentID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	item.ParentID = &parentID
	return nil
}

func (s *fakeTreeStore) SetDeleted(_ context.Context, ids []primitive.ObjectID, deleted bool, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			item.IsDeleted = deleted
			item.DeletedAt = at
		}
	}
	return nil
}

func (s *fakeTreeStore) Delete(_ context.Context, ids []primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.items, id)
	}
	return nil
}

func (s *fakeTreeStore) DeleteByContentRefs(_ context.Context, recordIDs []primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make(map[primitive.ObjectID]bool, len(recordIDs))
	for _, id := range recordIDs {
		refs[id] = true
	}
	for id, item := range s.items {
		if item.ContentRef != nil && refs[*item.ContentRef] {
			delete(s.items, id)
		}
	}
	return nil
}

func (s *fakeTreeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type fakeRecordStore struct {
	mu      sync.Mutex
	records map[primitive.ObjectID]*models.FileRecord
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: make(map[primitive.ObjectID]*models.FileRecord)}
}

func (s *fakeRecordStore) Insert(_ context.Context, rec *models.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *fakeRecordStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeRecordStore) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []models.FileRecord
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			recs = append(recs, *rec)
		}
	}
	return recs, nil
}

func (s *fakeRecordStore) UpdateName(_ context.Context, id primitive.ObjectID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Name = name
	return nil
}

func (s *fakeRecordStore) UpdateLocator(_ context.Context, id primitive.ObjectID, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.StorageLocator = locator
	return nil
}

func (s *fakeRecordStore) SetDeleted(_ context.Context, ids []primitive.ObjectID, deleted bool, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			rec.IsDeleted = deleted
			rec.DeletedAt = at
		}
	}
	return nil
}

func (s *fakeRecordStore) Delete(_ context.Context, ids []primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *fakeRecordStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[primitive.ObjectID]*models.DeletionJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[primitive.ObjectID]*models.DeletionJob)}
}

func (s *fakeJobStore) Insert(_ context.Context, job *models.DeletionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.IdempotencyKey == job.IdempotencyKey {
			return ErrJobExists
		}
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeJobStore) DeleteByKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if job.IdempotencyKey == key {
			delete(s.jobs, id)
		}
	}
	return nil
}

func (s *fakeJobStore) ClaimDue(_ context.Context, now, leaseUntil time.Time) (*models.DeletionJob, error) {
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

func (s *fakeJobStore) Reschedule(_ context.Context, id primitive.ObjectID, runAt time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.Status = models.JobStatusPending
	job.RunAt = runAt
	job.LastError = lastError
	job.LeaseUntil = nil
	return nil
}

func (s *fakeJobStore) MarkFailed(_ context.Context, id primitive.ObjectID, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.Status = models.JobStatusFailed
	job.LastError = lastError
	job.LeaseUntil = nil
	return nil
}

func (s *fakeJobStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *fakeJobStore) byKey(key string) *models.DeletionJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.IdempotencyKey == key {
			cp := *job
			return &cp
		}
	}
	return nil
}

func (s *fakeJobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// fakeAssetStore records uploads and deletions. batchSizes captures the
// length of each DeleteBatch call so chunking behavior can be asserted.
type fakeAssetStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	batchSizes []int
	failBatch  bool
	failDelete bool
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{objects: make(map[string][]byte)}
}

func (s *fakeAssetStore) Upload(_ context.Context, r io.Reader, destPath, name, mimeType string) (*UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	locator := path.Join(strings.TrimPrefix(destPath, "/"), name)
	s.mu.Lock()
	s.objects[locator] = data
	s.mu.Unlock()

	sum := sha1.Sum(data)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &UploadResult{
		Locator:      locator,
		ResourceKind: "raw",
		MimeType:     mimeType,
		SizeBytes:    int64(len(data)),
		SHA1:         hex.EncodeToString(sum[:]),
	}, nil
}

func (s *fakeAssetStore) Delete(_ context.Context, locator, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		return fmt.Errorf("object storage down")
	}
	delete(s.objects, locator)
	return nil
}

func (s *fakeAssetStore) DeleteBatch(_ context.Context, locators []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBatch {
		return fmt.Errorf("object storage down")
	}
	s.batchSizes = append(s.batchSizes, len(locators))
	for _, locator := range locators {
		delete(s.objects, locator)
	}
	return nil
}

func (s *fakeAssetStore) Rename(_ context.Context, locator, newParentPath, newName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	newLocator := path.Join(strings.TrimPrefix(newParentPath, "/"), newName)
	if data, ok := s.objects[locator]; ok {
		delete(s.objects, locator)
		s.objects[newLocator] = data
	}
	return newLocator, nil
}

func (s *fakeAssetStore) SignedURL(_ context.Context, locator string, _ SignedURLOptions) (string, error) {
	return "https://objects.example.com/" + locator + "?signed=1", nil
}

func (s *fakeAssetStore) has(locator string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[locator]
	return ok
}

func (s *fakeAssetStore) objectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Shared test scaffolding.

type testEnv struct {
	tree    *fakeTreeStore
	records *fakeRecordStore
	jobs    *fakeJobStore
	assets  *fakeAssetStore

	treeService    *TreeService
	deleteService  *DeleteService
	cleanupService *CleanupService
	scheduler      *Scheduler
}

func newTestEnv(restoreWindow time.Duration, batchSize int) *testEnv {
	tree := newFakeTreeStore()
	records := newFakeRecordStore()
	jobsStore := newFakeJobStore()
	assets := newFakeAssetStore()

	scheduler := NewScheduler(jobsStore, DefaultRetryPolicy())
	treeService := NewTreeService(tree, records, assets)

	return &testEnv{
		tree:           tree,
		records:        records,
		jobs:           jobsStore,
		assets:         assets,
		treeService:    treeService,
		deleteService:  NewDeleteService(tree, records, treeService, scheduler, restoreWindow),
		cleanupService: NewCleanupService(tree, records, assets, treeService, batchSize),
		scheduler:      scheduler,
	}
}

func timeNowForTest() time.Time {
	return time.Now().UTC()
}

func userOwner() models.Owner {
	return models.Owner{ID: primitive.NewObjectID(), Kind: models.OwnerKindUser}
}

func tenantOwner() models.Owner {
	return models.Owner{ID: primitive.NewObjectID(), Kind: models.OwnerKindTenant}
}

// addFile uploads content and commits it under parentID.
func (e *testEnv) addFile(ctx context.Context, owner models.Owner, parentID primitive.ObjectID, name, content string) (*models.TreeItem, *models.FileRecord, error) {
	up, err := e.assets.Upload(ctx, bytes.NewReader([]byte(content)), AssetFolderPath(owner, parentID), name, "text/plain")
	if err != nil {
		return nil, nil, err
	}
	return e.treeService.AddFile(ctx, owner, parentID, name, owner.ID, *up, nil)
}
