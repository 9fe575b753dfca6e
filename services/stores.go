package services

import (
	"context"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/models"
)

// TreeStore persists the hierarchical namespace. Lookups do not filter on
// the soft-delete flag: cascade re-enumeration after a soft delete depends
// on seeing flagged nodes. Callers that present listings filter themselves.
type TreeStore interface {
	Insert(ctx context.Context, item *models.TreeItem) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.TreeItem, error)
	FindRoot(ctx context.Context, owner models.Owner) (*models.TreeItem, error)
	FindChildren(ctx context.Context, parentID primitive.ObjectID) ([]models.TreeItem, error)
	FindByContentRef(ctx context.Context, recordID primitive.ObjectID) ([]models.TreeItem, error)
	FindDeletedByOwner(ctx context.Context, owner models.Owner, limit, offset int64) ([]models.TreeItem, error)
	UpdateName(ctx context.Context, ids []primitive.ObjectID, name string) error
	UpdateParent(ctx context.Context, id, parentID primitive.ObjectID) error
	SetDeleted(ctx context.Context, ids []primitive.ObjectID, deleted bool, at *time.Time) error
	Delete(ctx context.Context, ids []primitive.ObjectID) error
	DeleteByContentRefs(ctx context.Context, recordIDs []primitive.ObjectID) error
}

// FileRecordStore persists content records.
type FileRecordStore interface {
	Insert(ctx context.Context, rec *models.FileRecord) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.FileRecord, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.FileRecord, error)
	UpdateName(ctx context.Context, id primitive.ObjectID, name string) error
	UpdateLocator(ctx context.Context, id primitive.ObjectID, locator string) error
	SetDeleted(ctx context.Context, ids []primitive.ObjectID, deleted bool, at *time.Time) error
	Delete(ctx context.Context, ids []primitive.ObjectID) error
}

// JobStore is the durable deletion-job queue. Insert returns ErrJobExists
// when a job with the same idempotency key is already queued.
type JobStore interface {
	Insert(ctx context.Context, job *models.DeletionJob) error
	DeleteByKey(ctx context.Context, key string) error
	// ClaimDue atomically claims one due job (pending and past run_at, or
	// running with an expired lease), bumping its attempt counter. Returns
	// (nil, nil) when nothing is due.
	ClaimDue(ctx context.Context, now time.Time, leaseUntil time.Time) (*models.DeletionJob, error)
	Reschedule(ctx context.Context, id primitive.ObjectID, runAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id primitive.ObjectID, lastError string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// UploadResult describes an asset after a successful upload.
type UploadResult struct {
	Locator      string
	ResourceKind string
	MimeType     string
	SizeBytes    int64
	SHA1         string
}

// SignedURLOptions controls delivery-URL generation.
type SignedURLOptions struct {
	ExpiresIn  time.Duration
	Attachment bool
}

// AssetStore wraps the external object storage. DeleteBatch callers chunk
// to the provider limit themselves; missing objects are not errors.
type AssetStore interface {
	Upload(ctx context.Context, r io.Reader, destPath, name, mimeType string) (*UploadResult, error)
	Delete(ctx context.Context, locator, resourceKind string) error
	DeleteBatch(ctx context.Context, locators []string) error
	Rename(ctx context.Context, locator, newParentPath, newName string) (string, error)
	SignedURL(ctx context.Context, locator string, opts SignedURLOptions) (string, error)
}
