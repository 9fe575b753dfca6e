package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileRecord is an immutable content record, one per uploaded asset. The
// namespace (TreeItem) points at it; exactly one non-reference item owns it,
// any number of reference items may share it.
type FileRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	StorageLocator string             `bson:"storage_locator" json:"storage_locator"`
	ResourceKind   string             `bson:"resource_kind" json:"resource_kind"`
	MimeType       string             `bson:"mime_type" json:"mime_type"`
	SizeBytes      int64              `bson:"size_bytes" json:"size_bytes"`
	Tags           []string           `bson:"tags" json:"tags"`
	Owner          Owner              `bson:"owner" json:"owner"`
	UploadedBy     primitive.ObjectID `bson:"uploaded_by" json:"uploaded_by"`
	IsDeleted      bool               `bson:"is_deleted" json:"is_deleted"`
	DeletedAt      *time.Time         `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}
