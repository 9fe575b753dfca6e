package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TreeItem is a node in the hierarchical namespace: a folder, a file entry
// pointing at a FileRecord, or a reference link to content owned elsewhere.
type TreeItem struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name        string              `bson:"name" json:"name"`
	IsFolder    bool                `bson:"is_folder" json:"is_folder"`
	ParentID    *primitive.ObjectID `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	Owner       Owner               `bson:"owner" json:"owner"`
	IsRoot      bool                `bson:"is_root" json:"is_root"`
	IsReference bool                `bson:"is_reference" json:"is_reference"`
	ContentRef  *primitive.ObjectID `bson:"content_ref,omitempty" json:"content_ref,omitempty"`
	IsDeleted   bool                `bson:"is_deleted" json:"is_deleted"`
	DeletedAt   *time.Time          `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updated_at"`
}

// Validate enforces the structural invariants that must hold before a node
// is persisted. Parent existence and cycle freedom are checked by the tree
// service, which has store access.
func (t *TreeItem) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := t.Owner.Validate(); err != nil {
		return err
	}
	if t.IsRoot {
		if !t.IsFolder {
			return fmt.Errorf("files cannot serve as root folders")
		}
		if t.ParentID != nil {
			return fmt.Errorf("root folders cannot have a parent")
		}
	} else if t.ParentID == nil {
		return fmt.Errorf("non-root items require a parent")
	}
	if t.IsFolder {
		if t.IsReference {
			return fmt.Errorf("folders cannot be references")
		}
		if t.ContentRef != nil {
			return fmt.Errorf("folders cannot carry a content reference")
		}
	} else if t.ContentRef == nil {
		return fmt.Errorf("file items require a content reference")
	}
	if t.IsReference && t.Owner.Kind == OwnerKindTenant {
		return fmt.Errorf("tenants cannot own reference items")
	}
	return nil
}
