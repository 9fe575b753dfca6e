package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/models"
)

// maxAncestorWalk bounds parent-chain walks. A well-formed tree reaches its
// root long before this; the cap keeps a corrupted parent pointer from
// looping forever.
const maxAncestorWalk = 4096

// TreeService implements the namespace operations: root provisioning,
// folder/file/reference creation, move, rename and descendant enumeration.
// Deletion lives in DeleteService, irreversible cleanup in CleanupService.
type TreeService struct {
	tree    TreeStore
	records FileRecordStore
	assets  AssetStore
}

func NewTreeService(tree TreeStore, records FileRecordStore, assets AssetStore) *TreeService {
	return &TreeService{tree: tree, records: records, assets: assets}
}

// AssetFolderPath is the object-store prefix for files under a folder.
// Keys use owner and parent ids, not display names, so renames never
// require relabeling a whole subtree.
func AssetFolderPath(owner models.Owner, parentID primitive.ObjectID) string {
	return fmt.Sprintf("owners/%s/%s", owner.ID.Hex(), parentID.Hex())
}

// EnsureRoot returns the owner's root folder, creating it on first use.
// Idempotent; the unique root index resolves concurrent first calls.
func (s *TreeService) EnsureRoot(ctx context.Context, owner models.Owner) (*models.TreeItem, error) {
	if err := owner.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}

	root, err := s.tree.FindRoot(ctx, owner)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to look up root: %w", err)
	}

	now := time.Now().UTC()
	root = &models.TreeItem{
		ID:        primitive.NewObjectID(),
		Name:      "/",
		IsFolder:  true,
		IsRoot:    true,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tree.Insert(ctx, root); err != nil {
		// Lost a race against another request creating the same root.
		if existing, ferr := s.tree.FindRoot(ctx, owner); ferr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create root folder: %w", err)
	}
	return root, nil
}

// CreateFolder creates a folder under parentID, or under the owner's root
// when parentID is nil.
func (s *TreeService) CreateFolder(ctx context.Context, owner models.Owner, name string, parentID *primitive.ObjectID) (*models.TreeItem, error) {
	var parent *models.TreeItem
	var err error

	if parentID == nil {
		parent, err = s.EnsureRoot(ctx, owner)
	} else {
		parent, err = s.ownedFolder(ctx, owner, *parentID)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	folder := &models.TreeItem{
		ID:        primitive.NewObjectID(),
		Name:      name,
		IsFolder:  true,
		ParentID:  &parent.ID,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := folder.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	if err := s.tree.Insert(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return folder, nil
}

// AddFile commits an uploaded asset into the tree: it persists the content
// record and the owning file item under parentID.
func (s *TreeService) AddFile(ctx context.Context, owner models.Owner, parentID primitive.ObjectID, name string, uploadedBy primitive.ObjectID, up UploadResult, tags []string) (*models.TreeItem, *models.FileRecord, error) {
	parent, err := s.ownedFolder(ctx, owner, parentID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	rec := &models.FileRecord{
		ID:             primitive.NewObjectID(),
		Name:           name,
		StorageLocator: up.Locator,
		ResourceKind:   up.ResourceKind,
		MimeType:       up.MimeType,
		SizeBytes:      up.SizeBytes,
		Tags:           tags,
		Owner:          owner,
		UploadedBy:     uploadedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.records.Insert(ctx, rec); err != nil {
		return nil, nil, fmt.Errorf("failed to save file record: %w", err)
	}

	item := &models.TreeItem{
		ID:         primitive.NewObjectID(),
		Name:       name,
		ParentID:   &parent.ID,
		Owner:      owner,
		ContentRef: &rec.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := item.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	if err := s.tree.Insert(ctx, item); err != nil {
		return nil, nil, fmt.Errorf("failed to save file item: %w", err)
	}
	return item, rec, nil
}

// CreateReference links a file owned elsewhere into destFolderID for owner.
// Only files may be referenced, and only user-kind owners may hold them.
func (s *TreeService) CreateReference(ctx context.Context, owner models.Owner, sourceItemID, destFolderID primitive.ObjectID) (*models.TreeItem, error) {
	if owner.Kind == models.OwnerKindTenant {
		return nil, fmt.Errorf("%w: tenants cannot own reference items", ErrInvariantViolation)
	}

	source, err := s.tree.FindByID(ctx, sourceItemID)
	if err != nil {
		return nil, err
	}
	if source.IsFolder {
		return nil, fmt.Errorf("%w: folders cannot be reference-linked", ErrInvariantViolation)
	}

	dest, err := s.ownedFolder(ctx, owner, destFolderID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ref := &models.TreeItem{
		ID:          primitive.NewObjectID(),
		Name:        source.Name,
		ParentID:    &dest.ID,
		Owner:       owner,
		IsReference: true,
		ContentRef:  source.ContentRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	if err := s.tree.Insert(ctx, ref); err != nil {
		return nil, fmt.Errorf("failed to create reference: %w", err)
	}
	return ref, nil
}

// ListChildren returns a folder and its direct, non-deleted children.
func (s *TreeService) ListChildren(ctx context.Context, owner models.Owner, folderID primitive.ObjectID) (*models.TreeItem, []models.TreeItem, error) {
	folder, err := s.ownedFolder(ctx, owner, folderID)
	if err != nil {
		return nil, nil, err
	}

	children, err := s.tree.FindChildren(ctx, folder.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list folder contents: %w", err)
	}
	visible := make([]models.TreeItem, 0, len(children))
	for _, child := range children {
		if !child.IsDeleted {
			visible = append(visible, child)
		}
	}
	return folder, visible, nil
}

// ListDescendants enumerates every node below folderID, breadth first over
// an explicit queue. Soft-deleted nodes are included: cascades re-enumerate
// after flagging. The visited set terminates the walk even if a corrupted
// parent pointer has introduced a cycle.
func (s *TreeService) ListDescendants(ctx context.Context, folderID primitive.ObjectID) (folders, files []models.TreeItem, err error) {
	queue := []primitive.ObjectID{folderID}
	visited := map[primitive.ObjectID]bool{folderID: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := s.tree.FindChildren(ctx, current)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to enumerate children of %s: %w", current.Hex(), err)
		}
		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			if child.IsFolder {
				folders = append(folders, child)
				queue = append(queue, child.ID)
			} else {
				files = append(files, child)
			}
		}
	}
	return folders, files, nil
}

// GetFile fetches a visible file item together with its content record.
// Works for references too; the record is resolved through the content ref.
func (s *TreeService) GetFile(ctx context.Context, owner models.Owner, itemID primitive.ObjectID) (*models.TreeItem, *models.FileRecord, error) {
	item, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item.IsFolder {
		return nil, nil, fmt.Errorf("%w: %s is a folder", ErrInvariantViolation, itemID.Hex())
	}
	if item.IsDeleted {
		return nil, nil, ErrNotFound
	}

	rec, err := s.records.FindByID(ctx, *item.ContentRef)
	if err != nil {
		return nil, nil, err
	}
	return item, rec, nil
}

// Rename updates an item's display name. For owned files the underlying
// asset is relabeled first and the new name is propagated to every item
// sharing the content record, references included, so all links stay
// visually consistent.
func (s *TreeService) Rename(ctx context.Context, owner models.Owner, itemID primitive.ObjectID, newName string) error {
	if newName == "" {
		return fmt.Errorf("%w: name is required", ErrInvariantViolation)
	}

	item, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return err
	}

	if item.IsFolder {
		return s.tree.UpdateName(ctx, []primitive.ObjectID{item.ID}, newName)
	}

	rec, err := s.records.FindByID(ctx, *item.ContentRef)
	if err != nil {
		return err
	}

	if !item.IsReference {
		newLocator, err := s.assets.Rename(ctx, rec.StorageLocator, AssetFolderPath(item.Owner, *item.ParentID), newName)
		if err != nil {
			return fmt.Errorf("%w: asset rename failed: %v", ErrStorageUnavailable, err)
		}
		if err := s.records.UpdateLocator(ctx, rec.ID, newLocator); err != nil {
			return fmt.Errorf("failed to update storage locator: %w", err)
		}
	}

	if err := s.records.UpdateName(ctx, rec.ID, newName); err != nil {
		return fmt.Errorf("failed to rename file record: %w", err)
	}

	linked, err := s.tree.FindByContentRef(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to find linked items: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(linked))
	for _, l := range linked {
		ids = append(ids, l.ID)
	}
	return s.tree.UpdateName(ctx, ids, newName)
}

// Move re-parents an item under destFolderID. The destination must be a
// folder; moving a folder into its own subtree is rejected. Owned files get
// their asset relocated to the destination's path first.
func (s *TreeService) Move(ctx context.Context, owner models.Owner, itemID, destFolderID primitive.ObjectID) error {
	item, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return err
	}
	if item.IsRoot {
		return fmt.Errorf("%w: root folders cannot be moved", ErrInvariantViolation)
	}

	dest, err := s.tree.FindByID(ctx, destFolderID)
	if err != nil {
		return err
	}
	if !dest.IsFolder {
		return fmt.Errorf("%w: destination is not a folder", ErrInvariantViolation)
	}

	if item.IsFolder {
		if err := s.checkNotDescendant(ctx, item.ID, dest); err != nil {
			return err
		}
	}

	if !item.IsFolder && !item.IsReference {
		rec, err := s.records.FindByID(ctx, *item.ContentRef)
		if err != nil {
			return err
		}
		newLocator, err := s.assets.Rename(ctx, rec.StorageLocator, AssetFolderPath(item.Owner, dest.ID), item.Name)
		if err != nil {
			return fmt.Errorf("%w: asset relocation failed: %v", ErrStorageUnavailable, err)
		}
		if err := s.records.UpdateLocator(ctx, rec.ID, newLocator); err != nil {
			return fmt.Errorf("failed to update storage locator: %w", err)
		}
	}

	if err := s.tree.UpdateParent(ctx, item.ID, dest.ID); err != nil {
		return fmt.Errorf("failed to move item: %w", err)
	}
	return nil
}

// checkNotDescendant walks dest's parent chain and rejects the move when it
// passes through the folder being moved.
func (s *TreeService) checkNotDescendant(ctx context.Context, movedID primitive.ObjectID, dest *models.TreeItem) error {
	current := dest
	for i := 0; i < maxAncestorWalk; i++ {
		if current.ID == movedID {
			return fmt.Errorf("%w: cannot move a folder into its own subtree", ErrInvariantViolation)
		}
		if current.ParentID == nil {
			return nil
		}
		parent, err := s.tree.FindByID(ctx, *current.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return fmt.Errorf("failed to walk ancestor chain: %w", err)
		}
		current = parent
	}
	return fmt.Errorf("%w: ancestor chain exceeds %d levels", ErrInvariantViolation, maxAncestorWalk)
}

// ownedItem fetches an item and verifies ownership. Items belonging to a
// different owner surface as not found, not as a permission error.
func (s *TreeService) ownedItem(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.TreeItem, error) {
	item, err := s.tree.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.Owner.Equal(owner) {
		return nil, ErrNotFound
	}
	return item, nil
}

func (s *TreeService) ownedFolder(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.TreeItem, error) {
	item, err := s.ownedItem(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !item.IsFolder {
		return nil, fmt.Errorf("%w: %s is not a folder", ErrInvariantViolation, id.Hex())
	}
	if item.IsDeleted {
		return nil, ErrNotFound
	}
	return item, nil
}
