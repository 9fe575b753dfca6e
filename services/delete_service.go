package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/models"
)

// DeleteResult reports how a delete was carried out.
type DeleteResult struct {
	PermanentlyDeleted bool `json:"permanently_deleted"`
	// ItemsAffected counts tree items removed or flagged, the target included.
	ItemsAffected int `json:"items_affected"`
}

// TrashEntry is a soft-deleted item together with its purge deadline.
type TrashEntry struct {
	Item        models.TreeItem `json:"item"`
	AutoPurgeAt time.Time       `json:"auto_purge_at"`
}

// DeleteService implements soft deletion with a restore window. Content is
// only flagged here; the scheduled deletion job performs the irreversible
// work after the window elapses (see CleanupService).
type DeleteService struct {
	tree          TreeStore
	records       FileRecordStore
	treeService   *TreeService
	scheduler     *Scheduler
	restoreWindow time.Duration
}

func NewDeleteService(tree TreeStore, records FileRecordStore, treeService *TreeService, scheduler *Scheduler, restoreWindow time.Duration) *DeleteService {
	return &DeleteService{
		tree:          tree,
		records:       records,
		treeService:   treeService,
		scheduler:     scheduler,
		restoreWindow: restoreWindow,
	}
}

// DeleteFolder removes a folder subtree. Empty folders and user-owned
// subtrees holding only references are destroyed immediately; they own no
// content worth a restore window. Everything else is soft-deleted and a
// DeleteFolder job is scheduled for after the window.
func (s *DeleteService) DeleteFolder(ctx context.Context, owner models.Owner, folderID primitive.ObjectID) (*DeleteResult, error) {
	folder, err := s.treeService.ownedFolder(ctx, owner, folderID)
	if err != nil {
		return nil, err
	}
	if folder.IsRoot {
		return nil, fmt.Errorf("%w: root folders cannot be deleted", ErrInvariantViolation)
	}

	folders, files, err := s.treeService.ListDescendants(ctx, folder.ID)
	if err != nil {
		return nil, err
	}

	if len(folders) == 0 && len(files) == 0 {
		if err := s.tree.Delete(ctx, []primitive.ObjectID{folder.ID}); err != nil {
			return nil, fmt.Errorf("failed to delete empty folder: %w", err)
		}
		return &DeleteResult{PermanentlyDeleted: true, ItemsAffected: 1}, nil
	}

	allIDs := make([]primitive.ObjectID, 0, len(folders)+len(files)+1)
	allIDs = append(allIDs, folder.ID)
	for _, f := range folders {
		allIDs = append(allIDs, f.ID)
	}
	ownedRecordIDs := make([]primitive.ObjectID, 0, len(files))
	referencesOnly := true
	for _, f := range files {
		allIDs = append(allIDs, f.ID)
		if !f.IsReference {
			referencesOnly = false
			if f.ContentRef != nil {
				ownedRecordIDs = append(ownedRecordIDs, *f.ContentRef)
			}
		}
	}

	// A personal subtree of pure references owns nothing recoverable.
	if owner.Kind == models.OwnerKindUser && referencesOnly {
		if err := s.tree.Delete(ctx, allIDs); err != nil {
			return nil, fmt.Errorf("failed to delete reference subtree: %w", err)
		}
		return &DeleteResult{PermanentlyDeleted: true, ItemsAffected: len(allIDs)}, nil
	}

	now := time.Now().UTC()
	if err := s.tree.SetDeleted(ctx, allIDs, true, &now); err != nil {
		return nil, fmt.Errorf("failed to soft-delete subtree: %w", err)
	}
	if len(ownedRecordIDs) > 0 {
		if err := s.records.SetDeleted(ctx, ownedRecordIDs, true, &now); err != nil {
			return nil, fmt.Errorf("failed to soft-delete file records: %w", err)
		}
	}
	if err := s.scheduler.Schedule(ctx, models.JobDeleteFolder, folder.ID, s.restoreWindow); err != nil {
		return nil, err
	}

	log.Info().
		Str("folder_id", folder.ID.Hex()).
		Int("items", len(allIDs)).
		Dur("restore_window", s.restoreWindow).
		Msg("folder moved to trash")
	return &DeleteResult{PermanentlyDeleted: false, ItemsAffected: len(allIDs)}, nil
}

// DeleteFile removes a file item. References are destroyed immediately;
// they never touch the content. Owned files are soft-deleted with their
// record, and a DeleteFile job keyed by the record id is scheduled.
func (s *DeleteService) DeleteFile(ctx context.Context, owner models.Owner, itemID primitive.ObjectID) (*DeleteResult, error) {
	item, err := s.treeService.ownedItem(ctx, owner, itemID)
	if err != nil {
		return nil, err
	}
	if item.IsFolder {
		return nil, fmt.Errorf("%w: %s is a folder", ErrInvariantViolation, itemID.Hex())
	}

	if item.IsReference {
		if err := s.tree.Delete(ctx, []primitive.ObjectID{item.ID}); err != nil {
			return nil, fmt.Errorf("failed to delete reference: %w", err)
		}
		return &DeleteResult{PermanentlyDeleted: true, ItemsAffected: 1}, nil
	}

	now := time.Now().UTC()
	recordID := *item.ContentRef
	if err := s.records.SetDeleted(ctx, []primitive.ObjectID{recordID}, true, &now); err != nil {
		return nil, fmt.Errorf("failed to soft-delete file record: %w", err)
	}
	if err := s.tree.SetDeleted(ctx, []primitive.ObjectID{item.ID}, true, &now); err != nil {
		return nil, fmt.Errorf("failed to soft-delete file item: %w", err)
	}
	if err := s.scheduler.Schedule(ctx, models.JobDeleteFile, recordID, s.restoreWindow); err != nil {
		return nil, err
	}

	log.Info().
		Str("item_id", item.ID.Hex()).
		Str("record_id", recordID.Hex()).
		Dur("restore_window", s.restoreWindow).
		Msg("file moved to trash")
	return &DeleteResult{PermanentlyDeleted: false, ItemsAffected: 1}, nil
}

// Restore undoes a soft delete before the restore window elapses. The
// pending deletion job is cancelled by its idempotency key; the cleanup
// routines additionally re-check the deleted flag before destroying
// anything, so a restore that lands while a job is in flight still wins.
func (s *DeleteService) Restore(ctx context.Context, owner models.Owner, itemID primitive.ObjectID) error {
	item, err := s.treeService.ownedItem(ctx, owner, itemID)
	if err != nil {
		return err
	}
	if !item.IsDeleted {
		return fmt.Errorf("%w: item is not in trash", ErrInvariantViolation)
	}
	if item.DeletedAt != nil && time.Since(*item.DeletedAt) > s.restoreWindow {
		return fmt.Errorf("%w: restore window has passed", ErrInvariantViolation)
	}

	if item.IsFolder {
		return s.restoreFolder(ctx, item)
	}
	if item.IsReference {
		return s.restoreReference(ctx, item)
	}
	return s.restoreFile(ctx, item)
}

// restoreReference revives only the link itself. The referenced record, its
// deletion job and the owning item belong to the content owner; restoring a
// reference must never reach across into their trash.
func (s *DeleteService) restoreReference(ctx context.Context, item *models.TreeItem) error {
	if err := s.tree.SetDeleted(ctx, []primitive.ObjectID{item.ID}, false, nil); err != nil {
		return fmt.Errorf("failed to restore reference: %w", err)
	}
	log.Info().Str("item_id", item.ID.Hex()).Msg("reference restored from trash")
	return nil
}

func (s *DeleteService) restoreFolder(ctx context.Context, folder *models.TreeItem) error {
	if err := s.scheduler.Cancel(ctx, models.JobDeleteFolder, folder.ID); err != nil {
		return fmt.Errorf("failed to cancel deletion job: %w", err)
	}

	folders, files, err := s.treeService.ListDescendants(ctx, folder.ID)
	if err != nil {
		return err
	}

	ids := []primitive.ObjectID{folder.ID}
	recordIDs := make([]primitive.ObjectID, 0, len(files))
	for _, f := range folders {
		ids = append(ids, f.ID)
	}
	for _, f := range files {
		ids = append(ids, f.ID)
		if !f.IsReference && f.ContentRef != nil {
			recordIDs = append(recordIDs, *f.ContentRef)
		}
	}

	if err := s.tree.SetDeleted(ctx, ids, false, nil); err != nil {
		return fmt.Errorf("failed to restore subtree: %w", err)
	}
	if len(recordIDs) > 0 {
		if err := s.records.SetDeleted(ctx, recordIDs, false, nil); err != nil {
			return fmt.Errorf("failed to restore file records: %w", err)
		}
	}
	log.Info().Str("folder_id", folder.ID.Hex()).Int("items", len(ids)).Msg("folder restored from trash")
	return nil
}

func (s *DeleteService) restoreFile(ctx context.Context, item *models.TreeItem) error {
	recordID := *item.ContentRef
	if err := s.scheduler.Cancel(ctx, models.JobDeleteFile, recordID); err != nil {
		return fmt.Errorf("failed to cancel deletion job: %w", err)
	}

	if err := s.records.SetDeleted(ctx, []primitive.ObjectID{recordID}, false, nil); err != nil {
		return fmt.Errorf("failed to restore file record: %w", err)
	}

	// Bring back every link to the record, references included.
	linked, err := s.tree.FindByContentRef(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to find linked items: %w", err)
	}
	ids := []primitive.ObjectID{item.ID}
	for _, l := range linked {
		if l.ID != item.ID && l.IsDeleted {
			ids = append(ids, l.ID)
		}
	}
	if err := s.tree.SetDeleted(ctx, ids, false, nil); err != nil {
		return fmt.Errorf("failed to restore file item: %w", err)
	}
	log.Info().Str("item_id", item.ID.Hex()).Msg("file restored from trash")
	return nil
}

// ListTrash returns the owner's soft-deleted items with purge deadlines.
func (s *DeleteService) ListTrash(ctx context.Context, owner models.Owner, limit, offset int64) ([]TrashEntry, error) {
	items, err := s.tree.FindDeletedByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list trash: %w", err)
	}
	entries := make([]TrashEntry, 0, len(items))
	for _, item := range items {
		entry := TrashEntry{Item: item}
		if item.DeletedAt != nil {
			entry.AutoPurgeAt = item.DeletedAt.Add(s.restoreWindow)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
