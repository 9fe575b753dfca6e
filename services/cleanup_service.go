package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CleanupService performs the irreversible half of deletion, invoked by the
// cleanup worker once a job's restore window has elapsed. Every routine is
// idempotent: targets already gone count as success, so re-delivery of a
// job is harmless.
type CleanupService struct {
	tree        TreeStore
	records     FileRecordStore
	assets      AssetStore
	treeService *TreeService
	batchSize   int
}

func NewCleanupService(tree TreeStore, records FileRecordStore, assets AssetStore, treeService *TreeService, batchSize int) *CleanupService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &CleanupService{
		tree:        tree,
		records:     records,
		assets:      assets,
		treeService: treeService,
		batchSize:   batchSize,
	}
}

// HardDeleteFolder destroys a soft-deleted folder subtree: assets first (in
// provider-sized batches), then file records, then every tree item. The
// subtree is re-enumerated because it may have changed since the soft
// delete. A folder that was restored in the meantime is left untouched.
func (s *CleanupService) HardDeleteFolder(ctx context.Context, folderID primitive.ObjectID) error {
	folder, err := s.tree.FindByID(ctx, folderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Debug().Str("folder_id", folderID.Hex()).Msg("folder already purged")
			return nil
		}
		return fmt.Errorf("failed to load folder: %w", err)
	}
	if !folder.IsDeleted {
		log.Info().Str("folder_id", folderID.Hex()).Msg("folder was restored, skipping hard delete")
		return nil
	}

	folders, files, err := s.treeService.ListDescendants(ctx, folderID)
	if err != nil {
		return err
	}

	ownedRecordIDs := make([]primitive.ObjectID, 0, len(files))
	for _, f := range files {
		if !f.IsReference && f.ContentRef != nil {
			ownedRecordIDs = append(ownedRecordIDs, *f.ContentRef)
		}
	}

	// Records already removed by an earlier, partially-complete run simply
	// drop out of the lookup; the rerun continues where it left off.
	recs, err := s.records.FindByIDs(ctx, ownedRecordIDs)
	if err != nil {
		return fmt.Errorf("failed to load file records: %w", err)
	}
	locators := make([]string, 0, len(recs))
	recordIDs := make([]primitive.ObjectID, 0, len(recs))
	for _, rec := range recs {
		locators = append(locators, rec.StorageLocator)
		recordIDs = append(recordIDs, rec.ID)
	}

	for start := 0; start < len(locators); start += s.batchSize {
		end := start + s.batchSize
		if end > len(locators) {
			end = len(locators)
		}
		if err := s.assets.DeleteBatch(ctx, locators[start:end]); err != nil {
			return fmt.Errorf("%w: batch asset delete failed: %v", ErrStorageUnavailable, err)
		}
	}

	if len(recordIDs) > 0 {
		if err := s.records.Delete(ctx, recordIDs); err != nil {
			return fmt.Errorf("failed to delete file records: %w", err)
		}
		// Links to the destroyed records anywhere in the forest are now
		// dangling; remove them rather than leaving dead references.
		if err := s.tree.DeleteByContentRefs(ctx, recordIDs); err != nil {
			return fmt.Errorf("failed to delete dangling references: %w", err)
		}
	}

	ids := make([]primitive.ObjectID, 0, len(folders)+len(files)+1)
	ids = append(ids, folderID)
	for _, f := range folders {
		ids = append(ids, f.ID)
	}
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	if err := s.tree.Delete(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete tree items: %w", err)
	}

	log.Info().
		Str("folder_id", folderID.Hex()).
		Int("items", len(ids)).
		Int("records", len(recordIDs)).
		Msg("folder permanently deleted")
	return nil
}

// HardDeleteFile destroys a soft-deleted file record, its asset, and every
// tree item pointing at it (the owning item and all references).
func (s *CleanupService) HardDeleteFile(ctx context.Context, recordID primitive.ObjectID) error {
	rec, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Debug().Str("record_id", recordID.Hex()).Msg("file record already purged")
			return nil
		}
		return fmt.Errorf("failed to load file record: %w", err)
	}
	if !rec.IsDeleted {
		log.Info().Str("record_id", recordID.Hex()).Msg("file was restored, skipping hard delete")
		return nil
	}

	if err := s.assets.Delete(ctx, rec.StorageLocator, rec.ResourceKind); err != nil {
		return fmt.Errorf("%w: asset delete failed: %v", ErrStorageUnavailable, err)
	}

	if err := s.records.Delete(ctx, []primitive.ObjectID{rec.ID}); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	if err := s.tree.DeleteByContentRefs(ctx, []primitive.ObjectID{rec.ID}); err != nil {
		return fmt.Errorf("failed to delete linked items: %w", err)
	}

	log.Info().Str("record_id", recordID.Hex()).Str("locator", rec.StorageLocator).Msg("file permanently deleted")
	return nil
}
