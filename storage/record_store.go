package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"treevault/models"
	"treevault/services"
)

// FileRecordStore is the Mongo-backed content-record store.
type FileRecordStore struct {
	collection *mongo.Collection
}

func NewFileRecordStore(db *mongo.Database) *FileRecordStore {
	return &FileRecordStore{collection: db.Collection(fileRecordsCollection)}
}

func (s *FileRecordStore) Insert(ctx context.Context, rec *models.FileRecord) error {
	_, err := s.collection.InsertOne(ctx, rec)
	return err
}

func (s *FileRecordStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, services.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &rec, nil
}

func (s *FileRecordStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.FileRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []models.FileRecord
	if err = cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode file records: %w", err)
	}
	return recs, nil
}

func (s *FileRecordStore) UpdateName(ctx context.Context, id primitive.ObjectID, name string) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"name": name, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *FileRecordStore) UpdateLocator(ctx context.Context, id primitive.ObjectID, locator string) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"storage_locator": locator, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *FileRecordStore) SetDeleted(ctx context.Context, ids []primitive.ObjectID, deleted bool, at *time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	set := bson.M{"is_deleted": deleted, "updated_at": time.Now().UTC()}
	if deleted {
		set["deleted_at"] = at
	} else {
		set["deleted_at"] = nil
	}
	_, err := s.collection.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}}, bson.M{"$set": set})
	return err
}

func (s *FileRecordStore) Delete(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return err
}
