package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"treevault/models"
	"treevault/services"
)

// TreeStore is the Mongo-backed namespace store.
type TreeStore struct {
	collection *mongo.Collection
}

func NewTreeStore(db *mongo.Database) *TreeStore {
	return &TreeStore{collection: db.Collection(treeItemsCollection)}
}

func (s *TreeStore) Insert(ctx context.Context, item *models.TreeItem) error {
	_, err := s.collection.InsertOne(ctx, item)
	return err
}

func (s *TreeStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.TreeItem, error) {
	var item models.TreeItem
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if err == mongo.ErrNoDocuments {
		return nil, services.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &item, nil
}

func (s *TreeStore) FindRoot(ctx context.Context, owner models.Owner) (*models.TreeItem, error) {
	var item models.TreeItem
	err := s.collection.FindOne(ctx, bson.M{
		"owner.id":   owner.ID,
		"owner.kind": owner.Kind,
		"is_root":    true,
	}).Decode(&item)
	if err == mongo.ErrNoDocuments {
		return nil, services.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &item, nil
}

func (s *TreeStore) FindChildren(ctx context.Context, parentID primitive.ObjectID) ([]models.TreeItem, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"parent_id": parentID},
		options.Find().SetSort(bson.M{"name": 1}))
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer cursor.Close(ctx)

	var items []models.TreeItem
	if err = cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode children: %w", err)
	}
	return items, nil
}

func (s *TreeStore) FindByContentRef(ctx context.Context, recordID primitive.ObjectID) ([]models.TreeItem, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"content_ref": recordID})
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer cursor.Close(ctx)

	var items []models.TreeItem
	if err = cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode linked items: %w", err)
	}
	return items, nil
}

func (s *TreeStore) FindDeletedByOwner(ctx context.Context, owner models.Owner, limit, offset int64) ([]models.TreeItem, error) {
	findOptions := options.Find().
		SetSort(bson.M{"deleted_at": -1}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := s.collection.Find(ctx, bson.M{
		"owner.id":   owner.ID,
		"owner.kind": owner.Kind,
		"is_deleted": true,
	}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer cursor.Close(ctx)

	var items []models.TreeItem
	if err = cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode trash items: %w", err)
	}
	return items, nil
}

func (s *TreeStore) UpdateName(ctx context.Context, ids []primitive.ObjectID, name string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.collection.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}}, bson.M{
		"$set": bson.M{"name": name, "updated_at": time.Now().UTC()},
	})
	return err
}

func (s *TreeStore) UpdateParent(ctx context.Context, id, parentID primitive.ObjectID) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"parent_id": parentID, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *TreeStore) SetDeleted(ctx context.Context, ids []primitive.ObjectID, deleted bool, at *time.Time) error {
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

func (s *TreeStore) Delete(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return err
}

func (s *TreeStore) DeleteByContentRefs(ctx context.Context, recordIDs []primitive.ObjectID) error {
	if len(recordIDs) == 0 {
		return nil
	}
	_, err := s.collection.DeleteMany(ctx, bson.M{"content_ref": bson.M{"$in": recordIDs}})
	return err
}
