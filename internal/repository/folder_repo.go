package repository

import (
	"context"

	"livepoll/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FolderRepo handles activity folders
type FolderRepo interface {
	Create(ctx context.Context, f *model.Folder) error
	GetByID(ctx context.Context, id string) (*model.Folder, error)
	List(ctx context.Context, ownerID string, parentID *string) ([]*model.Folder, error)
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

type folderRepo struct {
	collection *mongo.Collection
}

// NewFolderRepo creates a new folder repository
func NewFolderRepo(db *mongo.Database) FolderRepo {
	return &folderRepo{
		collection: db.Collection(foldersCollection),
	}
}

func (r *folderRepo) Create(ctx context.Context, f *model.Folder) error {
	_, err := r.collection.InsertOne(ctx, f)
	return mapWriteError(err)
}

func (r *folderRepo) GetByID(ctx context.Context, id string) (*model.Folder, error) {
	var f model.Folder
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&f)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *folderRepo) List(ctx context.Context, ownerID string, parentID *string) ([]*model.Folder, error) {
	filter := bson.M{"ownerId": ownerID, "parentFolderId": nil}
	if parentID != nil {
		filter["parentFolderId"] = *parentID
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var folders []*model.Folder
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (r *folderRepo) Rename(ctx context.Context, id, name string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"name": name}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *folderRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
