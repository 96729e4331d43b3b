package repository

import (
	"context"
	"iter"
	"time"

	"livepoll/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ActivityFilter selects a listing. A nil FolderID lists OwnerID's root activities;
// a non-nil FolderID lists everything in that folder regardless of owner.
type ActivityFilter struct {
	OwnerID  string
	FolderID *string
}

// ActivityRepo handles persistence for activities
type ActivityRepo interface {
	Create(ctx context.Context, a *model.Activity) error
	GetByID(ctx context.Context, id string) (*model.Activity, error)
	// Update replaces a only if its stored revision equals expectedRevision and its status is unchanged
	Update(ctx context.Context, a *model.Activity, expectedRevision int64) error
	// TransitionStatus moves id from one status to another; false if the stored status was not from
	TransitionStatus(ctx context.Context, id string, from, to model.ActivityStatus) (bool, error)
	// List lazily yields non-trashed activities, newest first
	List(ctx context.Context, filter ActivityFilter) iter.Seq2[*model.Activity, error]
	CountInFolder(ctx context.Context, folderID string) (int64, error)
}

type activityRepo struct {
	collection *mongo.Collection
}

// NewActivityRepo creates a new activity repository
func NewActivityRepo(db *mongo.Database) ActivityRepo {
	return &activityRepo{
		collection: db.Collection(activitiesCollection),
	}
}

func (r *activityRepo) Create(ctx context.Context, a *model.Activity) error {
	_, err := r.collection.InsertOne(ctx, a)
	return mapWriteError(err)
}

func (r *activityRepo) GetByID(ctx context.Context, id string) (*model.Activity, error) {
	var a model.Activity
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *activityRepo) Update(ctx context.Context, a *model.Activity, expectedRevision int64) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": a.ID, "revision": expectedRevision, "status": a.Status}, a)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": a.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *activityRepo) TransitionStatus(ctx context.Context, id string, from, to model.ActivityStatus) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *activityRepo) List(ctx context.Context, filter ActivityFilter) iter.Seq2[*model.Activity, error] {
	q := bson.M{"status": bson.M{"$ne": model.StatusTrash}}
	if filter.FolderID == nil {
		q["ownerId"] = filter.OwnerID
		q["folderId"] = nil
	} else {
		q["folderId"] = *filter.FolderID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	return func(yield func(*model.Activity, error) bool) {
		cursor, err := r.collection.Find(ctx, q, opts)
		if err != nil {
			yield(nil, err)
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var a model.Activity
			if err := cursor.Decode(&a); err != nil {
				yield(nil, err)
				return
			}
			if !yield(&a, nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (r *activityRepo) CountInFolder(ctx context.Context, folderID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"folderId": folderID,
		"status":   bson.M{"$ne": model.StatusTrash},
	})
}
