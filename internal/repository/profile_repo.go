package repository

import (
	"context"

	"livepoll/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ProfileRepo handles professor profiles, including the live broadcast pointer
type ProfileRepo interface {
	Create(ctx context.Context, p *model.Profile) error
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	GetByHandle(ctx context.Context, handle string) (*model.Profile, error)
	SetCurrentActivity(ctx context.Context, professorID string, activityID *string) error
	// ClearCurrentActivityIf clears the pointer only while it still points at activityID
	ClearCurrentActivityIf(ctx context.Context, professorID, activityID string) (bool, error)
}

type profileRepo struct {
	collection *mongo.Collection
}

// NewProfileRepo creates a new profile repository
func NewProfileRepo(db *mongo.Database) ProfileRepo {
	return &profileRepo{
		collection: db.Collection(profilesCollection),
	}
}

func (r *profileRepo) Create(ctx context.Context, p *model.Profile) error {
	_, err := r.collection.InsertOne(ctx, p)
	return mapWriteError(err)
}

func (r *profileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *profileRepo) GetByHandle(ctx context.Context, handle string) (*model.Profile, error) {
	return r.findOne(ctx, bson.M{"handle": handle})
}

func (r *profileRepo) SetCurrentActivity(ctx context.Context, professorID string, activityID *string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": professorID},
		bson.M{"$set": bson.M{"currentActivityId": activityID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepo) ClearCurrentActivityIf(ctx context.Context, professorID, activityID string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": professorID, "currentActivityId": activityID},
		bson.M{"$set": bson.M{"currentActivityId": nil}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *profileRepo) findOne(ctx context.Context, filter bson.M) (*model.Profile, error) {
	var p model.Profile
	err := r.collection.FindOne(ctx, filter).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
