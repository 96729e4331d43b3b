package repository

import (
	"context"

	"livepoll/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SynthesisRepo persists the latest synthesis per activity
type SynthesisRepo interface {
	Save(ctx context.Context, s *model.Synthesis) error
	Get(ctx context.Context, activityID string) (*model.Synthesis, error)
}

type synthesisRepo struct {
	collection *mongo.Collection
}

// NewSynthesisRepo creates a new synthesis repository
func NewSynthesisRepo(db *mongo.Database) SynthesisRepo {
	return &synthesisRepo{
		collection: db.Collection(synthesesCollection),
	}
}

func (r *synthesisRepo) Save(ctx context.Context, s *model.Synthesis) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"activityId": s.ActivityID}, s, opts)
	return err
}

func (r *synthesisRepo) Get(ctx context.Context, activityID string) (*model.Synthesis, error) {
	var s model.Synthesis
	err := r.collection.FindOne(ctx, bson.M{"activityId": activityID}).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
