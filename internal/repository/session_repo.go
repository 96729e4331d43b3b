package repository

import (
	"context"

	"livepoll/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SessionRepo handles code-addressed sessions
type SessionRepo interface {
	// Create returns ErrDuplicate when the code is taken
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	GetByCode(ctx context.Context, code string) (*model.Session, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Session, error)
	Update(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, id string) error
	// SetAnalysis stores result under activityID on every session of ownerID listing that activity
	SetAnalysis(ctx context.Context, ownerID, activityID string, result *model.SynthesisResult) (int64, error)
}

type sessionRepo struct {
	collection *mongo.Collection
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection(sessionsCollection),
	}
}

func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.collection.InsertOne(ctx, s)
	return mapWriteError(err)
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *sessionRepo) GetByCode(ctx context.Context, code string) (*model.Session, error) {
	return r.findOne(ctx, bson.M{"code": code})
}

func (r *sessionRepo) findOne(ctx context.Context, filter bson.M) (*model.Session, error) {
	var s model.Session
	err := r.collection.FindOne(ctx, filter).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) Update(ctx context.Context, s *model.Session) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": s.ID}, s)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *sessionRepo) SetAnalysis(ctx context.Context, ownerID, activityID string, result *model.SynthesisResult) (int64, error) {
	filter := bson.M{"ownerId": ownerID, "activityIds": activityID}
	update := bson.M{"$set": bson.M{"analysis." + activityID: result}}
	res, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
