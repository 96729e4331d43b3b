package repository

import (
	"context"
	"time"

	"livepoll/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ResponseRepo handles persistence for the live response set
type ResponseRepo interface {
	// Create inserts r; ErrDuplicate if r.DedupeKey is taken
	Create(ctx context.Context, r *model.Response) error
	GetByID(ctx context.Context, id string) (*model.Response, error)
	UpdateContent(ctx context.Context, id string, content model.ResponseContent, at time.Time) error
	SetStatus(ctx context.Context, id string, status model.ResponseStatus) error
	// ListLive returns the live responses of an activity ordered by submission time
	ListLive(ctx context.Context, activityID string) ([]*model.Response, error)
	ListByParticipant(ctx context.Context, activityID, participantID string) ([]*model.Response, error)
	CountLive(ctx context.Context, activityID string) (int64, error)
	// ToggleUpvote adds or removes participantID in one atomic step. It returns
	// ErrVersionConflict when the document changed underneath and nil, nil when it is gone.
	ToggleUpvote(ctx context.Context, id, participantID string) (*model.Response, error)
}

type responseRepo struct {
	collection *mongo.Collection
}

// NewResponseRepo creates a new response repository
func NewResponseRepo(db *mongo.Database) ResponseRepo {
	return &responseRepo{
		collection: db.Collection(responsesCollection),
	}
}

func (r *responseRepo) Create(ctx context.Context, resp *model.Response) error {
	if resp.UpvoterIDs == nil {
		resp.UpvoterIDs = []string{}
	}
	_, err := r.collection.InsertOne(ctx, resp)
	return mapWriteError(err)
}

func (r *responseRepo) GetByID(ctx context.Context, id string) (*model.Response, error) {
	var resp model.Response
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&resp)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *responseRepo) UpdateContent(ctx context.Context, id string, content model.ResponseContent, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"content": content, "updatedAt": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *responseRepo) SetStatus(ctx context.Context, id string, status model.ResponseStatus) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *responseRepo) ListLive(ctx context.Context, activityID string) ([]*model.Response, error) {
	return r.find(ctx, bson.M{"activityId": activityID})
}

func (r *responseRepo) ListByParticipant(ctx context.Context, activityID, participantID string) ([]*model.Response, error) {
	return r.find(ctx, bson.M{"activityId": activityID, "participantId": participantID})
}

func (r *responseRepo) CountLive(ctx context.Context, activityID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"activityId": activityID})
}

func (r *responseRepo) ToggleUpvote(ctx context.Context, id, participantID string) (*model.Response, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var resp model.Response
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "upvoterIds": bson.M{"$ne": participantID}},
		bson.M{"$addToSet": bson.M{"upvoterIds": participantID}, "$inc": bson.M{"upvotes": 1}},
		opts,
	).Decode(&resp)
	if err == nil {
		return &resp, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "upvoterIds": participantID},
		bson.M{"$pull": bson.M{"upvoterIds": participantID}, "$inc": bson.M{"upvotes": -1}},
		opts,
	).Decode(&resp)
	if err == nil {
		return &resp, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	// Neither branch matched: either the response is gone or the set flipped between the two writes.
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	return nil, ErrVersionConflict
}

func (r *responseRepo) find(ctx context.Context, filter bson.M) ([]*model.Response, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*model.Response
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
