package repository

import (
	"context"

	"livepoll/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RunRepo handles archived runs and their frozen response sets
type RunRepo interface {
	// Archive creates run and moves every live response of run.ActivityID into it
	// as one atomic unit. It fills StartedAt and ResponseCount and returns the count moved.
	Archive(ctx context.Context, run *model.Run) (int, error)
	GetByID(ctx context.Context, id string) (*model.Run, error)
	ListByActivity(ctx context.Context, activityID string) ([]*model.Run, error)
	Responses(ctx context.Context, runID string) ([]*model.Response, error)
}

type runRepo struct {
	client       *mongo.Client
	runs         *mongo.Collection
	responses    *mongo.Collection
	runResponses *mongo.Collection
}

// NewRunRepo creates a new run repository. Archive needs a replica set for transactions.
func NewRunRepo(db *mongo.Database) RunRepo {
	return &runRepo{
		client:       db.Client(),
		runs:         db.Collection(runsCollection),
		responses:    db.Collection(responsesCollection),
		runResponses: db.Collection(runResponsesCollection),
	}
}

func (r *runRepo) Archive(ctx context.Context, run *model.Run) (int, error) {
	session, err := r.client.StartSession()
	if err != nil {
		return 0, err
	}
	defer session.EndSession(ctx)

	moved, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		cursor, err := r.responses.Find(sc, bson.M{"activityId": run.ActivityID},
			options.Find().SetSort(bson.D{{Key: "submittedAt", Value: 1}}))
		if err != nil {
			return 0, err
		}
		var live []*model.Response
		if err := cursor.All(sc, &live); err != nil {
			return 0, err
		}

		run.ResponseCount = len(live)
		run.StartedAt = run.EndedAt
		if len(live) > 0 {
			run.StartedAt = live[0].SubmittedAt
		}
		if _, err := r.runs.InsertOne(sc, run); err != nil {
			return 0, err
		}
		if len(live) == 0 {
			return 0, nil
		}

		docs := make([]interface{}, len(live))
		ids := make([]string, len(live))
		for i, resp := range live {
			runID := run.ID
			resp.RunID = &runID
			docs[i] = resp
			ids[i] = resp.ID
		}
		if _, err := r.runResponses.InsertMany(sc, docs); err != nil {
			return 0, err
		}
		// Delete exactly what was copied; anything newer stays live.
		if _, err := r.responses.DeleteMany(sc, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
			return 0, err
		}
		return len(live), nil
	})
	if err != nil {
		return 0, err
	}
	return moved.(int), nil
}

func (r *runRepo) GetByID(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run
	err := r.runs.FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *runRepo) ListByActivity(ctx context.Context, activityID string) ([]*model.Run, error) {
	cursor, err := r.runs.Find(ctx, bson.M{"activityId": activityID},
		options.Find().SetSort(bson.D{{Key: "endedAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var runs []*model.Run
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *runRepo) Responses(ctx context.Context, runID string) ([]*model.Response, error) {
	cursor, err := r.runResponses.Find(ctx, bson.M{"runId": runID},
		options.Find().SetSort(bson.D{{Key: "submittedAt", Value: 1}}))
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
