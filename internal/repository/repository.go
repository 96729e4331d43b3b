package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned by writes whose target does not exist. Reads return nil, nil instead.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique key is violated
	ErrDuplicate = errors.New("duplicate key")
	// ErrVersionConflict is returned when a conditional write lost a race
	ErrVersionConflict = errors.New("write conflict")
)

// Collection names
const (
	activitiesCollection   = "activities"
	responsesCollection    = "responses"
	runsCollection         = "runs"
	runResponsesCollection = "run_responses"
	profilesCollection     = "profiles"
	foldersCollection      = "folders"
	synthesesCollection    = "syntheses"
	sessionsCollection     = "sessions"
)

// EnsureIndexes creates the indexes the repositories rely on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		activitiesCollection: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "folderId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "folderId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		responsesCollection: {
			{Keys: bson.D{{Key: "dedupeKey", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "activityId", Value: 1}, {Key: "submittedAt", Value: 1}}},
			{Keys: bson.D{{Key: "activityId", Value: 1}, {Key: "participantId", Value: 1}}},
		},
		runsCollection: {
			{Keys: bson.D{{Key: "activityId", Value: 1}, {Key: "endedAt", Value: -1}}},
		},
		runResponsesCollection: {
			{Keys: bson.D{{Key: "runId", Value: 1}, {Key: "submittedAt", Value: 1}}},
		},
		profilesCollection: {
			{Keys: bson.D{{Key: "handle", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		foldersCollection: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "parentFolderId", Value: 1}}},
		},
		synthesesCollection: {
			{Keys: bson.D{{Key: "activityId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		sessionsCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "activityIds", Value: 1}}},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}

func mapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}
