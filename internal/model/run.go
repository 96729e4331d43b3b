package model

import "time"

// RunStatus is the state of an archived batch
type RunStatus string

const (
	RunActive    RunStatus = "ACTIVE"
	RunCompleted RunStatus = "COMPLETED"
)

// Run is an immutable archived batch of responses for one presentation of an activity
type Run struct {
	ID            string    `json:"id" bson:"_id"`
	ActivityID    string    `json:"activityId" bson:"activityId"`
	OwnerID       string    `json:"ownerId" bson:"ownerId"`
	Name          string    `json:"name" bson:"name"`
	Status        RunStatus `json:"status" bson:"status"`
	StartedAt     time.Time `json:"startedAt" bson:"startedAt"`
	EndedAt       time.Time `json:"endedAt" bson:"endedAt"`
	ResponseCount int       `json:"responseCount" bson:"responseCount"`
}
