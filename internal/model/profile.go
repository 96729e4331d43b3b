package model

import "time"

// ProfessorDefaults are applied to newly created activities
type ProfessorDefaults struct {
	ProfanityFilter *bool `json:"profanityFilter,omitempty" bson:"profanityFilter,omitempty"`
	IsAnonymous     *bool `json:"isAnonymous,omitempty" bson:"isAnonymous,omitempty"`
}

// Profile is a professor record. CurrentActivityID is the live broadcast pointer.
type Profile struct {
	ID                string            `json:"id" bson:"_id"`
	Handle            string            `json:"handle" bson:"handle"`
	Name              string            `json:"name" bson:"name"`
	Email             string            `json:"email" bson:"email"`
	PasswordHash      string            `json:"-" bson:"passwordHash"`
	CurrentActivityID *string           `json:"currentActivityId" bson:"currentActivityId"`
	Defaults          ProfessorDefaults `json:"defaults" bson:"defaults"`
	CreatedAt         time.Time         `json:"createdAt" bson:"createdAt"`
}

// Folder groups activities. Everything inside a folder is visible to anyone listing it.
type Folder struct {
	ID             string    `json:"id" bson:"_id"`
	OwnerID        string    `json:"ownerId" bson:"ownerId"`
	Name           string    `json:"name" bson:"name"`
	ParentFolderID *string   `json:"parentFolderId" bson:"parentFolderId"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}

// LiveEvent is published whenever a professor's live pointer changes
type LiveEvent struct {
	ProfessorID string    `json:"professorId"`
	Handle      string    `json:"handle"`
	ActivityID  *string   `json:"activityId"`
	At          time.Time `json:"at"`
}
