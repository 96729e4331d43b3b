package model

import "time"

// SessionStatus gates joining by code. It never marks anything live; the professor's
// live pointer stays the only source of truth for that.
type SessionStatus string

const (
	SessionDraft  SessionStatus = "DRAFT"
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionDraft, SessionOpen, SessionClosed:
		return true
	}
	return false
}

// Session is an ordered list of a professor's activities that participants reach by a short code
type Session struct {
	ID          string                      `json:"id" bson:"_id"`
	Code        string                      `json:"code" bson:"code"`
	Title       string                      `json:"title" bson:"title"`
	OwnerID     string                      `json:"ownerId" bson:"ownerId"`
	Status      SessionStatus               `json:"status" bson:"status"`
	ActivityIDs []string                    `json:"activityIds" bson:"activityIds"`
	Analysis    map[string]*SynthesisResult `json:"analysis,omitempty" bson:"analysis,omitempty"`
	CreatedAt   time.Time                   `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt" bson:"updatedAt"`
}

// HasActivity reports whether activityID is part of the session
func (s *Session) HasActivity(activityID string) bool {
	for _, id := range s.ActivityIDs {
		if id == activityID {
			return true
		}
	}
	return false
}

// SessionMeta is the cached code lookup record
type SessionMeta struct {
	SessionID string        `json:"sessionId"`
	OwnerID   string        `json:"ownerId"`
	Handle    string        `json:"handle"`
	Status    SessionStatus `json:"status"`
}

// SessionView is what a participant sees at a session code
type SessionView struct {
	ID             string        `json:"id"`
	Code           string        `json:"code"`
	Title          string        `json:"title"`
	Status         SessionStatus `json:"status"`
	Handle         string        `json:"handle"`
	LiveActivityID *string       `json:"liveActivityId"`
}

// CreateSessionRequest is the body of POST /v1/sessions
type CreateSessionRequest struct {
	Title       string   `json:"title" validate:"max=200"`
	ActivityIDs []string `json:"activityIds" validate:"max=100"`
}

// SessionPatch updates a session; nil fields are left alone
type SessionPatch struct {
	Title       *string                     `json:"title,omitempty" validate:"omitempty,max=200"`
	ActivityIDs *[]string                   `json:"activityIds,omitempty" validate:"omitempty,max=100"`
	Status      *SessionStatus              `json:"status,omitempty"`
	Analysis    map[string]*SynthesisResult `json:"analysis,omitempty"`
}

// SessionJoinResponse is returned when a participant joins by code
type SessionJoinResponse struct {
	JoinResponse
	Session *SessionView `json:"session"`
}
