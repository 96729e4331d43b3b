package service

// Event types pushed over WebSocket
const (
	EventResponseSubmitted = "response_submitted"
	EventResponseUpdated   = "response_updated"
	EventUpvoteChanged     = "upvote_changed"
	EventActivityUpdated   = "activity_updated"
	EventRunArchived       = "run_archived"
	EventSynthesisReady    = "synthesis_ready"
	EventSessionUpdated    = "session_updated"
)

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToPresenter(professorID string, msgType string, payload interface{})
	BroadcastToParticipants(professorID string, msgType string, payload interface{})
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastToPresenter(string, string, interface{})    {}
func (noopBroadcaster) BroadcastToParticipants(string, string, interface{}) {}
