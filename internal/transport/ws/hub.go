package ws

import (
	"encoding/json"
	"time"

	"livepoll/internal/logger"
	"livepoll/internal/metrics"

	"github.com/sirupsen/logrus"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Connection-level message types. Domain events use the service event names.
const (
	MsgLiveChanged       MessageType = "live_changed"
	MsgParticipantJoined MessageType = "participant_joined"
	MsgParticipantLeft   MessageType = "participant_left"
	MsgError             MessageType = "error"
)

// Roles of a connection
const (
	RolePresenter   = "presenter"
	RoleParticipant = "participant"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// Hub fans events out to the presenter screens and participant devices of each professor
type Hub struct {
	// professorID -> connections
	presenters   map[string]map[*Connection]struct{}
	participants map[string]map[*Connection]struct{}

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	quit       chan struct{}
}

// Connection represents a WebSocket connection
type Connection struct {
	ProfessorID   string
	ParticipantID string // empty for presenter connections
	Role          string
	Send          chan []byte
}

// BroadcastMessage is a message to broadcast
type BroadcastMessage struct {
	ProfessorID string
	Role        string
	Message     *Message
}

// NewHub creates a new WebSocket hub and starts its loop
func NewHub() *Hub {
	h := &Hub{
		presenters:   make(map[string]map[*Connection]struct{}),
		participants: make(map[string]map[*Connection]struct{}),
		register:     make(chan *Connection),
		unregister:   make(chan *Connection),
		broadcast:    make(chan *BroadcastMessage, 256),
		quit:         make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			return

		case conn := <-h.register:
			h.group(conn.Role)[conn.ProfessorID] = addConn(h.group(conn.Role)[conn.ProfessorID], conn)
			metrics.AddWSConnection(conn.Role, 1)
			logger.L().WithFields(connFields(conn)).Info("websocket connected")
			if conn.Role == RoleParticipant {
				h.deliver(conn.ProfessorID, RolePresenter, newMessage(MsgParticipantJoined, map[string]interface{}{
					"participantId": conn.ParticipantID,
					"count":         len(h.participants[conn.ProfessorID]),
				}))
			}

		case conn := <-h.unregister:
			conns := h.group(conn.Role)[conn.ProfessorID]
			if _, ok := conns[conn]; !ok {
				continue
			}
			delete(conns, conn)
			if len(conns) == 0 {
				delete(h.group(conn.Role), conn.ProfessorID)
			}
			close(conn.Send)
			metrics.AddWSConnection(conn.Role, -1)
			logger.L().WithFields(connFields(conn)).Info("websocket disconnected")
			if conn.Role == RoleParticipant {
				h.deliver(conn.ProfessorID, RolePresenter, newMessage(MsgParticipantLeft, map[string]interface{}{
					"participantId": conn.ParticipantID,
					"count":         len(h.participants[conn.ProfessorID]),
				}))
			}

		case msg := <-h.broadcast:
			h.deliver(msg.ProfessorID, msg.Role, msg.Message)
		}
	}
}

// deliver runs on the hub goroutine only
func (h *Hub) deliver(professorID, role string, msg *Message) {
	if msg == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.L().WithError(err).WithField("type", msg.Type).Error("failed to encode websocket message")
		return
	}
	for conn := range h.group(role)[professorID] {
		select {
		case conn.Send <- data:
		default:
			// slow client, drop
		}
	}
}

func (h *Hub) group(role string) map[string]map[*Connection]struct{} {
	if role == RolePresenter {
		return h.presenters
	}
	return h.participants
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.quit:
	}
}

// Unregister removes a connection and closes its Send channel
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.quit:
	}
}

// Stop ends the hub loop. Open connections are closed by their handlers.
func (h *Hub) Stop() {
	close(h.quit)
}

// BroadcastToPresenter sends a message to every presenter screen of a professor (implements service.Broadcaster)
func (h *Hub) BroadcastToPresenter(professorID string, msgType string, payload interface{}) {
	h.enqueue(professorID, RolePresenter, msgType, payload)
}

// BroadcastToParticipants sends a message to every participant on a professor's page (implements service.Broadcaster)
func (h *Hub) BroadcastToParticipants(professorID string, msgType string, payload interface{}) {
	h.enqueue(professorID, RoleParticipant, msgType, payload)
}

func (h *Hub) enqueue(professorID, role, msgType string, payload interface{}) {
	msg := newMessage(MessageType(msgType), payload)
	if msg == nil {
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{ProfessorID: professorID, Role: role, Message: msg}:
	case <-h.quit:
	}
}

func newMessage(t MessageType, payload interface{}) *Message {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.L().WithError(err).WithField("type", t).Error("failed to encode websocket payload")
		return nil
	}
	return &Message{Type: t, Payload: data, At: time.Now()}
}

func addConn(set map[*Connection]struct{}, conn *Connection) map[*Connection]struct{} {
	if set == nil {
		set = make(map[*Connection]struct{})
	}
	set[conn] = struct{}{}
	return set
}

func connFields(conn *Connection) logrus.Fields {
	return logrus.Fields{
		"professor_id":   conn.ProfessorID,
		"participant_id": conn.ParticipantID,
		"role":           conn.Role,
	}
}
