package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"livepoll/internal/apperr"
	"livepoll/internal/logger"
	"livepoll/internal/model"
	"livepoll/internal/service"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub     *Hub
	authSvc *service.AuthService
	liveSvc *service.LiveService
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, authSvc *service.AuthService, liveSvc *service.LiveService) *Handler {
	return &Handler{
		hub:     hub,
		authSvc: authSvc,
		liveSvc: liveSvc,
	}
}

// PresenterWS handles GET /v1/ws/presenter
func (h *Handler) PresenterWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := h.authSvc.ValidateProfessorToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithContext(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}

	conn := &Connection{
		ProfessorID: claims.ProfessorID,
		Role:        RolePresenter,
		Send:        make(chan []byte, 256),
	}
	h.hub.Register(conn)

	ctx, cancel := context.WithCancel(context.Background())
	go h.writePump(ctx, wsConn, conn, nil, "")
	go h.readPump(cancel, wsConn, conn)
}

// ParticipantWS handles GET /v1/ws/p/{handle}. The participant follows the live pointer of that handle.
func (h *Handler) ParticipantWS(w http.ResponseWriter, r *http.Request) {
	handle := strings.ToLower(mux.Vars(r)["handle"])
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := h.authSvc.ValidateParticipantToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if claims.Handle != handle {
		http.Error(w, "token not valid for this page", http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, err := h.liveSvc.Watch(ctx, handle)
	if err != nil {
		cancel()
		appErr := apperr.FromError(err)
		http.Error(w, appErr.Error(), appErr.StatusCode())
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		logger.WithContext(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}

	conn := &Connection{
		ProfessorID:   claims.ProfessorID,
		ParticipantID: claims.ParticipantID,
		Role:          RoleParticipant,
		Send:          make(chan []byte, 256),
	}
	h.hub.Register(conn)

	go h.writePump(ctx, wsConn, conn, events, handle)
	go h.readPump(cancel, wsConn, conn)
}

func (h *Handler) readPump(cancel context.CancelFunc, wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		cancel()
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L().WithFields(connFields(conn)).WithError(err).Warn("websocket read failed")
			}
			return
		}
		// clients only send pongs
	}
}

// writePump owns all writes to wsConn. live is nil for presenters.
func (h *Handler) writePump(ctx context.Context, wsConn *websocket.Conn, conn *Connection, live <-chan model.LiveEvent, handle string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wsConn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case ev, ok := <-live:
			if !ok {
				return
			}
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteJSON(h.liveMessage(ctx, handle, ev)); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// liveChange is the payload of a live_changed message
type liveChange struct {
	ActivityID *string         `json:"activityId"`
	Activity   *model.Activity `json:"activity"`
}

func (h *Handler) liveMessage(ctx context.Context, handle string, ev model.LiveEvent) *Message {
	payload := liveChange{ActivityID: ev.ActivityID}
	if ev.ActivityID != nil {
		a, err := h.liveSvc.CurrentActivity(ctx, handle)
		if err != nil {
			logger.WithContext(ctx).WithError(err).WithField("handle", handle).Warn("failed to load live activity")
		} else if a != nil && a.ID == *ev.ActivityID {
			payload.Activity = a
		}
	}
	msg := newMessage(MsgLiveChanged, payload)
	if msg == nil {
		return &Message{Type: MsgError, At: time.Now()}
	}
	return msg
}
