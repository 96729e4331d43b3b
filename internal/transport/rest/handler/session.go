package handler

import (
	"net/http"

	"livepoll/internal/model"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// SessionHandler handles code-addressed sessions
type SessionHandler struct {
	sessionSvc *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionSvc *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// Create handles POST /v1/sessions
//
// @Summary  Create a session with a join code
// @Tags     sessions
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    request body     model.CreateSessionRequest true "Title and ordered activities"
// @Success  201     {object} model.Session
// @Failure  400     {object} apperr.AppError
// @Router   /sessions [post]
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSessionRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	sess, err := h.sessionSvc.Create(r.Context(), middleware.Identity(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// List handles GET /v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessionSvc.List(r.Context(), middleware.Identity(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Get handles GET /v1/sessions/{sessionId}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionSvc.Get(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["sessionId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Update handles PATCH /v1/sessions/{sessionId}
//
// @Summary  Update title, activities, status or analysis of a session
// @Tags     sessions
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    sessionId path     string             true "Session ID"
// @Param    request   body     model.SessionPatch true "Fields to change"
// @Success  200       {object} model.Session
// @Failure  403       {object} apperr.AppError
// @Router   /sessions/{sessionId} [patch]
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.SessionPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.sessionSvc.Update(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["sessionId"], patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Delete handles DELETE /v1/sessions/{sessionId}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionSvc.Delete(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["sessionId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resolve handles GET /v1/s/{code}
//
// @Summary  Look up a session by its join code
// @Tags     participants
// @Produce  json
// @Param    code path     string true "Session code"
// @Success  200  {object} model.SessionView
// @Failure  404  {object} apperr.AppError
// @Router   /s/{code} [get]
func (h *SessionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessionSvc.Resolve(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Join handles POST /v1/s/{code}/join. The token is scoped to the session owner's page.
//
// @Summary  Join an open session by code
// @Tags     participants
// @Produce  json
// @Param    code path     string true "Session code"
// @Success  201  {object} model.SessionJoinResponse
// @Failure  403  {object} apperr.AppError
// @Failure  404  {object} apperr.AppError
// @Router   /s/{code}/join [post]
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	resp, err := h.sessionSvc.Join(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
