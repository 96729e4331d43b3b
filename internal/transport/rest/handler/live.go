package handler

import (
	"net/http"

	"livepoll/internal/service"
	"livepoll/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// LiveHandler moves the live broadcast pointer and exposes it to participants
type LiveHandler struct {
	liveSvc *service.LiveService
}

// NewLiveHandler creates a new live handler
func NewLiveHandler(liveSvc *service.LiveService) *LiveHandler {
	return &LiveHandler{liveSvc: liveSvc}
}

// ActivateRequest is the request body for going live
type ActivateRequest struct {
	ActivityID string `json:"activityId" validate:"required"`
}

// Activate handles PUT /v1/live
func (h *LiveHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.liveSvc.Activate(r.Context(), middleware.Identity(r.Context()), req.ActivityID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activityId": req.ActivityID})
}

// Deactivate handles DELETE /v1/live
func (h *LiveHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.liveSvc.Deactivate(r.Context(), middleware.Identity(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Current handles GET /v1/p/{handle}/live. The activity is null when nothing is live.
func (h *LiveHandler) Current(w http.ResponseWriter, r *http.Request) {
	a, err := h.liveSvc.CurrentActivity(r.Context(), mux.Vars(r)["handle"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	var activityID *string
	if a != nil {
		activityID = &a.ID
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"activityId": activityID,
		"activity":   a,
	})
}
