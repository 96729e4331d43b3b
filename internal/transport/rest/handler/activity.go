package handler

import (
	"net/http"

	"livepoll/internal/model"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// ActivityHandler handles the professor's activity library
type ActivityHandler struct {
	activitySvc *service.ActivityService
	responseSvc *service.ResponseService
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activitySvc *service.ActivityService, responseSvc *service.ResponseService) *ActivityHandler {
	return &ActivityHandler{
		activitySvc: activitySvc,
		responseSvc: responseSvc,
	}
}

// CreateActivityRequest is the request body for creating an activity
type CreateActivityRequest struct {
	Type     model.ActivityType `json:"type" validate:"required"`
	FolderID *string            `json:"folderId,omitempty"`
}

// TransitionRequest is the request body for a status change
type TransitionRequest struct {
	Status model.ActivityStatus `json:"status" validate:"required"`
}

// ModerateRequest is the request body for moderating a Q&A response
type ModerateRequest struct {
	Status model.ResponseStatus `json:"status" validate:"required"`
}

// Create handles POST /v1/activities
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateActivityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.activitySvc.Create(r.Context(), middleware.Identity(r.Context()), req.Type, req.FolderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// List handles GET /v1/activities?folderId=
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	activities := []*model.Activity{}
	for a, err := range h.activitySvc.List(r.Context(), middleware.Identity(r.Context()), optionalQuery(r, "folderId")) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		activities = append(activities, a)
	}
	writeJSON(w, http.StatusOK, activities)
}

// Get handles GET /v1/activities/{activityId}
func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.activitySvc.GetForEditor(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["activityId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Update handles PATCH /v1/activities/{activityId}
func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.ActivityPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.activitySvc.Update(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["activityId"], patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Delete handles DELETE /v1/activities/{activityId}. The activity moves to TRASH.
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.activitySvc.SoftDelete(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["activityId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Transition handles POST /v1/activities/{activityId}/status
func (h *ActivityHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.activitySvc.Transition(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["activityId"], req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Results handles GET /v1/activities/{activityId}/results
func (h *ActivityHandler) Results(w http.ResponseWriter, r *http.Request) {
	view, err := h.responseSvc.Aggregate(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["activityId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Moderate handles PATCH /v1/responses/{responseId}/status
func (h *ActivityHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	var req ModerateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.responseSvc.Moderate(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["responseId"], req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
