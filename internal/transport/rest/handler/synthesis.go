package handler

import (
	"net/http"

	"livepoll/internal/model"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// SynthesisHandler handles AI synthesis of responses and AI activity drafts
type SynthesisHandler struct {
	synthesisSvc *service.SynthesisService
	draftSvc     *service.DraftService
}

// NewSynthesisHandler creates a new synthesis handler
func NewSynthesisHandler(synthesisSvc *service.SynthesisService, draftSvc *service.DraftService) *SynthesisHandler {
	return &SynthesisHandler{
		synthesisSvc: synthesisSvc,
		draftSvc:     draftSvc,
	}
}

// DraftRequest is the request body for drafting an activity
type DraftRequest struct {
	Topic string             `json:"topic" validate:"required,max=500"`
	Type  model.ActivityType `json:"type,omitempty"`
}

// Request handles POST /v1/activities/{activityId}/synthesis. Generation continues in the background.
func (h *SynthesisHandler) Request(w http.ResponseWriter, r *http.Request) {
	syn, err := h.synthesisSvc.Request(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["activityId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, syn)
}

// Get handles GET /v1/activities/{activityId}/synthesis
func (h *SynthesisHandler) Get(w http.ResponseWriter, r *http.Request) {
	syn, err := h.synthesisSvc.Get(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["activityId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syn)
}

// Draft handles POST /v1/ai/draft
func (h *SynthesisHandler) Draft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.draftSvc.Draft(r.Context(), middleware.Identity(r.Context()), req.Topic, req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
