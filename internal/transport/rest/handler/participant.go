package handler

import (
	"net/http"

	"livepoll/internal/apperr"
	"livepoll/internal/model"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// ParticipantHandler serves the participant page of a professor handle
type ParticipantHandler struct {
	activitySvc *service.ActivityService
	responseSvc *service.ResponseService
	upvoteSvc   *service.UpvoteService
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(activitySvc *service.ActivityService, responseSvc *service.ResponseService, upvoteSvc *service.UpvoteService) *ParticipantHandler {
	return &ParticipantHandler{
		activitySvc: activitySvc,
		responseSvc: responseSvc,
		upvoteSvc:   upvoteSvc,
	}
}

// GetActivity handles GET /v1/p/{handle}/activities/{activityId}
func (h *ParticipantHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	a, err := h.pageActivity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Submit handles POST /v1/p/{handle}/activities/{activityId}/responses
func (h *ParticipantHandler) Submit(w http.ResponseWriter, r *http.Request) {
	a, err := h.pageActivity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var content model.ResponseContent
	if err := decode(r, &content); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.responseSvc.Submit(r.Context(), a.ID, middleware.GetParticipantID(r.Context()), content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Mine handles GET /v1/p/{handle}/activities/{activityId}/responses/mine
func (h *ParticipantHandler) Mine(w http.ResponseWriter, r *http.Request) {
	a, err := h.pageActivity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rs, err := h.responseSvc.MyResponses(r.Context(), a.ID, middleware.GetParticipantID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rs == nil {
		rs = []*model.Response{}
	}
	writeJSON(w, http.StatusOK, rs)
}

// Results handles GET /v1/p/{handle}/activities/{activityId}/results
func (h *ParticipantHandler) Results(w http.ResponseWriter, r *http.Request) {
	a, err := h.pageActivity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.responseSvc.PublicAggregate(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateResponse handles PUT /v1/p/{handle}/responses/{responseId}
func (h *ParticipantHandler) UpdateResponse(w http.ResponseWriter, r *http.Request) {
	var content model.ResponseContent
	if err := decode(r, &content); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.responseSvc.Update(r.Context(), middleware.GetParticipantID(r.Context()), mux.Vars(r)["responseId"], content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Upvote handles POST /v1/p/{handle}/responses/{responseId}/upvote. Calling it again removes the vote.
func (h *ParticipantHandler) Upvote(w http.ResponseWriter, r *http.Request) {
	resp, err := h.upvoteSvc.Toggle(r.Context(), middleware.GetParticipantOf(r.Context()), mux.Vars(r)["responseId"], middleware.GetParticipantID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// pageActivity resolves the live activity of the route and checks it belongs to the page the participant joined
func (h *ParticipantHandler) pageActivity(r *http.Request) (*model.Activity, error) {
	a, err := h.activitySvc.Get(r.Context(), mux.Vars(r)["activityId"])
	if err != nil {
		return nil, err
	}
	if a.OwnerID != middleware.GetParticipantOf(r.Context()) {
		return nil, apperr.NotFound("activity not found", nil)
	}
	return a, nil
}
