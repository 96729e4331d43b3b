package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"livepoll/internal/model"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// RunHandler handles archived runs and CSV exports
type RunHandler struct {
	runSvc    *service.RunService
	exportSvc *service.ExportService
}

// NewRunHandler creates a new run handler
func NewRunHandler(runSvc *service.RunService, exportSvc *service.ExportService) *RunHandler {
	return &RunHandler{
		runSvc:    runSvc,
		exportSvc: exportSvc,
	}
}

// ArchiveRequest is the request body for archiving the live response set
type ArchiveRequest struct {
	Name string `json:"name" validate:"max=200"`
}

// RunDetail is a run with its frozen responses
type RunDetail struct {
	*model.Run
	Responses []*model.Response `json:"responses"`
}

// Archive handles POST /v1/activities/{activityId}/runs
func (h *RunHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	run, err := h.runSvc.ArchiveAndReset(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["activityId"], req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// List handles GET /v1/activities/{activityId}/runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runSvc.ListRuns(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["activityId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// Get handles GET /v1/runs/{runId}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, rs, err := h.runSvc.RunResponses(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["runId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rs == nil {
		rs = []*model.Response{}
	}
	writeJSON(w, http.StatusOK, RunDetail{Run: run, Responses: rs})
}

// ExportLive handles GET /v1/activities/{activityId}/export
func (h *RunHandler) ExportLive(w http.ResponseWriter, r *http.Request) {
	activityID := mux.Vars(r)["activityId"]
	h.writeCSV(w, r, "activity-"+activityID, func(w *bytes.Buffer) error {
		return h.exportSvc.ExportLive(r.Context(), middleware.Identity(r.Context()), activityID, w)
	})
}

// ExportRun handles GET /v1/runs/{runId}/export
func (h *RunHandler) ExportRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	h.writeCSV(w, r, "run-"+runID, func(w *bytes.Buffer) error {
		return h.exportSvc.ExportRun(r.Context(), middleware.Identity(r.Context()), runID, w)
	})
}

// writeCSV buffers the export so a failure still produces a JSON error instead of a truncated file
func (h *RunHandler) writeCSV(w http.ResponseWriter, r *http.Request, name string, export func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := export(&buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
