package handler

import (
	"net/http"

	"livepoll/internal/model"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// FolderHandler handles the folder tree of the activity library
type FolderHandler struct {
	folderSvc *service.FolderService
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(folderSvc *service.FolderService) *FolderHandler {
	return &FolderHandler{folderSvc: folderSvc}
}

// FolderRequest is the request body for creating or renaming a folder
type FolderRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	ParentID *string `json:"parentId,omitempty"`
}

// Create handles POST /v1/folders
func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.folderSvc.Create(r.Context(), middleware.Identity(r.Context()), req.Name, req.ParentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// List handles GET /v1/folders?parentId=
func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	parentID := optionalQuery(r, "parentId")
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	folders, err := h.folderSvc.List(r.Context(), middleware.Identity(r.Context()), parentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if folders == nil {
		folders = []*model.Folder{}
	}
	writeJSON(w, http.StatusOK, folders)
}

// Rename handles PATCH /v1/folders/{folderId}
func (h *FolderHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.folderSvc.Rename(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["folderId"], req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Delete handles DELETE /v1/folders/{folderId}
func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.folderSvc.Delete(r.Context(), middleware.Identity(r.Context()), mux.Vars(r)["folderId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
