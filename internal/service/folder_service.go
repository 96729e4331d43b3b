package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"livepoll/internal/apperr"
	"livepoll/internal/model"
	"livepoll/internal/repository"

	"github.com/google/uuid"
)

// FolderService organizes activities into folders
type FolderService struct {
	folders    repository.FolderRepo
	activities repository.ActivityRepo
}

// NewFolderService creates a new folder service
func NewFolderService(folders repository.FolderRepo, activities repository.ActivityRepo) *FolderService {
	return &FolderService{folders: folders, activities: activities}
}

// Create makes a folder, optionally nested under parentID
func (s *FolderService) Create(ctx context.Context, id Identity, name string, parentID *string) (*model.Folder, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidInput("folder name is required", nil)
	}
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		if _, err := s.owned(ctx, id, *parentID); err != nil {
			return nil, err
		}
	}
	f := &model.Folder{
		ID:             uuid.NewString(),
		OwnerID:        id.ProfessorID,
		Name:           name,
		ParentFolderID: parentID,
		CreatedAt:      time.Now(),
	}
	if err := s.folders.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// List returns the caller's folders directly under parentID (root when nil)
func (s *FolderService) List(ctx context.Context, id Identity, parentID *string) ([]*model.Folder, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	fs, err := s.folders.List(ctx, id.ProfessorID, parentID)
	if err != nil {
		return nil, err
	}
	if fs == nil {
		fs = []*model.Folder{}
	}
	return fs, nil
}

// Rename changes a folder's name
func (s *FolderService) Rename(ctx context.Context, id Identity, folderID, name string) (*model.Folder, error) {
	f, err := s.owned(ctx, id, folderID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidInput("folder name is required", nil)
	}
	if err := s.folders.Rename(ctx, f.ID, name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("folder not found", err)
		}
		return nil, err
	}
	f.Name = name
	return f, nil
}

// Delete removes an empty folder. Trashed activities do not count.
func (s *FolderService) Delete(ctx context.Context, id Identity, folderID string) error {
	f, err := s.owned(ctx, id, folderID)
	if err != nil {
		return err
	}
	n, err := s.activities.CountInFolder(ctx, f.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("folder still contains activities", nil)
	}
	children, err := s.folders.List(ctx, id.ProfessorID, &f.ID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return apperr.Conflict("folder still contains folders", nil)
	}
	if err := s.folders.Delete(ctx, f.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

func (s *FolderService) owned(ctx context.Context, id Identity, folderID string) (*model.Folder, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	f, err := s.folders.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, apperr.NotFound("folder not found", nil)
	}
	if err := RequireOwner(id, f.OwnerID); err != nil {
		return nil, err
	}
	return f, nil
}
