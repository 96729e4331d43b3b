package service

import (
	"livepoll/internal/apperr"
	"livepoll/internal/model"
)

// Identity is the verified caller supplied by the identity provider. The zero value is unauthenticated.
type Identity struct {
	ProfessorID string
}

// RequireIdentity denies unauthenticated callers
func RequireIdentity(id Identity) error {
	if id.ProfessorID == "" {
		return apperr.Unauthorized("authentication required", nil)
	}
	return nil
}

// RequireOwner allows only the owner to mutate a resource
func RequireOwner(id Identity, ownerID string) error {
	if err := RequireIdentity(id); err != nil {
		return err
	}
	if id.ProfessorID != ownerID {
		return apperr.Forbidden("only the owner can modify this resource", nil)
	}
	return nil
}

// RequireVisible hides activities participants must not see: trashed, or not the owner's live activity
func RequireVisible(a *model.Activity, liveActivityID *string) error {
	if a == nil || a.Status == model.StatusTrash {
		return apperr.NotFound("activity not found", nil)
	}
	if liveActivityID == nil || *liveActivityID != a.ID {
		return apperr.NotFound("activity is not live", nil)
	}
	return nil
}
