package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"livepoll/internal/apperr"
	"livepoll/internal/cache"
	"livepoll/internal/logger"
	"livepoll/internal/model"
	"livepoll/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	sessionCodeChars    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	sessionCodeLen      = 6
	sessionCodeAttempts = 10
)

// SessionService manages code-addressed sessions and joining by code
type SessionService struct {
	sessions    repository.SessionRepo
	activities  repository.ActivityRepo
	profiles    repository.ProfileRepo
	codes       cache.SessionCodeCache
	auth        *AuthService
	broadcaster Broadcaster
}

// NewSessionService creates a new session service
func NewSessionService(
	sessions repository.SessionRepo,
	activities repository.ActivityRepo,
	profiles repository.ProfileRepo,
	codes cache.SessionCodeCache,
	auth *AuthService,
) *SessionService {
	return &SessionService{
		sessions:    sessions,
		activities:  activities,
		profiles:    profiles,
		codes:       codes,
		auth:        auth,
		broadcaster: noopBroadcaster{},
	}
}

// SetBroadcaster sets the WebSocket broadcaster
func (s *SessionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Create makes a DRAFT session with a fresh join code
func (s *SessionService) Create(ctx context.Context, id Identity, req model.CreateSessionRequest) (*model.Session, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	ids, err := s.ownedActivityIDs(ctx, id, req.ActivityIDs)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := &model.Session{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		OwnerID:     id.ProfessorID,
		Status:      model.SessionDraft,
		ActivityIDs: ids,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 0; attempt < sessionCodeAttempts; attempt++ {
		code, err := s.generateCode(ctx)
		if err != nil {
			return nil, apperr.Internal("failed to generate session code", err)
		}
		sess.Code = code
		err = s.sessions.Create(ctx, sess)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.cacheMeta(ctx, sess)
		logger.WithContext(ctx).WithFields(logrus.Fields{
			"session_id": sess.ID,
			"code":       sess.Code,
		}).Info("session created")
		return sess, nil
	}
	return nil, apperr.Internal("failed to generate a unique session code", nil)
}

// Get returns a session owned by the caller
func (s *SessionService) Get(ctx context.Context, id Identity, sessionID string) (*model.Session, error) {
	return s.owned(ctx, id, sessionID)
}

// List returns the caller's sessions, newest first
func (s *SessionService) List(ctx context.Context, id Identity) ([]*model.Session, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByOwner(ctx, id.ProfessorID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	return sessions, nil
}

// Update applies patch. Analysis entries are merged by activity id; a nil entry removes one.
func (s *SessionService) Update(ctx context.Context, id Identity, sessionID string, patch model.SessionPatch) (*model.Session, error) {
	sess, err := s.owned(ctx, id, sessionID)
	if err != nil {
		return nil, err
	}
	statusChanged := false
	if patch.Title != nil {
		sess.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.ActivityIDs != nil {
		ids, err := s.ownedActivityIDs(ctx, id, *patch.ActivityIDs)
		if err != nil {
			return nil, err
		}
		sess.ActivityIDs = ids
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperr.InvalidInput(fmt.Sprintf("invalid session status %q", *patch.Status), nil)
		}
		statusChanged = sess.Status != *patch.Status
		sess.Status = *patch.Status
	}
	for activityID, result := range patch.Analysis {
		if sess.Analysis == nil {
			sess.Analysis = make(map[string]*model.SynthesisResult)
		}
		if result == nil {
			delete(sess.Analysis, activityID)
			continue
		}
		sess.Analysis[activityID] = result
	}
	sess.UpdatedAt = time.Now()

	if err := s.sessions.Update(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("session not found", err)
		}
		return nil, err
	}
	if statusChanged {
		s.cacheMeta(ctx, sess)
		payload := map[string]interface{}{
			"sessionId": sess.ID,
			"code":      sess.Code,
			"status":    sess.Status,
		}
		s.broadcaster.BroadcastToPresenter(sess.OwnerID, EventSessionUpdated, payload)
		s.broadcaster.BroadcastToParticipants(sess.OwnerID, EventSessionUpdated, payload)
	}
	return sess, nil
}

// Delete removes a session and frees its code
func (s *SessionService) Delete(ctx context.Context, id Identity, sessionID string) error {
	sess, err := s.owned(ctx, id, sessionID)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return err
	}
	if err := s.codes.Delete(ctx, sess.Code); err != nil {
		logger.WithContext(ctx).WithError(err).WithField("code", sess.Code).Warn("failed to drop session code")
	}
	return nil
}

// Resolve returns the participant view behind a code. The live activity is shown only
// when the professor's live pointer is one of the session's activities.
func (s *SessionService) Resolve(ctx context.Context, code string) (*model.SessionView, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.NotFound("no session with that code", nil)
	}
	owner, err := s.profiles.GetByID(ctx, sess.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, apperr.NotFound("no session with that code", nil)
	}
	view := &model.SessionView{
		ID:     sess.ID,
		Code:   sess.Code,
		Title:  sess.Title,
		Status: sess.Status,
		Handle: owner.Handle,
	}
	if sess.Status == model.SessionOpen && owner.CurrentActivityID != nil && sess.HasActivity(*owner.CurrentActivityID) {
		live := *owner.CurrentActivityID
		view.LiveActivityID = &live
	}
	return view, nil
}

// Join issues a participant token for the page behind an OPEN session's code
func (s *SessionService) Join(ctx context.Context, code string) (*model.SessionJoinResponse, error) {
	meta, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if meta.Status != model.SessionOpen {
		return nil, apperr.Forbidden(fmt.Sprintf("session is %s", strings.ToLower(string(meta.Status))), nil)
	}
	join, err := s.auth.Join(ctx, meta.Handle)
	if err != nil {
		return nil, err
	}
	view, err := s.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	return &model.SessionJoinResponse{JoinResponse: *join, Session: view}, nil
}

// lookup resolves a code through the cache, falling back to the repository
func (s *SessionService) lookup(ctx context.Context, code string) (*model.SessionMeta, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	log := logger.WithContext(ctx).WithField("code", code)
	meta, err := s.codes.GetMeta(ctx, code)
	if err != nil {
		log.WithError(err).Warn("session code cache read failed")
	}
	if meta != nil {
		return meta, nil
	}

	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.NotFound("no session with that code", nil)
	}
	return s.cacheMeta(ctx, sess), nil
}

// cacheMeta refreshes the cached code record; the repository stays authoritative on failure
func (s *SessionService) cacheMeta(ctx context.Context, sess *model.Session) *model.SessionMeta {
	meta := &model.SessionMeta{SessionID: sess.ID, OwnerID: sess.OwnerID, Status: sess.Status}
	log := logger.WithContext(ctx).WithField("session_id", sess.ID)
	owner, err := s.profiles.GetByID(ctx, sess.OwnerID)
	if err != nil {
		log.WithError(err).Warn("failed to load session owner")
		return meta
	}
	if owner != nil {
		meta.Handle = owner.Handle
	}
	if err := s.codes.SetMeta(ctx, sess.Code, meta); err != nil {
		log.WithError(err).Warn("failed to cache session code")
	}
	return meta
}

func (s *SessionService) owned(ctx context.Context, id Identity, sessionID string) (*model.Session, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.NotFound("session not found", nil)
	}
	if err := RequireOwner(id, sess.OwnerID); err != nil {
		return nil, err
	}
	return sess, nil
}

// ownedActivityIDs checks every id names a non-trashed activity of the caller and drops repeats
func (s *SessionService) ownedActivityIDs(ctx context.Context, id Identity, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, activityID := range ids {
		if seen[activityID] {
			continue
		}
		seen[activityID] = true
		a, err := s.activities.GetByID(ctx, activityID)
		if err != nil {
			return nil, err
		}
		if a == nil || a.Status == model.StatusTrash {
			return nil, apperr.InvalidInput(fmt.Sprintf("activity %s not found", activityID), nil)
		}
		if err := RequireOwner(id, a.OwnerID); err != nil {
			return nil, err
		}
		out = append(out, activityID)
	}
	return out, nil
}

// generateCode draws a 6-char code without ambiguous characters, skipping codes already cached
func (s *SessionService) generateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < sessionCodeAttempts; attempt++ {
		b := make([]byte, sessionCodeLen)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		code := make([]byte, sessionCodeLen)
		for i := range code {
			code[i] = sessionCodeChars[int(b[i])%len(sessionCodeChars)]
		}
		exists, err := s.codes.Exists(ctx, string(code))
		if err != nil {
			return "", err
		}
		if !exists {
			return string(code), nil
		}
	}
	return "", errors.New("no free session code")
}
