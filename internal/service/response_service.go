package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"livepoll/internal/apperr"
	"livepoll/internal/cache"
	"livepoll/internal/config"
	"livepoll/internal/logger"
	"livepoll/internal/metrics"
	"livepoll/internal/model"
	"livepoll/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ResponseService accepts, edits and aggregates participant responses
type ResponseService struct {
	activities  repository.ActivityRepo
	responses   repository.ResponseRepo
	profiles    repository.ProfileRepo
	profanity   ProfanityChecker
	aggregates  cache.AggregateCache
	policy      string
	broadcaster Broadcaster
}

// NewResponseService creates a new response service. policy is config.PolicyReject or config.PolicyOverwrite.
func NewResponseService(
	activities repository.ActivityRepo,
	responses repository.ResponseRepo,
	profiles repository.ProfileRepo,
	profanity ProfanityChecker,
	aggregates cache.AggregateCache,
	policy string,
) *ResponseService {
	if policy != config.PolicyOverwrite {
		policy = config.PolicyReject
	}
	return &ResponseService{
		activities:  activities,
		responses:   responses,
		profiles:    profiles,
		profanity:   profanity,
		aggregates:  aggregates,
		policy:      policy,
		broadcaster: noopBroadcaster{},
	}
}

// SetBroadcaster sets the WebSocket broadcaster
func (s *ResponseService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Submit records a participant's response to the live activity
func (s *ResponseService) Submit(ctx context.Context, activityID, participantID string, content model.ResponseContent) (*model.Response, error) {
	if participantID == "" {
		return nil, apperr.Unauthorized("participant id required", nil)
	}
	a, err := s.acceptingActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	normalized, err := s.check(a, content)
	if err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx).WithFields(logrus.Fields{
		"activity_id":    a.ID,
		"participant_id": participantID,
	})

	// Two passes: a concurrent submit can take the slot between reading and inserting
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.responses.ListByParticipant(ctx, a.ID, participantID)
		if err != nil {
			return nil, err
		}

		limit := a.Settings.ResponseLimit
		if limit > 0 && len(existing) >= limit {
			return s.atLimit(ctx, a, existing, normalized)
		}

		now := time.Now()
		r := &model.Response{
			ID:            uuid.NewString(),
			ActivityID:    a.ID,
			OwnerID:       a.OwnerID,
			ParticipantID: participantID,
			Content:       normalized,
			UpvoterIDs:    []string{},
			SubmittedAt:   now,
			UpdatedAt:     now,
		}
		if limit > 0 {
			r.DedupeKey = fmt.Sprintf("%s:%s:%d", a.ID, participantID, len(existing))
		} else {
			r.DedupeKey = fmt.Sprintf("%s:%s:%s", a.ID, participantID, r.ID)
		}
		if a.Type == model.ActivityQA {
			r.Status = model.ResponseApproved
			if a.Settings.ModerationEnabled {
				r.Status = model.ResponsePending
			}
		}

		err = s.responses.Create(ctx, r)
		if errors.Is(err, repository.ErrDuplicate) {
			log.Debug("response slot taken concurrently, re-reading")
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.IncResponse(string(a.Type))
		s.changed(ctx, a, EventResponseSubmitted, r)
		return r, nil
	}
	return nil, apperr.AlreadySubmitted("response limit reached", nil)
}

// atLimit applies the submission policy once the participant has used every slot
func (s *ResponseService) atLimit(ctx context.Context, a *model.Activity, existing []*model.Response, content model.ResponseContent) (*model.Response, error) {
	if !a.Settings.AllowChangeAnswer && s.policy != config.PolicyOverwrite {
		return nil, apperr.AlreadySubmitted("response limit reached", nil)
	}
	latest := existing[0]
	for _, r := range existing[1:] {
		if !r.SubmittedAt.Before(latest.SubmittedAt) {
			latest = r
		}
	}
	return s.overwrite(ctx, a, latest, content)
}

func (s *ResponseService) overwrite(ctx context.Context, a *model.Activity, r *model.Response, content model.ResponseContent) (*model.Response, error) {
	now := time.Now()
	if err := s.responses.UpdateContent(ctx, r.ID, content, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("response not found", err)
		}
		return nil, err
	}
	r.Content = content
	r.UpdatedAt = now
	s.changed(ctx, a, EventResponseUpdated, r)
	return r, nil
}

// Update edits the participant's own response while the activity allows changing answers
func (s *ResponseService) Update(ctx context.Context, participantID, responseID string, content model.ResponseContent) (*model.Response, error) {
	if participantID == "" {
		return nil, apperr.Unauthorized("participant id required", nil)
	}
	r, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("response not found", nil)
	}
	if r.ParticipantID != participantID {
		return nil, apperr.Forbidden("only the author can edit this response", nil)
	}
	a, err := s.acceptingActivity(ctx, r.ActivityID)
	if err != nil {
		return nil, err
	}
	if !a.Settings.AllowChangeAnswer {
		return nil, apperr.Forbidden("this activity does not allow changing answers", nil)
	}
	normalized, err := s.check(a, content)
	if err != nil {
		return nil, err
	}
	return s.overwrite(ctx, a, r, normalized)
}

// Moderate sets the status of a Q&A response. Owner only.
func (s *ResponseService) Moderate(ctx context.Context, id Identity, responseID string, status model.ResponseStatus) (*model.Response, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.InvalidInput(fmt.Sprintf("invalid status %q", status), nil)
	}
	r, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("response not found", nil)
	}
	if err := RequireOwner(id, r.OwnerID); err != nil {
		return nil, err
	}
	a, err := s.activities.GetByID(ctx, r.ActivityID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.Status == model.StatusTrash {
		return nil, apperr.NotFound("activity not found", nil)
	}
	if a.Type != model.ActivityQA {
		return nil, apperr.InvalidInput("only Q&A responses can be moderated", nil)
	}
	if err := s.responses.SetStatus(ctx, r.ID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("response not found", err)
		}
		return nil, err
	}
	r.Status = status
	s.changed(ctx, a, EventResponseUpdated, r)
	return r, nil
}

// Aggregate returns the owner's view of the live response set. A failed read yields an empty view.
func (s *ResponseService) Aggregate(ctx context.Context, id Identity, activityID string) (*model.AggregateView, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	a, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.Status == model.StatusTrash {
		return nil, apperr.NotFound("activity not found", nil)
	}
	if err := RequireOwner(id, a.OwnerID); err != nil {
		return nil, err
	}
	return s.aggregate(ctx, a), nil
}

// PublicAggregate is the participant results view; pending Q&A stays hidden
func (s *ResponseService) PublicAggregate(ctx context.Context, activityID string) (*model.AggregateView, error) {
	a, err := s.visibleActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !a.Settings.ResultsVisible && a.Type != model.ActivityQA {
		return nil, apperr.Forbidden("results are not visible for this activity", nil)
	}
	view := *s.aggregate(ctx, a)
	view.Pending = nil
	return &view, nil
}

// MyResponses lists a participant's own live responses
func (s *ResponseService) MyResponses(ctx context.Context, activityID, participantID string) ([]*model.Response, error) {
	if participantID == "" {
		return nil, apperr.Unauthorized("participant id required", nil)
	}
	if _, err := s.visibleActivity(ctx, activityID); err != nil {
		return nil, err
	}
	rs, err := s.responses.ListByParticipant(ctx, activityID, participantID)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = []*model.Response{}
	}
	return rs, nil
}

func (s *ResponseService) aggregate(ctx context.Context, a *model.Activity) *model.AggregateView {
	log := logger.WithContext(ctx).WithField("activity_id", a.ID)
	if cached, err := s.aggregates.Get(ctx, a.ID); err == nil && cached != nil {
		return cached
	} else if err != nil {
		log.WithError(err).Warn("aggregate cache read failed")
	}

	gen, genErr := s.aggregates.Generation(ctx, a.ID)
	if genErr != nil {
		log.WithError(genErr).Warn("aggregate cache generation read failed")
	}
	rs, err := s.responses.ListLive(ctx, a.ID)
	if err != nil {
		log.WithError(err).Error("failed to load responses, returning empty aggregate")
		return EmptyAggregate(a)
	}
	view := BuildAggregate(a, rs)
	if genErr == nil {
		if err := s.aggregates.Set(ctx, view, gen); err != nil {
			log.WithError(err).Warn("aggregate cache write failed")
		}
	}
	return view
}

// acceptingActivity loads the activity a participant may write to: live and ACTIVE
func (s *ResponseService) acceptingActivity(ctx context.Context, activityID string) (*model.Activity, error) {
	a, err := s.visibleActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusActive {
		return nil, apperr.Forbidden("activity is not accepting responses", nil)
	}
	return a, nil
}

func (s *ResponseService) visibleActivity(ctx context.Context, activityID string) (*model.Activity, error) {
	a, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.NotFound("activity not found", nil)
	}
	owner, err := s.profiles.GetByID(ctx, a.OwnerID)
	if err != nil {
		return nil, err
	}
	var liveID *string
	if owner != nil {
		liveID = owner.CurrentActivityID
	}
	if err := RequireVisible(a, liveID); err != nil {
		return nil, err
	}
	return a, nil
}

// check validates content for a and applies the profanity filter
func (s *ResponseService) check(a *model.Activity, content model.ResponseContent) (model.ResponseContent, error) {
	normalized, err := ValidateContent(a, content)
	if err != nil {
		return model.ResponseContent{}, err
	}
	if a.Settings.ProfanityFilter && s.profanity != nil {
		for _, text := range freeTexts(normalized) {
			if s.profanity.IsProfane(text) {
				return model.ResponseContent{}, apperr.Profanity("response contains inappropriate language")
			}
		}
	}
	return normalized, nil
}

func (s *ResponseService) changed(ctx context.Context, a *model.Activity, event string, r *model.Response) {
	if err := s.aggregates.Invalidate(ctx, a.ID); err != nil {
		logger.WithContext(ctx).WithError(err).WithField("activity_id", a.ID).Warn("failed to invalidate aggregate cache")
	}
	s.broadcaster.BroadcastToPresenter(a.OwnerID, event, map[string]interface{}{
		"activityId": a.ID,
		"response":   r,
	})
}
