package service

import (
	"context"
	"errors"
	"time"

	"livepoll/internal/apperr"
	"livepoll/internal/cache"
	"livepoll/internal/logger"
	"livepoll/internal/metrics"
	"livepoll/internal/model"
	"livepoll/internal/repository"
	"livepoll/internal/retry"
)

const (
	upvoteAttempts  = 10
	upvoteBaseDelay = 5 * time.Millisecond
)

// UpvoteService toggles participant upvotes on Q&A responses
type UpvoteService struct {
	activities  repository.ActivityRepo
	responses   repository.ResponseRepo
	profiles    repository.ProfileRepo
	aggregates  cache.AggregateCache
	broadcaster Broadcaster
}

// NewUpvoteService creates a new upvote service
func NewUpvoteService(activities repository.ActivityRepo, responses repository.ResponseRepo, profiles repository.ProfileRepo, aggregates cache.AggregateCache) *UpvoteService {
	return &UpvoteService{
		activities:  activities,
		responses:   responses,
		profiles:    profiles,
		aggregates:  aggregates,
		broadcaster: noopBroadcaster{},
	}
}

// SetBroadcaster sets the WebSocket broadcaster
func (s *UpvoteService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Toggle adds participantID to the upvoters of responseID, or removes it when already present.
// upvotes always equals the number of distinct upvoters. The response must be a visible question
// of the ACTIVE live activity of pageOwnerID, the professor whose page the participant joined.
func (s *UpvoteService) Toggle(ctx context.Context, pageOwnerID, responseID, participantID string) (*model.Response, error) {
	if participantID == "" {
		return nil, apperr.Unauthorized("participant id required", nil)
	}
	r, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if r == nil || (r.Status != model.ResponseApproved && r.Status != model.ResponseFeatured) {
		return nil, apperr.NotFound("response not found", nil)
	}
	a, err := s.votableActivity(ctx, pageOwnerID, r.ActivityID)
	if err != nil {
		return nil, err
	}

	var updated *model.Response
	attempt := 0
	err = retry.DoWithRetry(ctx, upvoteAttempts, upvoteBaseDelay, func() error {
		if attempt > 0 {
			metrics.IncUpvoteRetry()
		}
		attempt++
		res, err := s.responses.ToggleUpvote(ctx, responseID, participantID)
		if errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		if err != nil {
			return retry.Stop(err)
		}
		if res == nil {
			return retry.Stop(apperr.NotFound("response not found", nil))
		}
		updated = res
		return nil
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		logger.WithContext(ctx).WithField("response_id", responseID).Warn("upvote toggle kept conflicting")
		return nil, apperr.Conflict("upvote could not be applied, try again", err)
	}
	if err != nil {
		return nil, err
	}

	if err := s.aggregates.Invalidate(ctx, a.ID); err != nil {
		logger.WithContext(ctx).WithError(err).WithField("activity_id", a.ID).Warn("failed to invalidate aggregate cache")
	}
	payload := map[string]interface{}{
		"activityId": a.ID,
		"responseId": updated.ID,
		"upvotes":    updated.Upvotes,
	}
	s.broadcaster.BroadcastToPresenter(a.OwnerID, EventUpvoteChanged, payload)
	s.broadcaster.BroadcastToParticipants(a.OwnerID, EventUpvoteChanged, payload)
	return updated, nil
}

func (s *UpvoteService) votableActivity(ctx context.Context, pageOwnerID, activityID string) (*model.Activity, error) {
	a, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.OwnerID != pageOwnerID {
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
	if a.Type != model.ActivityQA {
		return nil, apperr.InvalidInput("only Q&A responses can be upvoted", nil)
	}
	if a.Status != model.StatusActive {
		return nil, apperr.Forbidden("activity is not accepting upvotes", nil)
	}
	return a, nil
}
