package service

import (
	"context"
	"strings"

	"livepoll/internal/apperr"
	"livepoll/internal/logger"
	"livepoll/internal/model"
)

// DraftService suggests activities from a topic
type DraftService struct {
	drafter  Drafter
	limiter  *CallerLimiter
	fallback Drafter
}

// NewDraftService creates a new draft service. A nil drafter always yields mock drafts.
func NewDraftService(drafter Drafter, limiter *CallerLimiter) *DraftService {
	if drafter == nil {
		drafter = MockAI{}
	}
	return &DraftService{drafter: drafter, limiter: limiter, fallback: MockAI{}}
}

// Draft returns a suggested activity. Collaborator failures fall back to a mock draft.
func (s *DraftService) Draft(ctx context.Context, id Identity, topic string, typ model.ActivityType) (*model.Draft, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apperr.InvalidInput("topic is required", nil)
	}
	if typ == "" {
		typ = model.ActivityMultipleChoice
	}
	if !typ.Valid() {
		return nil, apperr.InvalidInput("invalid activity type", nil)
	}
	if !s.limiter.Allow(id.ProfessorID) {
		return nil, apperr.RateLimited("too many AI requests, try again in a minute")
	}

	d, err := s.drafter.Draft(ctx, topic, typ)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("draft generation failed, using mock")
		return s.fallback.Draft(ctx, topic, typ)
	}
	return d, nil
}
