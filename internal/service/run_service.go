package service

import (
	"context"
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

// RunService archives the live response set of an activity into named runs
type RunService struct {
	activities  repository.ActivityRepo
	runs        repository.RunRepo
	aggregates  cache.AggregateCache
	broadcaster Broadcaster
}

// NewRunService creates a new run service
func NewRunService(activities repository.ActivityRepo, runs repository.RunRepo, aggregates cache.AggregateCache) *RunService {
	return &RunService{
		activities:  activities,
		runs:        runs,
		aggregates:  aggregates,
		broadcaster: noopBroadcaster{},
	}
}

// SetBroadcaster sets the WebSocket broadcaster
func (s *RunService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// ArchiveAndReset moves every live response into a new COMPLETED run and returns how many moved.
// Afterwards the live set is empty; an ARCHIVED activity goes back to DRAFT.
func (s *RunService) ArchiveAndReset(ctx context.Context, id Identity, activityID, name string) (*model.Run, error) {
	a, err := s.ownedActivity(ctx, id, activityID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Session " + now.Format("2006-01-02 15:04")
	}
	run := &model.Run{
		ID:         uuid.NewString(),
		ActivityID: a.ID,
		OwnerID:    a.OwnerID,
		Name:       name,
		Status:     model.RunCompleted,
		EndedAt:    now,
	}

	n, err := s.runs.Archive(ctx, run)
	if err != nil {
		return nil, apperr.Internal("failed to archive responses", err)
	}

	log := logger.WithContext(ctx).WithFields(logrus.Fields{
		"activity_id": a.ID,
		"run_id":      run.ID,
		"responses":   n,
	})
	log.Info("run archived")

	if a.Status == model.StatusArchived {
		if _, err := s.activities.TransitionStatus(ctx, a.ID, model.StatusArchived, model.StatusDraft); err != nil {
			log.WithError(err).Warn("failed to reset archived activity to draft")
		}
	}
	if err := s.aggregates.Invalidate(ctx, a.ID); err != nil {
		log.WithError(err).Warn("failed to invalidate aggregate cache")
	}
	s.broadcaster.BroadcastToPresenter(a.OwnerID, EventRunArchived, map[string]interface{}{
		"activityId":    a.ID,
		"runId":         run.ID,
		"responseCount": n,
	})
	return run, nil
}

// ListRuns lists the runs of an activity, newest first
func (s *RunService) ListRuns(ctx context.Context, id Identity, activityID string) ([]*model.Run, error) {
	a, err := s.ownedActivity(ctx, id, activityID)
	if err != nil {
		return nil, err
	}
	runs, err := s.runs.ListByActivity(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	return runs, nil
}

// GetRun returns a run owned by the caller
func (s *RunService) GetRun(ctx context.Context, id Identity, runID string) (*model.Run, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apperr.NotFound(fmt.Sprintf("run %s not found", runID), nil)
	}
	if err := RequireOwner(id, run.OwnerID); err != nil {
		return nil, err
	}
	return run, nil
}

// RunResponses returns the archived responses of a run in submission order
func (s *RunService) RunResponses(ctx context.Context, id Identity, runID string) (*model.Run, []*model.Response, error) {
	run, err := s.GetRun(ctx, id, runID)
	if err != nil {
		return nil, nil, err
	}
	rs, err := s.runs.Responses(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	if rs == nil {
		rs = []*model.Response{}
	}
	return run, rs, nil
}

func (s *RunService) ownedActivity(ctx context.Context, id Identity, activityID string) (*model.Activity, error) {
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
	return a, nil
}
