package service

import (
	"context"
	"time"

	"livepoll/internal/apperr"
	"livepoll/internal/cache"
	"livepoll/internal/logger"
	"livepoll/internal/metrics"
	"livepoll/internal/model"
	"livepoll/internal/repository"
)

// LiveService owns the live broadcast pointer: at most one live activity per professor
type LiveService struct {
	activities repository.ActivityRepo
	profiles   repository.ProfileRepo
	feed       cache.LiveFeed
}

// NewLiveService creates a new live service
func NewLiveService(activities repository.ActivityRepo, profiles repository.ProfileRepo, feed cache.LiveFeed) *LiveService {
	return &LiveService{
		activities: activities,
		profiles:   profiles,
		feed:       feed,
	}
}

// Activate makes activityID the caller's live activity, replacing any previous one.
// A DRAFT activity goes ACTIVE.
func (s *LiveService) Activate(ctx context.Context, id Identity, activityID string) error {
	if err := RequireIdentity(id); err != nil {
		return err
	}
	a, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		return err
	}
	if a == nil {
		return apperr.NotFound("activity not found", nil)
	}
	if err := RequireOwner(id, a.OwnerID); err != nil {
		return err
	}
	if a.Status == model.StatusTrash {
		return apperr.NotFound("activity not found", nil)
	}

	if a.Status == model.StatusDraft {
		if _, err := s.activities.TransitionStatus(ctx, a.ID, model.StatusDraft, model.StatusActive); err != nil {
			return err
		}
	}
	return s.setPointer(ctx, id.ProfessorID, &a.ID)
}

// Deactivate clears the caller's live pointer. Always allowed for the owner.
func (s *LiveService) Deactivate(ctx context.Context, id Identity) error {
	if err := RequireIdentity(id); err != nil {
		return err
	}
	return s.setPointer(ctx, id.ProfessorID, nil)
}

// Current returns the live activity id for a professor handle, nil when nothing is live
func (s *LiveService) Current(ctx context.Context, handle string) (*string, error) {
	p, err := s.profileByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return p.CurrentActivityID, nil
}

// CurrentActivity returns the participant view of the live activity, nil when nothing is live
func (s *LiveService) CurrentActivity(ctx context.Context, handle string) (*model.Activity, error) {
	p, err := s.profileByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if p.CurrentActivityID == nil {
		return nil, nil
	}
	a, err := s.activities.GetByID(ctx, *p.CurrentActivityID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.Status == model.StatusTrash {
		return nil, nil
	}
	return a.ParticipantView(), nil
}

// Watch streams the live activity id of handle: the current value first, then every change,
// until ctx is done.
func (s *LiveService) Watch(ctx context.Context, handle string) (<-chan model.LiveEvent, error) {
	p, err := s.profileByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}

	// Subscribe before reading the pointer so a change in between is not lost
	events, err := s.feed.Subscribe(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	cur, err := s.profiles.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, apperr.NotFound("professor not found", nil)
	}

	out := make(chan model.LiveEvent, 1)
	out <- model.LiveEvent{ProfessorID: p.ID, Handle: p.Handle, ActivityID: cur.CurrentActivityID, At: time.Now()}

	go func() {
		defer close(out)
		last := cur.CurrentActivityID
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if sameActivity(last, ev.ActivityID) {
					continue
				}
				last = ev.ActivityID
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// clearIfCurrent drops the pointer when it still points at activityID
func (s *LiveService) clearIfCurrent(ctx context.Context, professorID, activityID string) error {
	cleared, err := s.profiles.ClearCurrentActivityIf(ctx, professorID, activityID)
	if err != nil || !cleared {
		return err
	}
	s.publish(ctx, professorID, nil)
	return nil
}

// liveActivityID returns the current pointer of the owning professor
func (s *LiveService) liveActivityID(ctx context.Context, professorID string) (*string, error) {
	p, err := s.profiles.GetByID(ctx, professorID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return p.CurrentActivityID, nil
}

func (s *LiveService) setPointer(ctx context.Context, professorID string, activityID *string) error {
	if err := s.profiles.SetCurrentActivity(ctx, professorID, activityID); err != nil {
		if err == repository.ErrNotFound {
			return apperr.Unauthorized("unknown professor", err)
		}
		return err
	}
	metrics.IncLiveChange()
	s.publish(ctx, professorID, activityID)
	return nil
}

// publish is best effort: the pointer is already durable, watchers catch up on reconnect
func (s *LiveService) publish(ctx context.Context, professorID string, activityID *string) {
	ev := model.LiveEvent{ProfessorID: professorID, ActivityID: activityID, At: time.Now()}
	if p, err := s.profiles.GetByID(ctx, professorID); err == nil && p != nil {
		ev.Handle = p.Handle
	}
	if err := s.feed.Publish(ctx, ev); err != nil {
		logger.WithContext(ctx).WithError(err).WithField("professor_id", professorID).Warn("failed to publish live change")
	}
}

func (s *LiveService) profileByHandle(ctx context.Context, handle string) (*model.Profile, error) {
	p, err := s.profiles.GetByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("no professor with that handle", nil)
	}
	return p, nil
}

func sameActivity(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
