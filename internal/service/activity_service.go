package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"livepoll/internal/apperr"
	"livepoll/internal/cache"
	"livepoll/internal/logger"
	"livepoll/internal/model"
	"livepoll/internal/repository"

	"github.com/google/uuid"
)

// ActivityService handles activity CRUD and lifecycle
type ActivityService struct {
	activities       repository.ActivityRepo
	responses        repository.ResponseRepo
	folders          repository.FolderRepo
	profiles         repository.ProfileRepo
	live             *LiveService
	aggregates       cache.AggregateCache
	broadcaster      Broadcaster
	defaultProfanity bool
}

// NewActivityService creates a new activity service
func NewActivityService(
	activities repository.ActivityRepo,
	responses repository.ResponseRepo,
	folders repository.FolderRepo,
	profiles repository.ProfileRepo,
	live *LiveService,
	aggregates cache.AggregateCache,
	defaultProfanity bool,
) *ActivityService {
	return &ActivityService{
		activities:       activities,
		responses:        responses,
		folders:          folders,
		profiles:         profiles,
		live:             live,
		aggregates:       aggregates,
		broadcaster:      noopBroadcaster{},
		defaultProfanity: defaultProfanity,
	}
}

// SetBroadcaster sets the WebSocket broadcaster
func (s *ActivityService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Create makes a new DRAFT activity with type-appropriate defaults
func (s *ActivityService) Create(ctx context.Context, id Identity, typ model.ActivityType, folderID *string) (*model.Activity, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	if !typ.Valid() {
		return nil, apperr.InvalidInput(fmt.Sprintf("invalid activity type %q", typ), nil)
	}
	if folderID != nil && *folderID == "" {
		folderID = nil
	}
	if folderID != nil {
		f, err := s.folders.GetByID(ctx, *folderID)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, apperr.NotFound("folder not found", nil)
		}
	}

	settings := model.ActivitySettings{
		ResponseLimit:        1,
		OptionSelectionLimit: 1,
		ProfanityFilter:      s.defaultProfanity,
	}
	if p, err := s.profiles.GetByID(ctx, id.ProfessorID); err == nil && p != nil {
		if p.Defaults.ProfanityFilter != nil {
			settings.ProfanityFilter = *p.Defaults.ProfanityFilter
		}
		if p.Defaults.IsAnonymous != nil {
			settings.IsAnonymous = *p.Defaults.IsAnonymous
		}
	}

	now := time.Now()
	a := &model.Activity{
		ID:        uuid.NewString(),
		OwnerID:   id.ProfessorID,
		FolderID:  folderID,
		Type:      typ,
		Status:    model.StatusDraft,
		Title:     "Untitled Activity",
		Options:   defaultOptions(typ),
		Settings:  settings,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.activities.Create(ctx, a); err != nil {
		return nil, err
	}

	logger.WithContext(ctx).WithField("activity_id", a.ID).Info("activity created")
	return a, nil
}

func defaultOptions(typ model.ActivityType) []model.Option {
	var labels []string
	switch typ {
	case model.ActivityMultipleChoice, model.ActivityCompetition:
		labels = []string{"Option A", "Option B"}
	case model.ActivityRanking:
		labels = []string{"Option A", "Option B", "Option C"}
	default:
		return []model.Option{}
	}
	opts := make([]model.Option, len(labels))
	for i, l := range labels {
		opts[i] = model.Option{ID: uuid.NewString(), Content: model.RichText{Text: l}}
	}
	if typ == model.ActivityCompetition {
		correct := true
		opts[0].IsCorrect = &correct
	}
	return opts
}

// Update merges patch into the activity. Only the owner may update, never in TRASH.
func (s *ActivityService) Update(ctx context.Context, id Identity, activityID string, patch model.ActivityPatch) (*model.Activity, error) {
	a, err := s.owned(ctx, id, activityID)
	if err != nil {
		return nil, err
	}
	if patch.ExpectedRevision != nil && *patch.ExpectedRevision != a.Revision {
		return nil, apperr.Conflict("activity was modified by another editor", nil)
	}
	prevRevision := a.Revision

	if patch.Title != nil {
		a.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Prompt != nil {
		a.Prompt = *patch.Prompt
	}
	if patch.ImageURL != nil {
		a.ImageURL = *patch.ImageURL
	}
	if patch.FolderID != nil {
		if *patch.FolderID == "" {
			a.FolderID = nil
		} else {
			f, err := s.folders.GetByID(ctx, *patch.FolderID)
			if err != nil {
				return nil, err
			}
			if f == nil {
				return nil, apperr.NotFound("folder not found", nil)
			}
			folderID := *patch.FolderID
			a.FolderID = &folderID
		}
	}
	if patch.Settings != nil {
		if err := applySettings(&a.Settings, patch.Settings); err != nil {
			return nil, err
		}
	}
	if patch.Options != nil {
		opts, err := normalizeOptions(a.Type, *patch.Options)
		if err != nil {
			return nil, err
		}
		if err := s.requireStableOptions(ctx, a, opts); err != nil {
			return nil, err
		}
		a.Options = opts
	}
	if patch.Questions != nil {
		if a.Type != model.ActivitySurvey {
			return nil, apperr.InvalidInput("only surveys have sub-questions", nil)
		}
		qs, err := normalizeQuestions(*patch.Questions)
		if err != nil {
			return nil, err
		}
		a.Questions = qs
	}

	a.Revision++
	a.UpdatedAt = time.Now()
	if err := s.activities.Update(ctx, a, prevRevision); err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, apperr.Conflict("activity was modified by another editor", err)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.NotFound("activity not found", err)
		}
		return nil, err
	}

	s.invalidate(ctx, a.ID)
	s.broadcaster.BroadcastToParticipants(a.OwnerID, EventActivityUpdated, map[string]interface{}{
		"activityId": a.ID,
		"revision":   a.Revision,
	})
	return a, nil
}

func applySettings(dst *model.ActivitySettings, p *model.SettingsPatch) error {
	if p.IsAnonymous != nil {
		dst.IsAnonymous = *p.IsAnonymous
	}
	if p.ResponseLimit != nil {
		dst.ResponseLimit = *p.ResponseLimit
	}
	if p.OptionSelectionLimit != nil {
		if *p.OptionSelectionLimit < 1 {
			return apperr.InvalidInput("optionSelectionLimit must be at least 1", nil)
		}
		dst.OptionSelectionLimit = *p.OptionSelectionLimit
	}
	if p.AllowChangeAnswer != nil {
		dst.AllowChangeAnswer = *p.AllowChangeAnswer
	}
	if p.TimerSeconds != nil {
		switch {
		case *p.TimerSeconds < 0:
			return apperr.InvalidInput("timerSeconds must not be negative", nil)
		case *p.TimerSeconds == 0:
			dst.TimerSeconds = nil
		default:
			t := *p.TimerSeconds
			dst.TimerSeconds = &t
		}
	}
	if p.ShowCorrectAnswer != nil {
		dst.ShowCorrectAnswer = *p.ShowCorrectAnswer
	}
	if p.ModerationEnabled != nil {
		dst.ModerationEnabled = *p.ModerationEnabled
	}
	if p.ProfanityFilter != nil {
		dst.ProfanityFilter = *p.ProfanityFilter
	}
	if p.ResultsVisible != nil {
		dst.ResultsVisible = *p.ResultsVisible
	}
	return nil
}

// normalizeOptions requires content.text on every option, assigns missing ids and rejects duplicates
func normalizeOptions(typ model.ActivityType, in []model.Option) ([]model.Option, error) {
	if typ.HasOptions() && len(in) == 0 {
		return nil, apperr.InvalidInput("at least one option is required", nil)
	}
	out := make([]model.Option, len(in))
	seen := make(map[string]bool, len(in))
	for i, o := range in {
		if strings.TrimSpace(o.Content.Text) == "" {
			return nil, apperr.InvalidInput(fmt.Sprintf("option %d is missing content.text", i+1), nil)
		}
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		if seen[o.ID] {
			return nil, apperr.InvalidInput(fmt.Sprintf("duplicate option id %q", o.ID), nil)
		}
		seen[o.ID] = true
		out[i] = o
	}
	return out, nil
}

func normalizeQuestions(in []model.Activity) ([]model.Activity, error) {
	out := make([]model.Activity, len(in))
	seen := make(map[string]bool, len(in))
	for i, q := range in {
		if !q.Type.Valid() || q.Type == model.ActivitySurvey {
			return nil, apperr.InvalidInput(fmt.Sprintf("question %d has an invalid type", i+1), nil)
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if seen[q.ID] {
			return nil, apperr.InvalidInput(fmt.Sprintf("duplicate question id %q", q.ID), nil)
		}
		seen[q.ID] = true
		opts, err := normalizeOptions(q.Type, q.Options)
		if err != nil {
			return nil, err
		}
		if opts == nil {
			opts = []model.Option{}
		}
		q.Options = opts
		if q.Settings.OptionSelectionLimit < 1 {
			q.Settings.OptionSelectionLimit = 1
		}
		q.Questions = nil
		out[i] = q
	}
	return out, nil
}

// requireStableOptions keeps every option id that responses may reference
func (s *ActivityService) requireStableOptions(ctx context.Context, a *model.Activity, next []model.Option) error {
	if len(a.Options) == 0 {
		return nil
	}
	n, err := s.responses.CountLive(ctx, a.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	kept := make(map[string]bool, len(next))
	for _, o := range next {
		kept[o.ID] = true
	}
	for _, o := range a.Options {
		if !kept[o.ID] {
			return apperr.InvalidInput(fmt.Sprintf("option %q has responses and cannot be removed", o.ID), nil)
		}
	}
	return nil
}

// Get returns the participant view of a live activity
func (s *ActivityService) Get(ctx context.Context, activityID string) (*model.Activity, error) {
	a, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.NotFound("activity not found", nil)
	}
	liveID, err := s.live.liveActivityID(ctx, a.OwnerID)
	if err != nil {
		return nil, err
	}
	if err := RequireVisible(a, liveID); err != nil {
		return nil, err
	}
	return a.ParticipantView(), nil
}

// GetForEditor returns the full activity to its owner
func (s *ActivityService) GetForEditor(ctx context.Context, id Identity, activityID string) (*model.Activity, error) {
	return s.owned(ctx, id, activityID)
}

// SoftDelete moves the activity to TRASH. Deleting twice is a no-op.
func (s *ActivityService) SoftDelete(ctx context.Context, id Identity, activityID string) error {
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
		return nil
	}
	return s.trash(ctx, a)
}

func (s *ActivityService) trash(ctx context.Context, a *model.Activity) error {
	ok, err := s.activities.TransitionStatus(ctx, a.ID, a.Status, model.StatusTrash)
	if err != nil {
		return err
	}
	if !ok {
		// Raced with another transition; retry against the fresh status
		fresh, err := s.activities.GetByID(ctx, a.ID)
		if err != nil {
			return err
		}
		if fresh == nil || fresh.Status == model.StatusTrash {
			return nil
		}
		if _, err := s.activities.TransitionStatus(ctx, a.ID, fresh.Status, model.StatusTrash); err != nil {
			return err
		}
	}
	if err := s.live.clearIfCurrent(ctx, a.OwnerID, a.ID); err != nil {
		logger.WithContext(ctx).WithError(err).WithField("activity_id", a.ID).Warn("failed to clear live pointer for trashed activity")
	}
	logger.WithContext(ctx).WithField("activity_id", a.ID).Info("activity trashed")
	return nil
}

// List lazily yields activities: the caller's root activities when folderID is nil,
// otherwise everything inside the folder regardless of owner.
func (s *ActivityService) List(ctx context.Context, id Identity, folderID *string) iter.Seq2[*model.Activity, error] {
	if err := RequireIdentity(id); err != nil {
		return func(yield func(*model.Activity, error) bool) { yield(nil, err) }
	}
	if folderID != nil && *folderID == "" {
		folderID = nil
	}
	return s.activities.List(ctx, repository.ActivityFilter{OwnerID: id.ProfessorID, FolderID: folderID})
}

var allowedTransitions = map[model.ActivityStatus][]model.ActivityStatus{
	model.StatusDraft:  {model.StatusActive},
	model.StatusActive: {model.StatusLocked, model.StatusArchived},
	model.StatusLocked: {model.StatusArchived},
}

// Transition moves the activity along DRAFT -> ACTIVE -> LOCKED -> ARCHIVED.
// TRASH is reachable from any state; ARCHIVED -> DRAFT only through archive and reset.
func (s *ActivityService) Transition(ctx context.Context, id Identity, activityID string, to model.ActivityStatus) (*model.Activity, error) {
	a, err := s.owned(ctx, id, activityID)
	if err != nil {
		return nil, err
	}
	if to == model.StatusTrash {
		if err := s.trash(ctx, a); err != nil {
			return nil, err
		}
		a.Status = model.StatusTrash
		return a, nil
	}
	if a.Status == to {
		return a, nil
	}

	allowed := false
	for _, next := range allowedTransitions[a.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperr.Conflict(fmt.Sprintf("cannot move activity from %s to %s", a.Status, to), nil)
	}

	ok, err := s.activities.TransitionStatus(ctx, a.ID, a.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("activity status changed concurrently", nil)
	}
	a.Status = to
	s.invalidate(ctx, a.ID)
	s.broadcaster.BroadcastToParticipants(a.OwnerID, EventActivityUpdated, map[string]interface{}{
		"activityId": a.ID,
		"status":     a.Status,
	})
	return a, nil
}

// owned loads a non-trashed activity owned by the caller
func (s *ActivityService) owned(ctx context.Context, id Identity, activityID string) (*model.Activity, error) {
	if err := RequireIdentity(id); err != nil {
		return nil, err
	}
	a, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.NotFound("activity not found", nil)
	}
	if err := RequireOwner(id, a.OwnerID); err != nil {
		return nil, err
	}
	if a.Status == model.StatusTrash {
		return nil, apperr.NotFound("activity not found", nil)
	}
	return a, nil
}

func (s *ActivityService) invalidate(ctx context.Context, activityID string) {
	if err := s.aggregates.Invalidate(ctx, activityID); err != nil {
		logger.WithContext(ctx).WithError(err).WithField("activity_id", activityID).Warn("failed to invalidate aggregate cache")
	}
}
