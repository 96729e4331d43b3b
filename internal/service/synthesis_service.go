package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"livepoll/internal/apperr"
	"livepoll/internal/logger"
	"livepoll/internal/metrics"
	"livepoll/internal/model"
	"livepoll/internal/repository"

	"github.com/sirupsen/logrus"
)

const maxSynthesisResponses = 200

// SynthesisService runs the summarizer over an activity's responses in the background
type SynthesisService struct {
	activities  repository.ActivityRepo
	responses   repository.ResponseRepo
	runs        repository.RunRepo
	syntheses   repository.SynthesisRepo
	sessions    repository.SessionRepo
	summarizer  Summarizer
	limiter     *CallerLimiter
	timeout     time.Duration
	broadcaster Broadcaster
	wg          sync.WaitGroup
}

// NewSynthesisService creates a new synthesis service
func NewSynthesisService(
	activities repository.ActivityRepo,
	responses repository.ResponseRepo,
	runs repository.RunRepo,
	syntheses repository.SynthesisRepo,
	sessions repository.SessionRepo,
	summarizer Summarizer,
	limiter *CallerLimiter,
	timeout time.Duration,
) *SynthesisService {
	if summarizer == nil {
		summarizer = MockAI{}
	}
	return &SynthesisService{
		activities:  activities,
		responses:   responses,
		runs:        runs,
		syntheses:   syntheses,
		sessions:    sessions,
		summarizer:  summarizer,
		limiter:     limiter,
		timeout:     timeout,
		broadcaster: noopBroadcaster{},
	}
}

// SetBroadcaster sets the WebSocket broadcaster
func (s *SynthesisService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Request persists a pending synthesis and returns immediately; the result lands later via Get.
// With no live responses the most recent run is synthesized instead.
func (s *SynthesisService) Request(ctx context.Context, id Identity, activityID string) (*model.Synthesis, error) {
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
	if !s.limiter.Allow(id.ProfessorID) {
		return nil, apperr.RateLimited("too many AI requests, try again in a minute")
	}

	rs, err := s.responses.ListLive(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		if rs, err = s.latestRunResponses(ctx, a.ID); err != nil {
			return nil, err
		}
	}
	texts := describeResponses(a, rs)
	if len(texts) == 0 {
		return nil, apperr.InvalidInput("there are no responses to synthesize", nil)
	}

	syn := &model.Synthesis{
		ActivityID:    a.ID,
		OwnerID:       a.OwnerID,
		Status:        model.SynthesisPending,
		ResponseCount: len(texts),
		CreatedAt:     time.Now(),
	}
	if err := s.syntheses.Save(ctx, syn); err != nil {
		return nil, err
	}
	metrics.IncSynthesis(string(model.SynthesisPending))

	pending := *syn
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		s.run(bg, a, &pending, texts)
	}()
	return syn, nil
}

func (s *SynthesisService) run(ctx context.Context, a *model.Activity, syn *model.Synthesis, texts []string) {
	log := logger.WithContext(ctx).WithFields(logrus.Fields{
		"activity_id": a.ID,
		"responses":   len(texts),
	})

	syn.Status = model.SynthesisGenerating
	if err := s.syntheses.Save(ctx, syn); err != nil {
		log.WithError(err).Warn("failed to mark synthesis generating")
	}

	question := strings.TrimSpace(a.Title + " " + a.Prompt.Text)
	result, err := s.summarizer.Summarize(ctx, question, texts)
	now := time.Now()
	syn.ReadyAt = &now
	if err != nil {
		syn.Status = model.SynthesisFailed
		syn.Error = apperr.Upstream("summarization failed", err).Error()
		log.WithError(err).Error("synthesis failed")
	} else {
		syn.Status = model.SynthesisReady
		syn.Result = result
		log.Info("synthesis ready")
	}
	metrics.IncSynthesis(string(syn.Status))

	if err := s.syntheses.Save(ctx, syn); err != nil {
		log.WithError(err).Error("failed to persist synthesis")
		return
	}
	if syn.Status == model.SynthesisReady {
		n, err := s.sessions.SetAnalysis(ctx, a.OwnerID, a.ID, syn.Result)
		if err != nil {
			log.WithError(err).Warn("failed to copy synthesis onto sessions")
		} else if n > 0 {
			log.WithField("sessions", n).Debug("synthesis copied onto sessions")
		}
	}
	s.broadcaster.BroadcastToPresenter(a.OwnerID, EventSynthesisReady, syn)
}

// Get returns the latest synthesis of an activity
func (s *SynthesisService) Get(ctx context.Context, id Identity, activityID string) (*model.Synthesis, error) {
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
	syn, err := s.syntheses.Get(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if syn == nil {
		return nil, apperr.NotFound("no synthesis for this activity", nil)
	}
	return syn, nil
}

// Wait blocks until every background synthesis has finished
func (s *SynthesisService) Wait() {
	s.wg.Wait()
}

func (s *SynthesisService) latestRunResponses(ctx context.Context, activityID string) ([]*model.Response, error) {
	runs, err := s.runs.ListByActivity(ctx, activityID)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return s.runs.Responses(ctx, runs[0].ID)
}

// describeResponses renders responses as plain text lines for the summarizer
func describeResponses(a *model.Activity, rs []*model.Response) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		if a.Type == model.ActivityQA && r.Status == model.ResponseRejected {
			continue
		}
		if line := describeContent(a, r.Content); line != "" {
			out = append(out, line)
		}
		if len(out) == maxSynthesisResponses {
			break
		}
	}
	return out
}

func describeContent(a *model.Activity, c model.ResponseContent) string {
	label := func(optionID string) string {
		if o, ok := a.FindOption(optionID); ok {
			return o.Content.Text
		}
		return ""
	}
	switch a.Type {
	case model.ActivityMultipleChoice, model.ActivityCompetition:
		ids := c.OptionIDs
		if c.OptionID != "" {
			ids = append([]string{c.OptionID}, ids...)
		}
		labels := make([]string, 0, len(ids))
		for _, id := range ids {
			if l := label(id); l != "" {
				labels = append(labels, l)
			}
		}
		return strings.Join(labels, ", ")
	case model.ActivityRanking:
		labels := make([]string, 0, len(c.Order))
		for _, id := range c.Order {
			labels = append(labels, label(id))
		}
		return strings.Join(labels, " > ")
	case model.ActivitySurvey:
		parts := make([]string, 0, len(c.Answers))
		for i := range a.Questions {
			q := &a.Questions[i]
			if ans, ok := c.Answers[q.ID]; ok {
				if line := describeContent(q, ans); line != "" {
					parts = append(parts, q.Title+": "+line)
				}
			}
		}
		return strings.Join(parts, "; ")
	case model.ActivityClickableImage:
		return ""
	}
	return c.Text
}
