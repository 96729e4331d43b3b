package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"livepoll/internal/cache"
	"livepoll/internal/config"
	"livepoll/internal/model"
	"livepoll/internal/repository/memory"
)

// fixture wires every service against one in-memory store
type fixture struct {
	store      *memory.Store
	feed       cache.LiveFeed
	live       *LiveService
	activities *ActivityService
	responses  *ResponseService
	upvotes    *UpvoteService
	runs       *RunService
	folders    *FolderService
	exports    *ExportService
	sessions   *SessionService
	prof       *model.Profile
	id         Identity
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithPolicy(t, config.PolicyReject)
}

func newFixtureWithPolicy(t *testing.T, policy string) *fixture {
	t.Helper()
	store := memory.New()
	feed := cache.NewLocalLiveFeed()
	aggregates := cache.NewNoopAggregateCache()

	live := NewLiveService(store.Activities(), store.Profiles(), feed)
	runs := NewRunService(store.Activities(), store.Runs(), aggregates)
	f := &fixture{
		store:      store,
		feed:       feed,
		live:       live,
		activities: NewActivityService(store.Activities(), store.Responses(), store.Folders(), store.Profiles(), live, aggregates, true),
		responses:  NewResponseService(store.Activities(), store.Responses(), store.Profiles(), ProfanityFunc(isBadWord), aggregates, policy),
		upvotes:    NewUpvoteService(store.Activities(), store.Responses(), store.Profiles(), aggregates),
		runs:       runs,
		folders:    NewFolderService(store.Folders(), store.Activities()),
		exports:    NewExportService(store.Activities(), store.Responses(), runs),
	}
	auth := NewAuthService(store.Profiles(), "fixture-secret")
	f.sessions = NewSessionService(store.Sessions(), store.Activities(), store.Profiles(), cache.NewLocalSessionCodeCache(), auth)
	f.prof = f.addProfessor(t, "prof-1", "drsmith")
	f.id = Identity{ProfessorID: f.prof.ID}
	return f
}

func isBadWord(text string) bool {
	return text == "darn" || text == "darn it"
}

func (f *fixture) addProfessor(t *testing.T, id, handle string) *model.Profile {
	t.Helper()
	p := &model.Profile{ID: id, Handle: handle, Name: handle, CreatedAt: time.Now()}
	if err := f.store.Profiles().Create(context.Background(), p); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p
}

// liveActivity creates an activity of typ, applies patch and makes it live
func (f *fixture) liveActivity(t *testing.T, typ model.ActivityType, patch *model.ActivityPatch) *model.Activity {
	t.Helper()
	ctx := context.Background()
	a, err := f.activities.Create(ctx, f.id, typ, nil)
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	if patch != nil {
		if a, err = f.activities.Update(ctx, f.id, a.ID, *patch); err != nil {
			t.Fatalf("update activity: %v", err)
		}
	}
	if err := f.live.Activate(ctx, f.id, a.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	a, err = f.activities.GetForEditor(ctx, f.id, a.ID)
	if err != nil {
		t.Fatalf("reload activity: %v", err)
	}
	return a
}

func (f *fixture) submit(t *testing.T, activityID, participantID string, c model.ResponseContent) *model.Response {
	t.Helper()
	r, err := f.responses.Submit(context.Background(), activityID, participantID, c)
	if err != nil {
		t.Fatalf("submit for %s: %v", participantID, err)
	}
	return r
}

func ptr[T any](v T) *T { return &v }

func optionsPatch(labels ...string) *model.ActivityPatch {
	opts := make([]model.Option, len(labels))
	for i, l := range labels {
		opts[i] = model.Option{ID: l, Content: model.RichText{Text: l}}
	}
	return &model.ActivityPatch{Options: &opts}
}

// stubSummarizer returns a canned result or error, optionally blocking until release is closed
type stubSummarizer struct {
	mu      sync.Mutex
	calls   int
	got     []string
	result  *model.SynthesisResult
	err     error
	release chan struct{}
}

func (s *stubSummarizer) Summarize(ctx context.Context, question string, responses []string) (*model.SynthesisResult, error) {
	s.mu.Lock()
	s.calls++
	s.got = append([]string(nil), responses...)
	s.mu.Unlock()
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.result, s.err
}
