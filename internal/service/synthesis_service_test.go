package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"livepoll/internal/apperr"
	"livepoll/internal/model"
)

func newSynthesis(f *fixture, s Summarizer, capacity int) *SynthesisService {
	return NewSynthesisService(
		f.store.Activities(), f.store.Responses(), f.store.Runs(), f.store.Syntheses(), f.store.Sessions(),
		s, NewCallerLimiter(capacity, time.Minute), 5*time.Second,
	)
}

func TestSynthesisRunsInBackground(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.liveActivity(t, model.ActivityOpenEnded, nil)
	f.submit(t, a.ID, "p1", model.ResponseContent{Text: "Energy is conserved"})
	f.submit(t, a.ID, "p2", model.ResponseContent{Text: "Energy is created by motion"})

	stub := &stubSummarizer{
		result:  &model.SynthesisResult{Consensus: "Mixed understanding", KeyInferences: []string{"k"}},
		release: make(chan struct{}),
	}
	svc := newSynthesis(f, stub, 10)

	syn, err := svc.Request(ctx, f.id, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if syn.Status != model.SynthesisPending || syn.ResponseCount != 2 {
		t.Errorf("request returned %+v", syn)
	}

	// other operations proceed while the summarizer is blocked
	f.submit(t, a.ID, "p3", model.ResponseContent{Text: "Not sure"})
	got, err := svc.Get(ctx, f.id, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status == model.SynthesisReady {
		t.Error("synthesis ready before the summarizer returned")
	}

	close(stub.release)
	svc.Wait()

	got, err = svc.Get(ctx, f.id, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SynthesisReady || got.Result == nil || got.Result.Consensus != "Mixed understanding" || got.ReadyAt == nil {
		t.Errorf("final synthesis %+v", got)
	}
	if len(stub.got) != 2 {
		t.Errorf("summarizer saw %d responses, want the 2 present at request time", len(stub.got))
	}
}

func TestSynthesisFailureIsPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.liveActivity(t, model.ActivityWordCloud, nil)
	f.submit(t, a.ID, "p1", model.ResponseContent{Text: "gravity"})

	svc := newSynthesis(f, &stubSummarizer{err: errors.New("model overloaded")}, 10)
	if _, err := svc.Request(ctx, f.id, a.ID); err != nil {
		t.Fatal(err)
	}
	svc.Wait()

	got, _ := svc.Get(ctx, f.id, a.ID)
	if got.Status != model.SynthesisFailed || got.Error == "" || got.Result != nil {
		t.Errorf("failed synthesis %+v", got)
	}
}

func TestSynthesisRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.liveActivity(t, model.ActivityOpenEnded, nil)
	f.submit(t, a.ID, "p1", model.ResponseContent{Text: "answer"})

	svc := newSynthesis(f, MockAI{}, 2)
	for i := 0; i < 2; i++ {
		if _, err := svc.Request(ctx, f.id, a.ID); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if _, err := svc.Request(ctx, f.id, a.ID); !errors.Is(err, apperr.ErrRateLimited) {
		t.Errorf("third request: got %v, want RateLimited", err)
	}
	svc.Wait()
}

func TestSynthesisRejectedRequestsKeepBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.liveActivity(t, model.ActivityOpenEnded, nil)
	f.submit(t, a.ID, "p1", model.ResponseContent{Text: "answer"})

	svc := newSynthesis(f, MockAI{}, 1)
	if _, err := svc.Request(ctx, f.id, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown activity: got %v", err)
	}
	intruder := Identity{ProfessorID: "intruder"}
	if _, err := svc.Request(ctx, intruder, a.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-owner: got %v", err)
	}
	if _, err := svc.Request(ctx, f.id, a.ID); err != nil {
		t.Fatalf("owner request after rejected calls: %v", err)
	}
	svc.Wait()
}

func TestSynthesisUsesLatestRunWhenLiveSetEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.liveActivity(t, model.ActivityOpenEnded, nil)
	f.submit(t, a.ID, "p1", model.ResponseContent{Text: "archived thought"})
	if _, err := f.runs.ArchiveAndReset(ctx, f.id, a.ID, "r1"); err != nil {
		t.Fatal(err)
	}

	stub := &stubSummarizer{result: &model.SynthesisResult{Consensus: "ok"}}
	svc := newSynthesis(f, stub, 10)
	if _, err := svc.Request(ctx, f.id, a.ID); err != nil {
		t.Fatal(err)
	}
	svc.Wait()
	if len(stub.got) != 1 || stub.got[0] != "archived thought" {
		t.Errorf("summarizer input %v", stub.got)
	}
}

func TestSynthesisErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.liveActivity(t, model.ActivityOpenEnded, nil)
	svc := newSynthesis(f, MockAI{}, 10)

	if _, err := svc.Request(ctx, f.id, a.ID); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("no responses: got %v", err)
	}
	if _, err := svc.Request(ctx, Identity{ProfessorID: "intruder"}, a.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("non-owner: got %v", err)
	}
	if _, err := svc.Get(ctx, f.id, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("no synthesis yet: got %v", err)
	}
}

func TestCallerLimiterWindow(t *testing.T) {
	l := NewCallerLimiter(10, time.Minute)
	for i := 0; i < 10; i++ {
		if !l.Allow("prof") {
			t.Fatalf("call %d denied", i+1)
		}
	}
	if l.Allow("prof") {
		t.Error("11th call within the window should be denied")
	}
	if !l.Allow("someone-else") {
		t.Error("buckets must be per caller")
	}
}

func TestDraftFallsBackToMock(t *testing.T) {
	ctx := context.Background()
	id := Identity{ProfessorID: "prof"}

	svc := NewDraftService(failingDrafter{}, NewCallerLimiter(1, time.Minute))
	d, err := svc.Draft(ctx, id, "Thermodynamics", model.ActivityMultipleChoice)
	if err != nil {
		t.Fatal(err)
	}
	if d.Source != "mock" || len(d.Options) == 0 {
		t.Errorf("fallback draft %+v", d)
	}
	if _, err := svc.Draft(ctx, id, "Thermodynamics", ""); !errors.Is(err, apperr.ErrRateLimited) {
		t.Errorf("second draft: got %v", err)
	}
	if _, err := svc.Draft(ctx, Identity{ProfessorID: "other"}, " ", ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("blank topic: got %v", err)
	}
}

type failingDrafter struct{}

func (failingDrafter) Draft(context.Context, string, model.ActivityType) (*model.Draft, error) {
	return nil, errors.New("upstream down")
}
