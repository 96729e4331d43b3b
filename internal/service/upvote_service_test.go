package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"livepoll/internal/apperr"
	"livepoll/internal/cache"
	"livepoll/internal/model"
	"livepoll/internal/repository"
)

func qaFixture(t *testing.T) (*fixture, *model.Response) {
	t.Helper()
	f := newFixture(t)
	a := f.liveActivity(t, model.ActivityQA, nil)
	r := f.submit(t, a.ID, "author", model.ResponseContent{Text: "Why is the sky blue?"})
	return f, r
}

func TestToggleUpvoteIsIdempotentPerPair(t *testing.T) {
	f, r := qaFixture(t)
	ctx := context.Background()

	up, err := f.upvotes.Toggle(ctx, f.prof.ID, r.ID, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if up.Upvotes != 1 || !up.HasUpvoter("p1") {
		t.Fatalf("after first toggle: %+v", up)
	}
	down, err := f.upvotes.Toggle(ctx, f.prof.ID, r.ID, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if down.Upvotes != 0 || down.HasUpvoter("p1") {
		t.Errorf("toggle twice should restore the original state: %+v", down)
	}
}

func TestConcurrentUpvotesLoseNothing(t *testing.T) {
	f, r := qaFixture(t)
	ctx := context.Background()

	const voters = 50
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.upvotes.Toggle(ctx, f.prof.ID, r.ID, fmt.Sprintf("p%d", i)); err != nil {
				t.Errorf("toggle %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := f.store.Responses().GetByID(ctx, r.ID)
	if got.Upvotes != voters || len(got.UpvoterIDs) != voters {
		t.Errorf("upvotes=%d upvoters=%d, want %d", got.Upvotes, len(got.UpvoterIDs), voters)
	}
}

func TestToggleUpvoteErrors(t *testing.T) {
	f, r := qaFixture(t)
	ctx := context.Background()

	if _, err := f.upvotes.Toggle(ctx, f.prof.ID, "missing", "p1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing response: got %v", err)
	}
	if _, err := f.upvotes.Toggle(ctx, f.prof.ID, r.ID, ""); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("anonymous: got %v", err)
	}

	mc := f.liveActivity(t, model.ActivityMultipleChoice, optionsPatch("a", "b"))
	vote := f.submit(t, mc.ID, "p1", model.ResponseContent{OptionID: "a"})
	if _, err := f.upvotes.Toggle(ctx, f.prof.ID, vote.ID, "p2"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("upvoting a non-Q&A response: got %v", err)
	}
}

func TestToggleUpvoteRequiresVisibleQuestion(t *testing.T) {
	f, r := qaFixture(t)
	ctx := context.Background()

	if _, err := f.responses.Moderate(ctx, f.id, r.ID, model.ResponseRejected); err != nil {
		t.Fatal(err)
	}
	if _, err := f.upvotes.Toggle(ctx, f.prof.ID, r.ID, "p1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("rejected question: got %v", err)
	}
	if _, err := f.responses.Moderate(ctx, f.id, r.ID, model.ResponsePending); err != nil {
		t.Fatal(err)
	}
	if _, err := f.upvotes.Toggle(ctx, f.prof.ID, r.ID, "p1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("pending question: got %v", err)
	}
	if _, err := f.responses.Moderate(ctx, f.id, r.ID, model.ResponseFeatured); err != nil {
		t.Fatal(err)
	}

	other := f.addProfessor(t, "prof-2", "drjones")
	if _, err := f.upvotes.Toggle(ctx, other.ID, r.ID, "p1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("question from another professor's page: got %v", err)
	}

	if err := f.live.Deactivate(ctx, f.id); err != nil {
		t.Fatal(err)
	}
	if _, err := f.upvotes.Toggle(ctx, f.prof.ID, r.ID, "p1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("activity no longer live: got %v", err)
	}
	if err := f.live.Activate(ctx, f.id, r.ActivityID); err != nil {
		t.Fatal(err)
	}

	if _, err := f.activities.Transition(ctx, f.id, r.ActivityID, model.StatusLocked); err != nil {
		t.Fatal(err)
	}
	if _, err := f.upvotes.Toggle(ctx, f.prof.ID, r.ID, "p1"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("locked activity: got %v", err)
	}

	got, _ := f.store.Responses().GetByID(ctx, r.ID)
	if got.Upvotes != 0 {
		t.Errorf("rejected toggles changed upvotes to %d", got.Upvotes)
	}
}

// conflictingResponses loses the first n toggle races
type conflictingResponses struct {
	repository.ResponseRepo
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (c *conflictingResponses) ToggleUpvote(ctx context.Context, id, participantID string) (*model.Response, error) {
	c.mu.Lock()
	c.calls++
	lose := c.calls <= c.conflicts
	c.mu.Unlock()
	if lose {
		return nil, repository.ErrVersionConflict
	}
	return c.ResponseRepo.ToggleUpvote(ctx, id, participantID)
}

func TestToggleUpvoteRetriesConflicts(t *testing.T) {
	f, r := qaFixture(t)
	ctx := context.Background()

	flaky := &conflictingResponses{ResponseRepo: f.store.Responses(), conflicts: 3}
	svc := NewUpvoteService(f.store.Activities(), flaky, f.store.Profiles(), cache.NewNoopAggregateCache())
	got, err := svc.Toggle(ctx, f.prof.ID, r.ID, "p1")
	if err != nil {
		t.Fatalf("toggle should succeed after retries: %v", err)
	}
	if got.Upvotes != 1 || flaky.calls != 4 {
		t.Errorf("upvotes=%d calls=%d", got.Upvotes, flaky.calls)
	}

	stuck := &conflictingResponses{ResponseRepo: f.store.Responses(), conflicts: 1000}
	svc = NewUpvoteService(f.store.Activities(), stuck, f.store.Profiles(), cache.NewNoopAggregateCache())
	if _, err := svc.Toggle(ctx, f.prof.ID, r.ID, "p2"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("exhausted retries: got %v, want Conflict", err)
	}
}
