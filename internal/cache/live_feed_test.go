package cache

import (
	"context"
	"testing"
	"time"

	"livepoll/internal/model"
)

func strPtr(s string) *string { return &s }

func TestLocalLiveFeedDeliversToProfessorAndWildcard(t *testing.T) {
	feed := NewLocalLiveFeed()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, _ := feed.Subscribe(ctx, "prof-1")
	all, _ := feed.Subscribe(ctx, "")
	other, _ := feed.Subscribe(ctx, "prof-2")

	ev := model.LiveEvent{ProfessorID: "prof-1", ActivityID: strPtr("a1"), At: time.Now()}
	if err := feed.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, ch := range map[string]<-chan model.LiveEvent{"mine": mine, "all": all} {
		select {
		case got := <-ch:
			if got.ActivityID == nil || *got.ActivityID != "a1" {
				t.Errorf("%s: unexpected event %+v", name, got)
			}
		case <-time.After(time.Second):
			t.Errorf("%s: no event", name)
		}
	}
	select {
	case got := <-other:
		t.Errorf("unrelated subscriber received %+v", got)
	default:
	}
}

func TestLocalLiveFeedClosesOnCancel(t *testing.T) {
	feed := NewLocalLiveFeed()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := feed.Subscribe(ctx, "prof-1")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	// Publishing after the subscriber left must not panic
	_ = feed.Publish(context.Background(), model.LiveEvent{ProfessorID: "prof-1"})
}
