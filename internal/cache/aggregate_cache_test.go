package cache

import (
	"context"
	"testing"

	"livepoll/internal/model"
)

func TestMemoryAggregateCacheDropsStaleWrites(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryAggregateCache()

	gen, _ := c.Generation(ctx, "a1")
	if err := c.Invalidate(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, &model.AggregateView{ActivityID: "a1", TotalResponses: 2}, gen); err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Get(ctx, "a1"); v != nil {
		t.Fatalf("view computed before invalidation was cached: %+v", v)
	}

	gen, _ = c.Generation(ctx, "a1")
	if err := c.Set(ctx, &model.AggregateView{ActivityID: "a1", TotalResponses: 3}, gen); err != nil {
		t.Fatal(err)
	}
	v, _ := c.Get(ctx, "a1")
	if v == nil || v.TotalResponses != 3 {
		t.Fatalf("current view not cached: %+v", v)
	}

	c.Invalidate(ctx, "a1")
	if v, _ := c.Get(ctx, "a1"); v != nil {
		t.Errorf("invalidate left %+v", v)
	}
}
