package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"livepoll/internal/model"

	"github.com/redis/go-redis/v9"
)

// AggregateCache holds recently computed aggregate views. Every response write invalidates.
//
// Invalidate bumps a per-activity generation. A view computed from a read that started
// before an invalidation is dropped by Set, so a slow reader cannot restore a stale view.
type AggregateCache interface {
	Get(ctx context.Context, activityID string) (*model.AggregateView, error)
	// Generation returns the current generation; read it before loading responses
	Generation(ctx context.Context, activityID string) (int64, error)
	// Set stores view only while the generation still equals gen
	Set(ctx context.Context, view *model.AggregateView, gen int64) error
	Invalidate(ctx context.Context, activityID string) error
}

type aggregateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAggregateCache creates a Redis-backed aggregate cache
func NewAggregateCache(client *redis.Client, ttl time.Duration) AggregateCache {
	return &aggregateCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *aggregateCache) key(activityID string) string {
	return fmt.Sprintf("aggregate:%s", activityID)
}

func (c *aggregateCache) genKey(activityID string) string {
	return fmt.Sprintf("aggregate:%s:gen", activityID)
}

func (c *aggregateCache) Get(ctx context.Context, activityID string) (*model.AggregateView, error) {
	data, err := c.client.Get(ctx, c.key(activityID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var view model.AggregateView
	if err := json.Unmarshal([]byte(data), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *aggregateCache) Generation(ctx context.Context, activityID string) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(activityID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *aggregateCache) Set(ctx context.Context, view *model.AggregateView, gen int64) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	genKey := c.genKey(view.ActivityID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(view.ActivityID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	// an invalidation raced the write; the view is stale anyway
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *aggregateCache) Invalidate(ctx context.Context, activityID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(activityID))
		pipe.Del(ctx, c.key(activityID))
		return nil
	})
	return err
}

type memoryAggregateCache struct {
	mu    sync.Mutex
	views map[string]*model.AggregateView
	gens  map[string]int64
}

// NewMemoryAggregateCache keeps views in process with the same generation rules as the Redis cache
func NewMemoryAggregateCache() AggregateCache {
	return &memoryAggregateCache{
		views: make(map[string]*model.AggregateView),
		gens:  make(map[string]int64),
	}
}

func (c *memoryAggregateCache) Get(_ context.Context, activityID string) (*model.AggregateView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[activityID]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (c *memoryAggregateCache) Generation(_ context.Context, activityID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[activityID], nil
}

func (c *memoryAggregateCache) Set(_ context.Context, view *model.AggregateView, gen int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[view.ActivityID] != gen {
		return nil
	}
	cp := *view
	c.views[view.ActivityID] = &cp
	return nil
}

func (c *memoryAggregateCache) Invalidate(_ context.Context, activityID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[activityID]++
	delete(c.views, activityID)
	return nil
}

type noopAggregateCache struct{}

// NewNoopAggregateCache disables caching; aggregates are recomputed on every read
func NewNoopAggregateCache() AggregateCache {
	return noopAggregateCache{}
}

func (noopAggregateCache) Get(context.Context, string) (*model.AggregateView, error) { return nil, nil }
func (noopAggregateCache) Generation(context.Context, string) (int64, error)        { return 0, nil }
func (noopAggregateCache) Set(context.Context, *model.AggregateView, int64) error   { return nil }
func (noopAggregateCache) Invalidate(context.Context, string) error                 { return nil }
