package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"livepoll/internal/model"

	"github.com/redis/go-redis/v9"
)

// SessionCodeCache maps join codes to session metadata. The session repository stays authoritative.
type SessionCodeCache interface {
	SetMeta(ctx context.Context, code string, meta *model.SessionMeta) error
	GetMeta(ctx context.Context, code string) (*model.SessionMeta, error)
	Delete(ctx context.Context, code string) error
	Exists(ctx context.Context, code string) (bool, error)
}

type sessionCodeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCodeCache creates a Redis-backed code cache; entries expire after a day
func NewSessionCodeCache(client *redis.Client) SessionCodeCache {
	return &sessionCodeCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *sessionCodeCache) key(code string) string {
	return fmt.Sprintf("session:%s", code)
}

func (c *sessionCodeCache) SetMeta(ctx context.Context, code string, meta *model.SessionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(code), data, c.ttl).Err()
}

func (c *sessionCodeCache) GetMeta(ctx context.Context, code string) (*model.SessionMeta, error) {
	data, err := c.client.Get(ctx, c.key(code)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta model.SessionMeta
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *sessionCodeCache) Delete(ctx context.Context, code string) error {
	return c.client.Del(ctx, c.key(code)).Err()
}

func (c *sessionCodeCache) Exists(ctx context.Context, code string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(code)).Result()
	return n > 0, err
}

type localSessionCodeCache struct {
	mu    sync.RWMutex
	metas map[string]model.SessionMeta
}

// NewLocalSessionCodeCache keeps code lookups in process
func NewLocalSessionCodeCache() SessionCodeCache {
	return &localSessionCodeCache{metas: make(map[string]model.SessionMeta)}
}

func (c *localSessionCodeCache) SetMeta(_ context.Context, code string, meta *model.SessionMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metas[code] = *meta
	return nil
}

func (c *localSessionCodeCache) GetMeta(_ context.Context, code string) (*model.SessionMeta, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.metas[code]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

func (c *localSessionCodeCache) Delete(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.metas, code)
	return nil
}

func (c *localSessionCodeCache) Exists(_ context.Context, code string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.metas[code]
	return ok, nil
}
