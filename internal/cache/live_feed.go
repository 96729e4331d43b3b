package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"livepoll/internal/logger"
	"livepoll/internal/model"

	"github.com/redis/go-redis/v9"
)

// LiveFeed fans out live pointer changes. The profile document stays the source of truth;
// the feed only tells watchers that it moved.
type LiveFeed interface {
	Publish(ctx context.Context, ev model.LiveEvent) error
	// Subscribe delivers events for professorID ("" for every professor) until ctx is done,
	// then closes the channel.
	Subscribe(ctx context.Context, professorID string) (<-chan model.LiveEvent, error)
}

const subscriberBuffer = 64

type redisLiveFeed struct {
	client *redis.Client
}

// NewRedisLiveFeed creates a live feed over Redis pub/sub, shared by every server instance
func NewRedisLiveFeed(client *redis.Client) LiveFeed {
	return &redisLiveFeed{client: client}
}

func (f *redisLiveFeed) channel(professorID string) string {
	return fmt.Sprintf("live:%s", professorID)
}

func (f *redisLiveFeed) Publish(ctx context.Context, ev model.LiveEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel(ev.ProfessorID), data).Err()
}

func (f *redisLiveFeed) Subscribe(ctx context.Context, professorID string) (<-chan model.LiveEvent, error) {
	var ps *redis.PubSub
	if professorID == "" {
		ps = f.client.PSubscribe(ctx, f.channel("*"))
	} else {
		ps = f.client.Subscribe(ctx, f.channel(professorID))
	}
	// Wait for the subscription confirmation so no publish after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	out := make(chan model.LiveEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev model.LiveEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.WithContext(ctx).WithError(err).Warn("dropping malformed live event")
					continue
				}
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

type localLiveFeed struct {
	mu   sync.Mutex
	subs map[string]map[chan model.LiveEvent]struct{}
}

// NewLocalLiveFeed creates an in-process live feed for single-instance deployments
func NewLocalLiveFeed() LiveFeed {
	return &localLiveFeed{subs: make(map[string]map[chan model.LiveEvent]struct{})}
}

func (f *localLiveFeed) Publish(ctx context.Context, ev model.LiveEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range []string{ev.ProfessorID, ""} {
		for ch := range f.subs[key] {
			select {
			case ch <- ev:
			default:
				logger.WithContext(ctx).WithField("professor_id", ev.ProfessorID).Warn("live subscriber is full, dropping event")
			}
		}
	}
	return nil
}

func (f *localLiveFeed) Subscribe(ctx context.Context, professorID string) (<-chan model.LiveEvent, error) {
	ch := make(chan model.LiveEvent, subscriberBuffer)

	f.mu.Lock()
	if f.subs[professorID] == nil {
		f.subs[professorID] = make(map[chan model.LiveEvent]struct{})
	}
	f.subs[professorID][ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs[professorID], ch)
		if len(f.subs[professorID]) == 0 {
			delete(f.subs, professorID)
		}
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}
