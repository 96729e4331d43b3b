package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CallerLimiter is a process-local token bucket per caller id. It bounds AI cost and
// is reset on restart; nothing relies on it for correctness.
type CallerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	limit    rate.Limit
	burst    int
	entryTTL time.Duration
}

// NewCallerLimiter allows capacity calls per window per caller, refilling continuously
func NewCallerLimiter(capacity int, window time.Duration) *CallerLimiter {
	return &CallerLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		limit:    rate.Every(window / time.Duration(capacity)),
		burst:    capacity,
		entryTTL: 10 * window,
	}
}

// Allow consumes one token for caller
func (l *CallerLimiter) Allow(caller string) bool {
	return l.getLimiter(caller).Allow()
}

func (l *CallerLimiter) getLimiter(caller string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, ts := range l.lastSeen {
		if now.Sub(ts) > l.entryTTL {
			delete(l.limiters, key)
			delete(l.lastSeen, key)
		}
	}

	if limiter, ok := l.limiters[caller]; ok {
		l.lastSeen[caller] = now
		return limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters[caller] = limiter
	l.lastSeen[caller] = now
	return limiter
}
