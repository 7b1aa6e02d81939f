package signal

import (
	"sync"
	"time"
)

// joinLimiter is a sliding-window limiter on joinRoom attempts, keyed per
// connection so one flapping client cannot hammer the registry.
type joinLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
}

func newJoinLimiter(limit int, interval time.Duration) *joinLimiter {
	if limit <= 0 {
		limit = 5
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &joinLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

// forget drops a key's history. Called on disconnect so per-connection keys
// do not accumulate.
func (rl *joinLimiter) forget(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, key)
}

func (rl *joinLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[key]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[key] = fresh
		return false
	}
	rl.history[key] = append(fresh, now)
	return true
}
