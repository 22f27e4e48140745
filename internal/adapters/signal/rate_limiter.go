package signal

import (
	"sync"
	"time"
)

// StartRateLimiter bounds presenter starts per client token over a sliding window.
// A zero limit disables it.
type StartRateLimiter struct {
	mu     sync.Mutex
	starts map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewStartRateLimiter(limit int, window time.Duration) *StartRateLimiter {
	return &StartRateLimiter{
		starts: make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records a start for key if the window has room. Otherwise it reports
// how long until the oldest start leaves the window.
func (rl *StartRateLimiter) Allow(key string) (bool, time.Duration) {
	if rl == nil || rl.limit <= 0 {
		return true, 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.recent(key, now)
	if len(recent) >= rl.limit {
		rl.starts[key] = recent
		return false, recent[0].Add(rl.window).Sub(now)
	}
	rl.starts[key] = append(recent, now)
	rl.prune(now)
	return true, 0
}

func (rl *StartRateLimiter) recent(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	ts := rl.starts[key]
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// prune forgets tokens with no start inside the window.
func (rl *StartRateLimiter) prune(now time.Time) {
	for key := range rl.starts {
		if len(rl.recent(key, now)) == 0 {
			delete(rl.starts, key)
		}
	}
}

func (rl *StartRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.starts)
}
