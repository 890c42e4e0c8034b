package ratelimit

import (
	"context"
	"sync"
	"time"
)

// memoryWindow holds the admitted hits of one key, oldest first.
type memoryWindow struct {
	hits []time.Time
	span time.Duration
}

func (w *memoryWindow) trim(now time.Time) {
	cut := 0
	for cut < len(w.hits) && w.hits[cut].Before(now.Add(-w.span)) {
		cut++
	}
	w.hits = w.hits[cut:]
}

// MemoryLimiter keeps sliding windows in process memory. It backs the Redis limiter
// while Redis is unreachable.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok {
		w = &memoryWindow{}
		m.windows[key] = w
	}
	w.span = window
	w.trim(now)

	allowed := len(w.hits) < limit
	if allowed {
		w.hits = append(w.hits, now)
	}

	resetAt := now.Add(window)
	if len(w.hits) > 0 {
		resetAt = w.hits[0].Add(window)
	}

	return &Result{
		Allowed:   allowed,
		Remaining: max(limit-len(w.hits), 0),
		ResetAt:   resetAt,
	}, nil
}

// Prune drops keys with no hit left inside their window and returns how many went.
func (m *MemoryLimiter) Prune() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for key, w := range m.windows {
		w.trim(now)
		if len(w.hits) == 0 {
			delete(m.windows, key)
			pruned++
		}
	}
	return pruned
}

// Len reports how many keys are tracked.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
