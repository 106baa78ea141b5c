package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// Limiter decides whether a caller identified by key may proceed. Implementations
// must be safe for concurrent use. A nil Limiter always allows.
type Limiter interface {
	Allow(key string) bool
}

// FixedWindow is an in-memory fixed-window limiter keyed by caller identity.
// A distributed deployment would swap this for a shared backend behind the
// same interface.
type FixedWindow struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]entry
}

type entry struct {
	count int
	reset time.Time
}

// NewFixedWindow builds a limiter allowing limit requests per window per key.
// Returns nil (allow everything) when limit or window are not positive.
func NewFixedWindow(limit int, window time.Duration, clock func() time.Time) *FixedWindow {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &FixedWindow{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]entry),
	}
}

// Allow records one request for key and reports whether it fits the window.
func (l *FixedWindow) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.store[key]
	if !ok || now.After(current.reset) {
		l.store[key] = entry{count: 1, reset: now.Add(l.window)}
		l.pruneExpiredLocked(now)
		return true
	}

	if current.count >= l.limit {
		return false
	}
	current.count++
	l.store[key] = current
	return true
}

func (l *FixedWindow) pruneExpiredLocked(now time.Time) {
	if len(l.store) == 0 {
		return
	}
	for key, current := range l.store {
		if now.After(current.reset) {
			delete(l.store, key)
		}
	}
}
