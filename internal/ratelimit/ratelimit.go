// Package ratelimit implements a per-client fixed-window request limiter
// for the chat endpoint. State is process-local; there is no persistence
// across restarts and no cross-instance sharing.
package ratelimit

import (
	"sync"
	"time"
)

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per client key within a fixed window.
// The key should be a stable client identifier (resolved remote IP or the
// anonymous device id) so clients cannot dodge throttling by rotating
// request metadata.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// New creates a limiter allowing limit requests per window per key and
// starts the background eviction goroutine.
func New(limit int, window time.Duration) *Limiter {
	l := newLimiter(limit, window, time.Now)
	l.startEviction()
	return l
}

// newLimiter builds a limiter without the sweeper; tests inject a clock.
func newLimiter(limit int, window time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     now,
		done:    make(chan struct{}),
	}
}

// Allow reports whether a request from key may proceed, counting it if so.
// The first request for a key, or a request after the window elapsed,
// replaces the entry; otherwise the counter increments until the ceiling.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.entries[key] = &entry{count: 1, resetAt: now.Add(l.window)}
		return true
	}

	if e.count >= l.limit {
		return false
	}
	e.count++
	return true
}

// startEviction runs a background goroutine that periodically removes
// expired entries, preventing unbounded growth in long-lived processes.
func (l *Limiter) startEviction() {
	go func() {
		ticker := time.NewTicker(l.window)
		defer ticker.Stop()
		for {
			select {
			case <-l.done:
				return
			case <-ticker.C:
				l.mu.Lock()
				now := l.now()
				for key, e := range l.entries {
					if now.After(e.resetAt) {
						delete(l.entries, key)
					}
				}
				l.mu.Unlock()
			}
		}
	}()
}

// Close stops the eviction goroutine.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.done) })
}
