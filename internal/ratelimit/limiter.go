// Package ratelimit provides a bounded, time-expiring request limiter.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter counts requests per key within a fixed window. The map is bounded:
// expired entries are swept lazily, and when the bound is still exceeded the
// oldest window is evicted. A single instance is owned by the API server;
// there is no package-level state.
type Limiter struct {
	limit      int
	window     time.Duration
	maxEntries int

	mu        sync.Mutex
	entries   map[string]*window
	lastSweep time.Time
}

type window struct {
	count   int
	startAt time.Time
}

// NewLimiter creates a limiter allowing limit requests per window per key,
// tracking at most maxEntries keys.
func NewLimiter(limit int, windowDur time.Duration, maxEntries int) *Limiter {
	if limit <= 0 {
		limit = 100
	}
	if windowDur <= 0 {
		windowDur = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Limiter{
		limit:      limit,
		window:     windowDur,
		maxEntries: maxEntries,
		entries:    make(map[string]*window),
	}
}

// Allow records one request for key at time now and reports whether it is
// within the limit.
func (l *Limiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
		l.lastSweep = now
	}

	w := l.entries[key]
	if w == nil {
		if len(l.entries) >= l.maxEntries {
			l.evictOldest()
		}
		w = &window{startAt: now}
		l.entries[key] = w
	} else if now.Sub(w.startAt) >= l.window {
		w.count = 0
		w.startAt = now
	}

	w.count++
	return w.count <= l.limit
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) sweep(now time.Time) {
	for key, w := range l.entries {
		if now.Sub(w.startAt) >= l.window {
			delete(l.entries, key)
		}
	}
}

func (l *Limiter) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for key, w := range l.entries {
		if oldestKey == "" || w.startAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = w.startAt
		}
	}
	if oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}
