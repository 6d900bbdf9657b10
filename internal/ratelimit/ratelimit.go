// Package ratelimit provides sliding-window admission control keyed by
// client identity. State is in-process only and not persisted.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most limit events per identity within any sliding
// window interval.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

// New creates a limiter with a shared limit and window for all identities.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether the identity may perform another action, recording
// the event if admitted.
func (l *Limiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	events := l.hits[identity]

	cutoff := now.Add(-l.window)
	for len(events) > 0 && !events[0].After(cutoff) {
		events = events[1:]
	}

	if len(events) >= l.limit {
		l.hits[identity] = events
		return false
	}

	l.hits[identity] = append(events, now)
	return true
}

// Reset clears all recorded events.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits = make(map[string][]time.Time)
}
