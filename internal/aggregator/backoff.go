package aggregator

import (
	"sync"
	"time"
)

type backoffEntry struct {
	limitedAt  time.Time
	retryAfter time.Duration
}

// BackoffRegistry remembers which sources recently answered RateLimited. It
// is the only state shared between aggregation calls and is safe for
// concurrent use.
type BackoffRegistry struct {
	entries        map[string]backoffEntry
	now            func() time.Time
	defaultBackoff time.Duration
	mu             sync.Mutex
}

// NewBackoffRegistry creates a registry. defaultBackoff applies when a
// RateLimited failure carries no retry hint.
func NewBackoffRegistry(defaultBackoff time.Duration) *BackoffRegistry {
	return NewBackoffRegistryWithClock(defaultBackoff, time.Now)
}

// NewBackoffRegistryWithClock creates a registry reading time from now.
func NewBackoffRegistryWithClock(defaultBackoff time.Duration, now func() time.Time) *BackoffRegistry {
	return &BackoffRegistry{
		entries:        make(map[string]backoffEntry),
		now:            now,
		defaultBackoff: defaultBackoff,
	}
}

// Record notes a RateLimited answer from source.
func (b *BackoffRegistry) Record(source string, retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = b.defaultBackoff
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[source] = backoffEntry{limitedAt: b.now(), retryAfter: retryAfter}
}

// Blocked reports whether source is still backing off and for how long.
func (b *BackoffRegistry) Blocked(source string) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[source]
	if !ok {
		return false, 0
	}

	remaining := entry.limitedAt.Add(entry.retryAfter).Sub(b.now())
	if remaining <= 0 {
		delete(b.entries, source)

		return false, 0
	}

	return true, remaining
}

// Clear forgets any backoff for source.
func (b *BackoffRegistry) Clear(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, source)
}
