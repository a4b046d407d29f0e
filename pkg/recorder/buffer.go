package recorder

import (
	"sync"
	"time"
)

// RollingBuffer keeps an ordered sequence of entries under two bounds at
// once: entries older than the window are dropped, and at most maxLen of
// the most recent entries are retained. Pruning preserves order and is
// idempotent.
type RollingBuffer[T any] struct {
	mu     sync.Mutex
	window time.Duration
	maxLen int
	at     func(T) time.Time
	items  []T
}

// NewRollingBuffer creates a buffer bounded by age window and maxLen. The
// at function extracts the timestamp used for age pruning.
func NewRollingBuffer[T any](window time.Duration, maxLen int, at func(T) time.Time) *RollingBuffer[T] {
	return &RollingBuffer[T]{window: window, maxLen: maxLen, at: at}
}

// Append adds an entry and prunes in the same critical section, so the
// length bound holds at all times.
func (b *RollingBuffer[T]) Append(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, v)
	b.pruneLocked(time.Now())
}

// Prune drops entries older than the window as of now, then caps the
// result to the most recent maxLen entries.
func (b *RollingBuffer[T]) Prune(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked(now)
}

func (b *RollingBuffer[T]) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.window)
	// Entries are appended in time order; find the first one still inside
	// the window instead of filtering the whole slice.
	start := 0
	for start < len(b.items) && !b.at(b.items[start]).After(cutoff) {
		start++
	}
	if start > 0 {
		b.items = append(b.items[:0], b.items[start:]...)
	}
	if b.maxLen > 0 && len(b.items) > b.maxLen {
		b.items = append(b.items[:0], b.items[len(b.items)-b.maxLen:]...)
	}
}

// Len returns the current number of retained entries.
func (b *RollingBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Last returns a copy of up to n most recent entries, oldest first.
func (b *RollingBuffer[T]) Last(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.items) {
		n = len(b.items)
	}
	out := make([]T, n)
	copy(out, b.items[len(b.items)-n:])
	return out
}

// Snapshot returns a copy of all retained entries, oldest first.
func (b *RollingBuffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}
