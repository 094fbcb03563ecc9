// Package batch accumulates items held for digest delivery and decides,
// on each timer tick, whether the pending set is due for a flush.
package batch

import (
	"sync"
	"time"

	"newswatch/internal/feed"
	"newswatch/internal/policy"
)

// Flush interval table. The required interval is re-derived on every
// tick from the current clock and the pending priority mix, so a
// high-priority arrival can shrink the wait mid-window.
const (
	quietInterval   = 4 * time.Hour
	urgentInterval  = 30 * time.Minute
	defaultInterval = 2 * time.Hour

	// Business hours, local clock, inclusive.
	businessStart = 9
	businessEnd   = 18

	// highPendingMin marks a pending item as urgent for interval selection.
	highPendingMin = 8.0
)

// Accumulator holds the pending batch. Safe for concurrent use; every
// read-modify-write (enqueue, due-check-and-take) is one critical
// section so a tick racing an enqueue cannot lose items or double-flush.
type Accumulator struct {
	mu        sync.Mutex
	items     []feed.Item
	index     map[string]struct{} // url set within the current window
	lastFlush time.Time
}

func New(now time.Time) *Accumulator {
	return &Accumulator{
		index:     map[string]struct{}{},
		lastFlush: now,
	}
}

// Enqueue adds the item to the pending batch. Idempotent by URL: a
// duplicate within an unflushed window reports false and is dropped.
func (a *Accumulator) Enqueue(it feed.Item) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.index[it.URL]; dup {
		return false
	}
	a.index[it.URL] = struct{}{}
	a.items = append(a.items, it)
	return true
}

// Pending returns the number of items awaiting flush.
func (a *Accumulator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// TakeDue evaluates one tick. If the elapsed time since the last flush
// has reached the interval required for the current clock and pending
// mix, it returns the full pending snapshot, clears the batch, and
// stamps lastFlush = now. Otherwise it returns (nil, required, false).
//
// An empty batch is never due.
func (a *Accumulator) TakeDue(now time.Time, p policy.Policy) ([]feed.Item, time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.items) == 0 {
		return nil, 0, false
	}

	required := requiredInterval(now, p.QuietAt(now), a.anyHighLocked())
	if now.Sub(a.lastFlush) < required {
		return nil, required, false
	}

	out := a.items
	a.items = nil
	a.index = map[string]struct{}{}
	a.lastFlush = now
	return out, required, true
}

// LastFlush returns the timestamp of the most recent flush (or the
// construction time when none happened yet).
func (a *Accumulator) LastFlush() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastFlush
}

// SetLastFlush rewinds the flush clock. Test hook and restart seeding.
func (a *Accumulator) SetLastFlush(t time.Time) {
	a.mu.Lock()
	a.lastFlush = t
	a.mu.Unlock()
}

func (a *Accumulator) anyHighLocked() bool {
	for _, it := range a.items {
		if it.Score >= highPendingMin {
			return true
		}
	}
	return false
}

// requiredInterval selects the flush interval for this tick:
// quiet hours wait longest, business hours shrink to 30m when something
// urgent is pending, everything else digests every two hours.
func requiredInterval(now time.Time, quiet, hasHigh bool) time.Duration {
	if quiet {
		return quietInterval
	}
	h := now.Hour()
	if h >= businessStart && h <= businessEnd && hasHigh {
		return urgentInterval
	}
	return defaultInterval
}
