// Package policy holds the user-configurable delivery policy and the
// pure classification rules applied to incoming items.
package policy

import "time"

// Policy is the persisted delivery configuration. It is owned by the
// engine facade and mutated only through explicit updates.
type Policy struct {
	Enabled     bool      `json:"enabled"`
	MinScore    float64   `json:"min_score"`
	QuietStart  int       `json:"quiet_hours_start"` // hour 0..23
	QuietEnd    int       `json:"quiet_hours_end"`   // hour 0..23; start > end wraps midnight
	WeekendMode bool      `json:"weekend_mode"`
	PausedUntil time.Time `json:"paused_until,omitempty"` // zero or past means not paused
}

// Default returns the policy used on first start and whenever the
// persisted record cannot be read.
func Default() Policy {
	return Policy{
		Enabled:     true,
		MinScore:    7.0,
		QuietStart:  22,
		QuietEnd:    7,
		WeekendMode: true,
	}
}

// Update is a partial policy change. Nil fields keep the current value.
type Update struct {
	Enabled     *bool      `json:"enabled,omitempty"`
	MinScore    *float64   `json:"min_score,omitempty"`
	QuietStart  *int       `json:"quiet_hours_start,omitempty"`
	QuietEnd    *int       `json:"quiet_hours_end,omitempty"`
	WeekendMode *bool      `json:"weekend_mode,omitempty"`
	PausedUntil *time.Time `json:"paused_until,omitempty"`
}

// Apply merges u into p and returns the normalized result.
func (p Policy) Apply(u Update) Policy {
	if u.Enabled != nil {
		p.Enabled = *u.Enabled
	}
	if u.MinScore != nil {
		p.MinScore = *u.MinScore
	}
	if u.QuietStart != nil {
		p.QuietStart = *u.QuietStart
	}
	if u.QuietEnd != nil {
		p.QuietEnd = *u.QuietEnd
	}
	if u.WeekendMode != nil {
		p.WeekendMode = *u.WeekendMode
	}
	if u.PausedUntil != nil {
		p.PausedUntil = *u.PausedUntil
	}
	return p.Normalize()
}

// Normalize clamps out-of-range values to the nearest valid bound.
// User-facing configuration never fails validation, it gets clamped.
func (p Policy) Normalize() Policy {
	p.MinScore = clampFloat(p.MinScore, 0, 10)
	p.QuietStart = clampInt(p.QuietStart, 0, 23)
	p.QuietEnd = clampInt(p.QuietEnd, 0, 23)
	return p
}

// Paused reports whether delivery is temporarily suspended at now.
func (p Policy) Paused(now time.Time) bool {
	return !p.PausedUntil.IsZero() && now.Before(p.PausedUntil)
}

// QuietAt reports whether now falls inside the quiet-hours window.
// A window with start > end spans midnight (e.g. 22..7 covers 22:00
// through 06:59). start == end is an empty window.
func (p Policy) QuietAt(now time.Time) bool {
	h := now.Hour()
	switch {
	case p.QuietStart == p.QuietEnd:
		return false
	case p.QuietStart < p.QuietEnd:
		return h >= p.QuietStart && h < p.QuietEnd
	default:
		return h >= p.QuietStart || h < p.QuietEnd
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
