package policy

import (
	"time"

	"newswatch/internal/feed"
)

// Decision is the outcome of classifying one item.
type Decision int

const (
	Suppressed Decision = iota
	Batched
	Immediate
)

func (d Decision) String() string {
	switch d {
	case Immediate:
		return "immediate"
	case Batched:
		return "batched"
	default:
		return "suppressed"
	}
}

// Fixed thresholds. Unlike MinScore these are not user-configurable;
// they are policy data expressed as tables so the classifier stays a
// pure lookup-driven function.
const (
	// weekendMin is the minimum score that survives weekend mode.
	weekendMin = 8.0
)

// immediateMin maps quiet-hours state to the minimum score for
// immediate delivery. Index 1 = quiet.
var immediateMin = [2]float64{9.0, 9.5}

// Classify decides the delivery path for an item. Rules are evaluated
// in order and the first match wins:
//
//  1. disabled or paused        -> Suppressed
//  2. score below MinScore      -> Suppressed
//  3. weekend mode, score < 8.0 -> Suppressed
//  4. score >= immediate bar    -> Immediate (bar is 9.5 in quiet hours, else 9.0)
//  5. otherwise                 -> Batched
//
// The ordering is load-bearing: pause and the master switch always win
// over score, and weekend suppression runs before the immediate check
// so a sub-8.0 weekend item never reaches batching either.
func Classify(it feed.Item, p Policy, now time.Time) Decision {
	if !p.Enabled || p.Paused(now) {
		return Suppressed
	}
	if it.Score < p.MinScore {
		return Suppressed
	}
	if p.WeekendMode && isWeekend(now) && it.Score < weekendMin {
		return Suppressed
	}
	quiet := 0
	if p.QuietAt(now) {
		quiet = 1
	}
	if it.Score >= immediateMin[quiet] {
		return Immediate
	}
	return Batched
}

func isWeekend(now time.Time) bool {
	wd := now.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
