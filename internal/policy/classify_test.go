package policy

import (
	"testing"
	"time"

	"newswatch/internal/feed"
)

// 2024-01-08 is a Monday, 2024-01-06 a Saturday.
func weekdayAt(hour int) time.Time {
	return time.Date(2024, 1, 8, hour, 0, 0, 0, time.UTC)
}

func weekendAt(hour int) time.Time {
	return time.Date(2024, 1, 6, hour, 0, 0, 0, time.UTC)
}

func item(score float64) feed.Item {
	return feed.Item{
		Headline: "headline",
		Source:   "src",
		URL:      "https://example.com/a",
		Score:    score,
	}
}

func TestClassifyBelowMinScoreAlwaysSuppressed(t *testing.T) {
	p := Default()
	for _, hour := range []int{2, 11, 23} {
		if got := Classify(item(6.9), p, weekdayAt(hour)); got != Suppressed {
			t.Fatalf("hour %d: expected Suppressed, got %v", hour, got)
		}
	}
}

func TestClassifyDisabledWinsOverScore(t *testing.T) {
	p := Default()
	p.Enabled = false
	if got := Classify(item(10.0), p, weekdayAt(11)); got != Suppressed {
		t.Fatalf("expected Suppressed, got %v", got)
	}
}

func TestClassifyPausedWinsOverScore(t *testing.T) {
	now := weekdayAt(11)
	p := Default()
	p.PausedUntil = now.Add(30 * time.Minute)
	if got := Classify(item(10.0), p, now); got != Suppressed {
		t.Fatalf("expected Suppressed while paused, got %v", got)
	}
	// Expired pause no longer suppresses.
	p.PausedUntil = now.Add(-time.Minute)
	if got := Classify(item(10.0), p, now); got != Immediate {
		t.Fatalf("expected Immediate after pause expiry, got %v", got)
	}
}

func TestQuietHoursWrapMidnight(t *testing.T) {
	p := Policy{QuietStart: 22, QuietEnd: 7}
	cases := []struct {
		hour  int
		quiet bool
	}{
		{23, true},
		{3, true},
		{22, true},
		{12, false},
		{7, false},
	}
	for _, c := range cases {
		if got := p.QuietAt(weekdayAt(c.hour)); got != c.quiet {
			t.Fatalf("hour %d: expected quiet=%v, got %v", c.hour, c.quiet, got)
		}
	}
}

func TestQuietHoursEmptyWindow(t *testing.T) {
	p := Policy{QuietStart: 8, QuietEnd: 8}
	for hour := 0; hour < 24; hour++ {
		if p.QuietAt(weekdayAt(hour)) {
			t.Fatalf("hour %d: start==end must be an empty window", hour)
		}
	}
}

func TestImmediateThresholdTightensDuringQuietHours(t *testing.T) {
	p := Default() // quiet 22..7
	it := item(9.2)

	if got := Classify(it, p, weekdayAt(14)); got != Immediate {
		t.Fatalf("14:00: expected Immediate, got %v", got)
	}
	if got := Classify(it, p, weekdayAt(2)); got != Batched {
		t.Fatalf("02:00: expected Batched (9.2 < 9.5), got %v", got)
	}
	if got := Classify(item(9.6), p, weekdayAt(2)); got != Immediate {
		t.Fatalf("02:00: expected Immediate for 9.6, got %v", got)
	}
}

func TestWeekendSuppressionPrecedesBatching(t *testing.T) {
	p := Default()
	if got := Classify(item(7.5), p, weekendAt(11)); got != Suppressed {
		t.Fatalf("expected Suppressed on weekend, got %v", got)
	}
	// At or above the weekend bar the normal path applies.
	if got := Classify(item(8.0), p, weekendAt(11)); got != Batched {
		t.Fatalf("expected Batched for 8.0 on weekend, got %v", got)
	}
	// Weekend mode off leaves the item on the batch path.
	p.WeekendMode = false
	if got := Classify(item(7.5), p, weekendAt(11)); got != Batched {
		t.Fatalf("expected Batched with weekend mode off, got %v", got)
	}
}

func TestClassifyDefaultPath(t *testing.T) {
	p := Default()
	if got := Classify(item(7.4), p, weekdayAt(11)); got != Batched {
		t.Fatalf("expected Batched, got %v", got)
	}
	if got := Classify(item(9.3), p, weekdayAt(11)); got != Immediate {
		t.Fatalf("expected Immediate, got %v", got)
	}
}
