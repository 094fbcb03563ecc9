package policy

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	p := Default()
	if !p.Enabled || p.MinScore != 7.0 || p.QuietStart != 22 || p.QuietEnd != 7 || !p.WeekendMode {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.Paused(time.Now()) {
		t.Fatalf("default policy must not be paused")
	}
}

func TestNormalizeClampsToBounds(t *testing.T) {
	p := Policy{MinScore: 14, QuietStart: -3, QuietEnd: 99}.Normalize()
	if p.MinScore != 10 {
		t.Fatalf("expected min_score clamped to 10, got %v", p.MinScore)
	}
	if p.QuietStart != 0 || p.QuietEnd != 23 {
		t.Fatalf("expected hours clamped to 0/23, got %d/%d", p.QuietStart, p.QuietEnd)
	}

	p = Policy{MinScore: -1}.Normalize()
	if p.MinScore != 0 {
		t.Fatalf("expected min_score clamped to 0, got %v", p.MinScore)
	}
}

func TestApplyMergesPartialUpdate(t *testing.T) {
	p := Default()

	min := 8.5
	enabled := false
	got := p.Apply(Update{MinScore: &min, Enabled: &enabled})

	if got.MinScore != 8.5 || got.Enabled {
		t.Fatalf("update not applied: %+v", got)
	}
	// Untouched fields survive.
	if got.QuietStart != p.QuietStart || got.WeekendMode != p.WeekendMode {
		t.Fatalf("unset fields changed: %+v", got)
	}
}

func TestApplyClampsOutOfRangeUpdate(t *testing.T) {
	bad := 25.0
	hour := -5
	got := Default().Apply(Update{MinScore: &bad, QuietStart: &hour})
	if got.MinScore != 10 || got.QuietStart != 0 {
		t.Fatalf("expected clamped update, got %+v", got)
	}
}
