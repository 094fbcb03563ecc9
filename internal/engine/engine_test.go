package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"newswatch/internal/dispatch"
	"newswatch/internal/feed"
	"newswatch/internal/policy"
	"newswatch/internal/sink"
	"newswatch/pkg/logx"
)

type fakeSink struct {
	mu    sync.Mutex
	calls []sink.Notification
}

func (f *fakeSink) Notify(ctx context.Context, n sink.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSink) last() sink.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// 2024-01-08 is a Monday.
var weekday11 = time.Date(2024, 1, 8, 11, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, at time.Time) (*Engine, *fakeSink, *time.Time) {
	t.Helper()
	fs := &fakeSink{}
	disp := dispatch.New(dispatch.Config{RatePerSec: 1000}, fs, nil, logx.Nop())
	e := New(Config{}, nil, disp, logx.Nop())

	now := at
	e.now = func() time.Time { return now }
	e.acc.SetLastFlush(at)
	return e, fs, &now
}

func item(url string, score float64) feed.Item {
	return feed.Item{Headline: "headline " + url, Source: "reuters", URL: url, Score: score}
}

func TestHighScoreItemDeliveredImmediately(t *testing.T) {
	e, fs, _ := newTestEngine(t, weekday11)

	dec := e.HandleIncoming(context.Background(), item("https://example.com/a", 9.3))
	if dec != policy.Immediate {
		t.Fatalf("expected Immediate, got %v", dec)
	}
	if fs.count() != 1 {
		t.Fatalf("expected 1 sink call, got %d", fs.count())
	}
	if !strings.Contains(fs.last().Title, "CRITICAL") {
		t.Fatalf("expected CRITICAL band, got %q", fs.last().Title)
	}
}

func TestMidScoreItemBatchedAndFlushedAfterInterval(t *testing.T) {
	e, fs, now := newTestEngine(t, weekday11)
	ctx := context.Background()

	dec := e.HandleIncoming(ctx, item("https://example.com/a", 7.4))
	if dec != policy.Batched {
		t.Fatalf("expected Batched, got %v", dec)
	}
	if fs.count() != 0 {
		t.Fatalf("batched item must not hit the sink yet")
	}

	// No high-priority pending: required interval is 2h.
	e.FlushTick(ctx)
	if fs.count() != 0 {
		t.Fatalf("flush fired before the interval elapsed")
	}

	*now = now.Add(2*time.Hour + time.Minute)
	e.FlushTick(ctx)
	if fs.count() != 1 {
		t.Fatalf("expected flush after 2h, sink calls=%d", fs.count())
	}
	if e.Stats().Flushes != 1 {
		t.Fatalf("flush counter not bumped: %+v", e.Stats())
	}
}

func TestPauseSuppressesEverything(t *testing.T) {
	e, fs, now := newTestEngine(t, weekday11)
	ctx := context.Background()

	e.Pause(ctx, 30*time.Minute)
	if dec := e.HandleIncoming(ctx, item("https://example.com/a", 10.0)); dec != policy.Suppressed {
		t.Fatalf("expected Suppressed while paused, got %v", dec)
	}
	if fs.count() != 0 {
		t.Fatalf("paused engine must not deliver")
	}

	e.Resume(ctx)
	*now = now.Add(time.Minute)
	if dec := e.HandleIncoming(ctx, item("https://example.com/b", 10.0)); dec != policy.Immediate {
		t.Fatalf("expected Immediate after resume, got %v", dec)
	}
}

func TestUpdateSettingsClampsAndApplies(t *testing.T) {
	e, _, _ := newTestEngine(t, weekday11)

	bad := 99.0
	got := e.UpdateSettings(context.Background(), policy.Update{MinScore: &bad})
	if got.MinScore != 10 {
		t.Fatalf("expected clamped min score, got %v", got.MinScore)
	}
	if e.Settings().MinScore != 10 {
		t.Fatalf("settings snapshot stale: %+v", e.Settings())
	}
}

func TestDuplicateContentDropped(t *testing.T) {
	e, fs, _ := newTestEngine(t, weekday11)
	ctx := context.Background()

	a := feed.Item{Headline: "Fed cuts rates", Source: "a", URL: "https://a.example.com/1", Score: 9.5}
	b := feed.Item{Headline: "Fed cuts rates", Source: "b", URL: "https://b.example.com/2", Score: 9.5}

	if dec := e.HandleIncoming(ctx, a); dec != policy.Immediate {
		t.Fatalf("first item: expected Immediate, got %v", dec)
	}
	if dec := e.HandleIncoming(ctx, b); dec != policy.Suppressed {
		t.Fatalf("same content, different url: expected Suppressed, got %v", dec)
	}
	if fs.count() != 1 {
		t.Fatalf("duplicate content reached the sink")
	}
	if e.Stats().Deduped != 1 {
		t.Fatalf("dedup counter not bumped: %+v", e.Stats())
	}
}

func TestInvalidItemDropped(t *testing.T) {
	e, fs, _ := newTestEngine(t, weekday11)
	if dec := e.HandleIncoming(context.Background(), feed.Item{Score: 10}); dec != policy.Suppressed {
		t.Fatalf("expected Suppressed for invalid item, got %v", dec)
	}
	if fs.count() != 0 {
		t.Fatalf("invalid item reached the sink")
	}
}

func TestStatsSnapshot(t *testing.T) {
	e, _, _ := newTestEngine(t, weekday11)
	ctx := context.Background()

	e.HandleIncoming(ctx, item("https://example.com/a", 9.3)) // immediate
	e.HandleIncoming(ctx, item("https://example.com/b", 7.4)) // batched
	e.HandleIncoming(ctx, item("https://example.com/c", 2.0)) // suppressed

	s := e.Stats()
	if s.Received != 3 || s.Immediate != 1 || s.Batched != 1 || s.Suppressed != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.Pending != 1 {
		t.Fatalf("expected 1 pending, got %d", s.Pending)
	}
}

func TestHistoryMostRecentFirst(t *testing.T) {
	e, _, _ := newTestEngine(t, weekday11)
	ctx := context.Background()

	e.HandleIncoming(ctx, item("https://example.com/first", 9.3))
	e.HandleIncoming(ctx, item("https://example.com/second", 9.4))

	h := e.History()
	if len(h) != 2 {
		t.Fatalf("expected 2 records, got %d", len(h))
	}
	if !strings.Contains(h[0].Message, "second") {
		t.Fatalf("expected newest first, got %q", h[0].Message)
	}
}

func TestSelfTestRunsThroughPipeline(t *testing.T) {
	e, fs, _ := newTestEngine(t, weekday11)
	if dec := e.SelfTest(context.Background()); dec != policy.Immediate {
		t.Fatalf("expected Immediate for self test, got %v", dec)
	}
	if fs.count() != 1 {
		t.Fatalf("self test did not reach the sink")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t, weekday11)
	ctx := context.Background()

	if err := e.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	e.Stop(stopCtx)
	e.Stop(stopCtx)
}
