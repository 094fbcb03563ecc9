// Package engine wires the policy evaluator, batch accumulator, and
// dispatcher behind one facade. All mutation of policy, pending batch,
// and history flows through Engine methods; callers never touch the
// parts directly.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"newswatch/internal/batch"
	"newswatch/internal/dispatch"
	"newswatch/internal/feed"
	"newswatch/internal/policy"
	"newswatch/internal/settings"
	"newswatch/pkg/logx"
)

const (
	defaultTick    = time.Minute
	defaultSeenMax = 4096
	saveTimeout    = 2 * time.Second
)

type Config struct {
	// TickInterval drives batch-flush evaluation. Default 1m.
	TickInterval time.Duration
	// SeenMaxEntries bounds the content-hash dedup set. Default 4096.
	SeenMaxEntries int
}

// Stats is a point-in-time counter snapshot for status surfaces.
type Stats struct {
	Received   uint64 `json:"received"`
	Immediate  uint64 `json:"immediate"`
	Batched    uint64 `json:"batched"`
	Suppressed uint64 `json:"suppressed"`
	Deduped    uint64 `json:"deduped"`
	Flushes    uint64 `json:"flushes"`
	Pending    int    `json:"pending"`
}

// Engine is the process-wide decision engine. Construct one per
// process and inject it into callers; Start launches the flush timer
// and Stop tears it down.
type Engine struct {
	cfg   Config
	log   logx.Logger
	store settings.Store // may be nil
	disp  *dispatch.Dispatcher
	acc   *batch.Accumulator

	now func() time.Time

	mu    sync.Mutex
	pol   policy.Policy
	seen  map[string]struct{}
	order []string // seen insertion order, oldest first
	stats Stats

	cron *cron.Cron
}

// New builds the engine, loading the persisted policy and falling back
// to defaults when the store is absent or unreadable.
func New(cfg Config, store settings.Store, disp *dispatch.Dispatcher, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTick
	}
	if cfg.SeenMaxEntries <= 0 {
		cfg.SeenMaxEntries = defaultSeenMax
	}

	e := &Engine{
		cfg:   cfg,
		log:   log,
		store: store,
		disp:  disp,
		now:   time.Now,
		seen:  map[string]struct{}{},
	}
	e.pol = e.loadPolicy()
	e.acc = batch.New(e.now())
	return e
}

func (e *Engine) loadPolicy() policy.Policy {
	if e.store == nil {
		return policy.Default()
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	p, ok, err := e.store.LoadPolicy(ctx)
	if err != nil {
		// Malformed persisted policy is recovered locally; the caller
		// never sees it.
		e.log.Warn("policy load failed; using defaults", logx.Err(err))
		return policy.Default()
	}
	if !ok {
		return policy.Default()
	}
	return p
}

// Start launches the recurring flush tick. Idempotent.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cron != nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", e.cfg.TickInterval), func() {
		e.FlushTick(ctx)
	})
	if err != nil {
		return fmt.Errorf("flush tick schedule: %w", err)
	}
	e.cron = c
	c.Start()
	e.log.Info("engine started", logx.Duration("tick", e.cfg.TickInterval))
	return nil
}

// Stop halts the flush timer, waiting for an in-flight tick up to the
// ctx deadline. Pending batched items are not flushed on shutdown; the
// pending queue is not durable by design.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	c := e.cron
	e.cron = nil
	e.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	e.log.Info("engine stopped", logx.Int("pending_dropped", e.acc.Pending()))
}

// HandleIncoming classifies one received item and routes it. Invalid
// items and exact content repeats are dropped before classification.
func (e *Engine) HandleIncoming(ctx context.Context, it feed.Item) policy.Decision {
	now := e.now()
	if it.ReceivedAt.IsZero() {
		it.ReceivedAt = now
	}

	e.mu.Lock()
	e.stats.Received++
	if !it.Valid() {
		e.stats.Suppressed++
		e.mu.Unlock()
		e.log.Debug("item dropped: missing headline or url")
		return policy.Suppressed
	}
	if !e.markSeenLocked(it.ContentHash()) {
		e.stats.Deduped++
		e.mu.Unlock()
		e.log.Debug("item dropped: duplicate content", logx.String("url", it.URL))
		return policy.Suppressed
	}
	pol := e.pol
	e.mu.Unlock()

	dec := policy.Classify(it, pol, now)
	switch dec {
	case policy.Immediate:
		e.mu.Lock()
		e.stats.Immediate++
		e.mu.Unlock()
		e.disp.DeliverImmediate(ctx, it)
	case policy.Batched:
		if e.acc.Enqueue(it) {
			e.mu.Lock()
			e.stats.Batched++
			e.mu.Unlock()
		} else {
			e.mu.Lock()
			e.stats.Deduped++
			e.mu.Unlock()
		}
	default:
		e.mu.Lock()
		e.stats.Suppressed++
		e.mu.Unlock()
	}

	e.log.Debug("item classified",
		logx.String("decision", dec.String()),
		logx.Float64("score", it.Score),
		logx.String("source", it.Source),
	)
	return dec
}

// FlushTick runs one timer evaluation. Exported so ticks are testable
// without waiting on the cron schedule.
func (e *Engine) FlushTick(ctx context.Context) {
	now := e.now()
	e.mu.Lock()
	pol := e.pol
	e.mu.Unlock()

	items, required, due := e.acc.TakeDue(now, pol)
	if !due {
		if required > 0 {
			e.log.Trace("flush not due", logx.Duration("required", required), logx.Int("pending", e.acc.Pending()))
		}
		return
	}

	e.mu.Lock()
	e.stats.Flushes++
	e.mu.Unlock()

	e.log.Info("flushing batch", logx.Int("items", len(items)), logx.Duration("interval", required))
	e.disp.DeliverBatch(ctx, items)
}

// UpdateSettings merges a partial update, persists best-effort, and
// returns the resulting policy.
func (e *Engine) UpdateSettings(ctx context.Context, u policy.Update) policy.Policy {
	e.mu.Lock()
	e.pol = e.pol.Apply(u)
	p := e.pol
	e.mu.Unlock()

	e.persist(p)
	e.log.Info("settings updated",
		logx.Bool("enabled", p.Enabled),
		logx.Float64("min_score", p.MinScore),
		logx.Int("quiet_start", p.QuietStart),
		logx.Int("quiet_end", p.QuietEnd),
		logx.Bool("weekend_mode", p.WeekendMode),
	)
	return p
}

// Pause suppresses all delivery for d. It takes effect on the next
// classified item; already-dispatched notifications are not recalled.
func (e *Engine) Pause(ctx context.Context, d time.Duration) policy.Policy {
	until := e.now().Add(d)
	return e.UpdateSettings(ctx, policy.Update{PausedUntil: &until})
}

// Resume clears any active pause.
func (e *Engine) Resume(ctx context.Context) policy.Policy {
	var zero time.Time
	return e.UpdateSettings(ctx, policy.Update{PausedUntil: &zero})
}

// Settings returns the current policy.
func (e *Engine) Settings() policy.Policy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pol
}

// History returns the dispatcher's record snapshot, most recent first.
func (e *Engine) History() []dispatch.Record {
	return e.disp.History()
}

// Stats returns a counter snapshot.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := e.stats
	e.mu.Unlock()
	s.Pending = e.acc.Pending()
	return s
}

// SelfTest pushes a fabricated maximum-priority item through the
// normal pipeline to verify the sink end to end.
func (e *Engine) SelfTest(ctx context.Context) policy.Decision {
	now := e.now()
	return e.HandleIncoming(ctx, feed.Item{
		Headline:   "TEST: delivery pipeline check",
		Source:     "newswatch",
		URL:        fmt.Sprintf("newswatch://self-test/%d", now.UnixNano()),
		Score:      10.0,
		ReceivedAt: now,
		Summary:    fmt.Sprintf("self test issued at %s", now.Format(time.RFC3339)),
	})
}

// persist writes the policy fire-and-forget: settings updates never
// block the caller on storage.
func (e *Engine) persist(p policy.Policy) {
	if e.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := e.store.SavePolicy(ctx, p); err != nil {
			e.log.Warn("policy save failed", logx.Err(err))
		}
	}()
}

// markSeenLocked records a content hash, evicting oldest entries once
// the set is full. Reports false when the hash was already present.
func (e *Engine) markSeenLocked(h string) bool {
	if _, dup := e.seen[h]; dup {
		return false
	}
	e.seen[h] = struct{}{}
	e.order = append(e.order, h)
	for len(e.order) > e.cfg.SeenMaxEntries {
		oldest := e.order[0]
		e.order = e.order[1:]
		delete(e.seen, oldest)
	}
	return true
}
