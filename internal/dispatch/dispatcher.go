// Package dispatch renders delivery decisions into notifications,
// maintains the bounded history ring, and calls the sink.
//
// The dispatcher is the only component with side effects (history
// mutation, sink calls, audit writes). Nothing here is retried or
// undone; a sink failure is logged and otherwise swallowed.
package dispatch

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"newswatch/internal/feed"
	"newswatch/internal/settings"
	"newswatch/internal/sink"
	"newswatch/pkg/logx"
)

const (
	// historyCap bounds the notification record ring; oldest evicted first.
	historyCap = 50

	// headlineMax bounds the representative headline in a batch summary.
	headlineMax = 80

	auditTimeout = 2 * time.Second
)

// Record is one surfaced notification, immutable once appended.
type Record struct {
	Title   string
	Message string
	At      time.Time
	Items   []feed.Item
}

type Config struct {
	// RatePerSec caps sink calls. <=0 falls back to 1/sec with a small
	// burst; notification delivery above the cap is dropped, not queued.
	RatePerSec int
}

type Dispatcher struct {
	log     logx.Logger
	sink    sink.Sink
	store   settings.Store // may be nil
	limiter *rate.Limiter

	now func() time.Time

	mu      sync.Mutex
	history []Record
}

func New(cfg Config, snk sink.Sink, store settings.Store, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Dispatcher{
		log:     log,
		sink:    snk,
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(rps), rps+2),
		now:     time.Now,
	}
}

// DeliverImmediate surfaces a single item right away.
func (d *Dispatcher) DeliverImmediate(ctx context.Context, it feed.Item) {
	b := bandFor(it.Score)
	title := fmt.Sprintf("%s %s • %s", b.Marker, b.Label, it.Source)
	d.deliver(ctx, Record{Title: title, Message: it.Headline, Items: []feed.Item{it}}, it.URL, "immediate", it.Score)
}

// DeliverBatch surfaces the accumulated items as one composite
// notification. A batch of exactly one item collapses to the immediate
// rendering.
func (d *Dispatcher) DeliverBatch(ctx context.Context, items []feed.Item) {
	if len(items) == 0 {
		return
	}
	if len(items) == 1 {
		d.DeliverImmediate(ctx, items[0])
		return
	}

	top := items[0]
	for _, it := range items[1:] {
		if it.Score > top.Score {
			top = it
		}
	}

	b := bandFor(top.Score)
	title := fmt.Sprintf("%s %s • %d updates", b.Marker, b.Label, len(items))
	msg := fmt.Sprintf("%s +%d more", truncate(top.Headline, headlineMax), len(items)-1)
	d.deliver(ctx, Record{Title: title, Message: msg, Items: items}, batchTag(items), "batch", top.Score)
}

// History returns a read-only snapshot, most recent first.
func (d *Dispatcher) History() []Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Record, 0, len(d.history))
	for i := len(d.history) - 1; i >= 0; i-- {
		out = append(out, d.history[i])
	}
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, rec Record, tag, kind string, topScore float64) {
	rec.At = d.now()

	// History is recorded whether or not the sink accepts the call;
	// the ring and the sink are independent effects.
	d.appendHistory(rec)

	if d.sink == nil {
		return
	}
	if !d.limiter.Allow() {
		d.log.Warn("sink rate exceeded; notification dropped", logx.String("tag", tag))
		return
	}
	err := d.sink.Notify(ctx, sink.Notification{Title: rec.Title, Message: rec.Message, Tag: tag})
	if err != nil {
		d.log.Warn("sink delivery failed",
			logx.String("tag", tag),
			logx.String("kind", kind),
			logx.Err(err),
		)
	} else {
		d.log.Debug("notification delivered",
			logx.String("kind", kind),
			logx.Int("items", len(rec.Items)),
			logx.Float64("top_score", topScore),
		)
	}

	d.audit(settings.DeliveryEntry{
		At:       rec.At,
		Kind:     kind,
		Title:    rec.Title,
		Tag:      tag,
		Items:    len(rec.Items),
		TopScore: topScore,
	})
}

func (d *Dispatcher) appendHistory(rec Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, rec)
	if len(d.history) > historyCap {
		d.history = d.history[len(d.history)-historyCap:]
	}
}

// audit persists the delivery record fire-and-forget: callers never
// wait on storage.
func (d *Dispatcher) audit(e settings.DeliveryEntry) {
	if d.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := d.store.AppendDelivery(ctx, e); err != nil {
			d.log.Debug("delivery audit failed", logx.Err(err))
		}
	}()
}

// batchTag derives a stable synthetic tag from the member URLs so a
// re-delivered composite can be coalesced by the sink.
func batchTag(items []feed.Item) string {
	h := fnv.New64a()
	for _, it := range items {
		_, _ = h.Write([]byte(it.URL))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("batch-%x", h.Sum64())
}

func truncate(s string, maxN int) string {
	r := []rune(s)
	if len(r) <= maxN {
		return s
	}
	return string(r[:maxN-1]) + "…"
}
