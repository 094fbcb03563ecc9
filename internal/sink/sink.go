// Package sink defines the outbound notification surface.
//
// The engine does not assume the sink is durable or exactly-once;
// delivery is best-effort and a sink error is logged and dropped.
package sink

import (
	"context"

	"newswatch/pkg/logx"
)

// Notification is one rendered delivery.
//
// Tag is a stable identity (item URL or a batch-scoped synthetic key)
// so a sink can coalesce re-delivery of an already-surfaced
// notification. OnActivate, when set, is invoked by sinks that support
// user activation of the surfaced notification.
type Notification struct {
	Title      string
	Message    string
	Tag        string
	OnActivate func()
}

// Sink receives rendered notifications.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// logSink writes notifications to the structured log. Default driver
// and the fallback when no real surface is configured.
type logSink struct {
	log logx.Logger
}

func NewLog(log logx.Logger) Sink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &logSink{log: log}
}

func (s *logSink) Notify(ctx context.Context, n Notification) error {
	_ = ctx
	s.log.Info("notification",
		logx.String("title", n.Title),
		logx.String("message", n.Message),
		logx.String("tag", n.Tag),
	)
	return nil
}
