// Package telegram delivers notifications to a Telegram chat.
//
// Send-only: the engine never consumes updates, so no poller runs.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"newswatch/internal/sink"
	"newswatch/pkg/logx"
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
}

type Sink struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Sink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &Sink{cfg: cfg, log: log, bot: b}, nil
}

func (s *Sink) Notify(ctx context.Context, n sink.Notification) error {
	// Bound the API call so a hung send never stalls the dispatcher
	// beyond one notification.
	_, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	text := n.Title
	if n.Message != "" {
		text += "\n" + n.Message
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(
			&tele.Chat{ID: s.cfg.ChatID},
			text,
			&tele.SendOptions{DisableWebPagePreview: true, ThreadID: s.cfg.ThreadID},
		)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		s.log.Debug("telegram notification sent", logx.String("tag", n.Tag))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
