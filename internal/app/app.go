// Package app wires configuration, logging, settings storage, the
// sink, and the engine into one runnable unit.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"newswatch/internal/config"
	"newswatch/internal/dispatch"
	"newswatch/internal/engine"
	"newswatch/internal/settings"
	"newswatch/internal/sink"
	"newswatch/internal/sink/telegram"
	"newswatch/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store  settings.Store
	engine *engine.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := openStore(cfg.Settings, log)
	if err != nil {
		// Persistence is best-effort; run in-memory rather than refuse to start.
		log.Warn("settings store unavailable; running in-memory", logx.Err(err))
		store = nil
	}

	snk, err := openSink(cfg.Sink, log)
	if err != nil {
		return nil, err
	}

	disp := dispatch.New(dispatch.Config{
		RatePerSec: cfg.Engine.SinkRatePerSec,
	}, snk, store, log.With(logx.String("comp", "dispatch")))

	tick, err := config.ParseDurationOrDefault("engine.tick_interval", cfg.Engine.TickInterval, time.Minute)
	if err != nil {
		return nil, err
	}

	eng := engine.New(engine.Config{
		TickInterval:   tick,
		SeenMaxEntries: cfg.Engine.SeenMaxEntries,
	}, store, disp, log.With(logx.String("comp", "engine")))

	return &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		store:  store,
		engine: eng,
	}, nil
}

// Engine exposes the decision engine facade to callers (ingestion
// pipeline, status surfaces).
func (a *App) Engine() *engine.Engine { return a.engine }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := config.ParseDurationField("engine.tick_interval", cfg.Engine.TickInterval); err != nil {
			return err
		}
		if cfg.Engine.SinkRatePerSec < 0 {
			return fmt.Errorf("engine.sink_rate_per_sec must be >= 0")
		}
		if s := cfg.Settings; s != nil {
			if _, err := config.ParseDurationField("settings.busy_timeout", s.BusyTimeout); err != nil {
				return err
			}
		}
		return nil
	})

	if err := a.engine.Start(runCtx); err != nil {
		cancel()
		return err
	}

	// Hot reload: logging changes apply live; structural changes
	// (sink driver, storage, tick interval) need a restart.
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   newCfg.Logging.Level,
					Console: newCfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: newCfg.Logging.File.Enabled,
						Path:    newCfg.Logging.File.Path,
					},
				})
				a.log.Info("config reloaded (logging applied; other sections need restart)")
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch exited", logx.Err(err))
		}
	}()

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	// Run each shutdown step with an upper bound so one component can't
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		start := time.Now()
		fn(stepCtx)
		a.log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("engine", 3*time.Second, func(c context.Context) { a.engine.Stop(c) })
	step("store", 2*time.Second, func(c context.Context) {
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				a.log.Warn("store close failed", logx.Err(err))
			}
		}
	})

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

func openStore(cfg *config.SettingsConfig, log logx.Logger) (settings.Store, error) {
	if cfg == nil {
		return nil, nil
	}
	busy, err := config.ParseDurationField("settings.busy_timeout", cfg.BusyTimeout)
	if err != nil {
		return nil, err
	}
	return settings.Open(settings.Config{
		Driver:      cfg.Driver,
		Path:        cfg.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "settings")))
}

func openSink(cfg config.SinkConfig, log logx.Logger) (sink.Sink, error) {
	switch cfg.Driver {
	case "", "log":
		return sink.NewLog(log.With(logx.String("comp", "sink"))), nil
	case "telegram":
		if cfg.Telegram == nil {
			return nil, fmt.Errorf("sink.telegram section is required for the telegram driver")
		}
		return telegram.New(telegram.Config{
			Token:    cfg.Telegram.Token,
			ChatID:   cfg.Telegram.ChatID,
			ThreadID: cfg.Telegram.ThreadID,
		}, log.With(logx.String("comp", "sink")))
	default:
		return nil, fmt.Errorf("unknown sink driver: %q", cfg.Driver)
	}
}
