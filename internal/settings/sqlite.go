//go:build sqlite
// +build sqlite

package settings

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"newswatch/internal/policy"
	"newswatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadPolicy(ctx context.Context) (policy.Policy, bool, error) {
	if s == nil || s.db == nil {
		return policy.Policy{}, false, ErrDisabled
	}
	var (
		p           policy.Policy
		enabled     int
		weekend     int
		pausedMilli int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled, min_score, quiet_start, quiet_end, weekend_mode, paused_until FROM policy WHERE id = 1`,
	).Scan(&enabled, &p.MinScore, &p.QuietStart, &p.QuietEnd, &weekend, &pausedMilli)
	if errors.Is(err, sql.ErrNoRows) {
		return policy.Policy{}, false, nil
	}
	if err != nil {
		return policy.Policy{}, false, err
	}
	p.Enabled = enabled != 0
	p.WeekendMode = weekend != 0
	if pausedMilli > 0 {
		p.PausedUntil = time.UnixMilli(pausedMilli)
	}
	return p.Normalize(), true, nil
}

func (s *sqliteStore) SavePolicy(ctx context.Context, p policy.Policy) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	var pausedMilli int64
	if !p.PausedUntil.IsZero() {
		pausedMilli = p.PausedUntil.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO policy(id, enabled, min_score, quiet_start, quiet_end, weekend_mode, paused_until)
		 VALUES(1,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   enabled=excluded.enabled, min_score=excluded.min_score,
		   quiet_start=excluded.quiet_start, quiet_end=excluded.quiet_end,
		   weekend_mode=excluded.weekend_mode, paused_until=excluded.paused_until`,
		boolInt(p.Enabled), p.MinScore, p.QuietStart, p.QuietEnd, boolInt(p.WeekendMode), pausedMilli,
	)
	return err
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, e DeliveryEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(at, kind, title, tag, items, top_score) VALUES(?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.Kind, e.Title, nullStr(e.Tag), e.Items, e.TopScore,
	)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
