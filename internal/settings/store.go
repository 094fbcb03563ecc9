package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"newswatch/internal/policy"
	"newswatch/pkg/logx"
)

var ErrDisabled = errors.New("settings storage disabled")

// Config configures the store.
//
// If Driver is empty or "none", storage is disabled and the engine runs
// purely in-memory.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DeliveryEntry records one dispatched notification.
// Keep it compact and schema-stable.
type DeliveryEntry struct {
	At       time.Time `json:"at"`
	Kind     string    `json:"kind"` // "immediate" or "batch"
	Title    string    `json:"title"`
	Tag      string    `json:"tag"`
	Items    int       `json:"items"`
	TopScore float64   `json:"top_score"`
}

// Store is the persistence API used by the engine.
type Store interface {
	// LoadPolicy returns the persisted policy. ok=false means no record
	// exists yet (not an error).
	LoadPolicy(ctx context.Context) (p policy.Policy, ok bool, err error)
	SavePolicy(ctx context.Context, p policy.Policy) error
	AppendDelivery(ctx context.Context, e DeliveryEntry) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown settings driver: " + driver)
	}
}
