package config

// Config is the application configuration file (JSON or YAML).
// Delivery policy is NOT configured here; it lives in the settings
// store and changes through the engine API.
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Engine  EngineConfig  `json:"engine"`
	Sink    SinkConfig    `json:"sink"`

	// Settings controls the policy persistence layer.
	//
	// Example:
	//
	//	"settings": { "driver": "file", "path": "./newswatch_store" }
	Settings *SettingsConfig `json:"settings,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// EngineConfig tunes the decision engine.
//
// All durations are Go duration strings (e.g. "30s", "1m").
type EngineConfig struct {
	// TickInterval drives batch-flush evaluation. Default "1m".
	TickInterval string `json:"tick_interval,omitempty"`
	// SinkRatePerSec caps outbound sink calls. Default 1.
	SinkRatePerSec int `json:"sink_rate_per_sec,omitempty"`
	// SeenMaxEntries bounds the content dedup set. Default 4096.
	SeenMaxEntries int `json:"seen_max_entries,omitempty"`
}

// SinkConfig selects the notification surface.
//
// Driver values:
//   - "log": write notifications to the structured log (default)
//   - "telegram": deliver to a Telegram chat
type SinkConfig struct {
	Driver   string              `json:"driver"`
	Telegram *TelegramSinkConfig `json:"telegram,omitempty"`
}

type TelegramSinkConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

type SettingsConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
