package config

import (
	"sync"
)

// Config is the root configuration of the bot.
type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	Edit      EditConfig      `json:"edit"`
	Webhooks  WebhooksConfig  `json:"webhooks,omitempty"`
	Errors    ErrorsConfig    `json:"errors"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	mu        sync.RWMutex
}

// DiscordConfig configures the gateway connection.
// Token is NEVER read from config.json (secret), only from env ANYEDIT_DISCORD_TOKEN.
type DiscordConfig struct {
	Token            string `json:"-"`
	TestGuildID      string `json:"test_guild_id,omitempty"`      // register commands in this guild only
	MessageCacheSize int    `json:"message_cache_size,omitempty"` // messages kept per channel (default 24)
	RequestMembers   bool   `json:"request_members,omitempty"`    // fetch every member on guild create
}

// EditConfig tunes the replication engine.
type EditConfig struct {
	WebhookName   string  `json:"webhook_name,omitempty"`
	RatePerMinute float64 `json:"rate_per_minute,omitempty"` // edits per user per minute
	Burst         int     `json:"burst,omitempty"`
}

// WebhooksConfig configures the webhook cache.
type WebhooksConfig struct {
	SweepSchedule string `json:"sweep_schedule,omitempty"` // cron expression, empty disables the sweep
}

// ErrorsConfig selects where unexpected failures are recorded.
type ErrorsConfig struct {
	Store       string `json:"store,omitempty"` // "file" (default), "sqlite", "postgres" or "none"
	Path        string `json:"path,omitempty"`  // file or sqlite path
	NotifyOwner bool   `json:"notify_owner"`    // DM the application owner
}

// DatabaseConfig holds the Postgres connection for errors.store = "postgres".
// PostgresDSN is NEVER read from config.json (secret), only from env ANYEDIT_POSTGRES_DSN.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Listen string `json:"listen,omitempty"` // e.g. ":9090", empty disables
}

// TelemetryConfig configures OpenTelemetry OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"` // OTLP HTTP endpoint, e.g. "localhost:4318"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}
