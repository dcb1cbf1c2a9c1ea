package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

const (
	DefaultMessageCacheSize = 24
	MaxMessageCacheSize     = 100 // one bulk delete
	DefaultWebhookName      = "any message editor"
	DefaultRatePerMinute    = 6
	DefaultBurst            = 3
	DefaultErrorStore       = "file"
	DefaultServiceName      = "anyedit"

	secretMask = "***"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Discord: DiscordConfig{
			MessageCacheSize: DefaultMessageCacheSize,
		},
		Edit: EditConfig{
			WebhookName:   DefaultWebhookName,
			RatePerMinute: DefaultRatePerMinute,
			Burst:         DefaultBurst,
		},
		Errors: ErrorsConfig{
			Store:       DefaultErrorStore,
			NotifyOwner: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultServiceName,
		},
	}
}

// LoadDotEnv loads a .env file from the working directory into the process
// environment. Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("ANYEDIT_DISCORD_TOKEN", &c.Discord.Token)
	envStr("ANYEDIT_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("ANYEDIT_TEST_GUILD_ID", &c.Discord.TestGuildID)
	envStr("ANYEDIT_ERROR_STORE", &c.Errors.Store)
	envStr("ANYEDIT_ERROR_PATH", &c.Errors.Path)
	envStr("ANYEDIT_METRICS_LISTEN", &c.Metrics.Listen)
	envStr("ANYEDIT_OTLP_ENDPOINT", &c.Telemetry.Endpoint)

	// An endpoint from the environment turns export on.
	if os.Getenv("ANYEDIT_OTLP_ENDPOINT") != "" {
		c.Telemetry.Enabled = true
	}
}

// applyDefaults restores defaults for values a config file zeroed out.
func (c *Config) applyDefaults() {
	if c.Discord.MessageCacheSize <= 0 {
		c.Discord.MessageCacheSize = DefaultMessageCacheSize
	}
	if strings.TrimSpace(c.Edit.WebhookName) == "" {
		c.Edit.WebhookName = DefaultWebhookName
	}
	if c.Edit.RatePerMinute <= 0 {
		c.Edit.RatePerMinute = DefaultRatePerMinute
	}
	if c.Edit.Burst <= 0 {
		c.Edit.Burst = DefaultBurst
	}
	c.Errors.Store = strings.ToLower(strings.TrimSpace(c.Errors.Store))
	if c.Errors.Store == "" {
		c.Errors.Store = DefaultErrorStore
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate reports configuration that can't work.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.Errors.Store {
	case "file", "sqlite", "none":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("errors.store is postgres but ANYEDIT_POSTGRES_DSN is not set")
		}
	default:
		return fmt.Errorf("unknown errors.store %q (want file, sqlite, postgres or none)", c.Errors.Store)
	}
	if c.Discord.MessageCacheSize > MaxMessageCacheSize {
		return fmt.Errorf("discord.message_cache_size is %d, at most %d is supported",
			c.Discord.MessageCacheSize, MaxMessageCacheSize)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but has no endpoint")
	}
	return nil
}

// MaskedCopy returns a copy of the config with secrets masked, for printing.
func (c *Config) MaskedCopy() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Deep copy via JSON round-trip
	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	cp := Default()
	if err := json.Unmarshal(data, cp); err != nil {
		return &Config{}
	}
	cp.Discord.Token = c.Discord.Token
	cp.Database.PostgresDSN = c.Database.PostgresDSN

	maskNonEmpty(&cp.Discord.Token)
	maskNonEmpty(&cp.Database.PostgresDSN)
	for k := range cp.Telemetry.Headers {
		v := cp.Telemetry.Headers[k]
		maskNonEmpty(&v)
		cp.Telemetry.Headers[k] = v
	}
	return cp
}

func maskNonEmpty(s *string) {
	if *s != "" {
		*s = secretMask
	}
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
