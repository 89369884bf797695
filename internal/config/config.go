package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	DriftAuthToken         string        `envconfig:"DRIFT_AUTH_TOKEN"`
	DriftAPIURL            string        `envconfig:"DRIFT_API_URL" default:"https://driftapi.com"`
	DriftRequestsPerSecond float64       `envconfig:"DRIFT_REQUESTS_PER_SECOND" default:"5"`
	StoreDriver            string        `envconfig:"STORE_DRIVER" default:"sqlite"`
	SQLitePath             string        `envconfig:"SQLITE_PATH" default:"export.sqlite"`
	DatabaseURL            string        `envconfig:"DATABASE_URL"`
	Lookback               time.Duration `envconfig:"EXPORT_LOOKBACK" default:"24h"`
	Delay                  time.Duration `envconfig:"EXPORT_DELAY" default:"500ms"`
	Enrich                 bool          `envconfig:"EXPORT_ENRICH" default:"true"`
	Interval               time.Duration `envconfig:"EXPORT_INTERVAL" default:"1h"`
	LinkBase               string        `envconfig:"CONVERSATION_LINK_BASE" default:"https://app.drift.com/conversations/"`
	LogLevel               string        `envconfig:"LOG_LEVEL" default:"info"`
	NatsURL                string        `envconfig:"NATS_URL"`
	NatsToken              string        `envconfig:"NATS_TOKEN"`
	SlackBotToken          string        `envconfig:"SLACK_BOT_TOKEN"`
	SlackChannel           string        `envconfig:"SLACK_CHANNEL"`
	Port                   int           `envconfig:"EXPORT_PORT" default:"8760"`
}

// Load reads the configuration from the environment. Unset keys take their
// defaults; malformed values are an error.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings an export run cannot start without.
func (c Config) Validate() error {
	if c.DriftAuthToken == "" {
		return fmt.Errorf("DRIFT_AUTH_TOKEN is required")
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.Delay < 0 {
		return fmt.Errorf("EXPORT_DELAY must not be negative")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("EXPORT_INTERVAL must be positive")
	}
	if c.DriftRequestsPerSecond <= 0 {
		return fmt.Errorf("DRIFT_REQUESTS_PER_SECOND must be positive")
	}
	return nil
}

// SlackEnabled reports whether run summaries should be posted to Slack.
func (c Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}
