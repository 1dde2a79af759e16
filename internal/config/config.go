// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every fedpath-specific variable.
const EnvPrefix = "FEDPATH_"

// ServerConfig holds FEDPATH_* settings.
type ServerConfig struct {
	LogLevel       string        `env:"LOG_LEVEL"        envDefault:"info"`
	LogJSON        bool          `env:"LOG_JSON"         envDefault:"false"`
	Port           int           `env:"PORT"             envDefault:"8080"`
	SettingsFile   string        `env:"SETTINGS_FILE"    envDefault:""`
	BatchPacing    time.Duration `env:"BATCH_PACING"     envDefault:"500ms"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"67108864"`
	ReportBucket   string        `env:"REPORT_BUCKET"    envDefault:""`
	ValidateKey    bool          `env:"VALIDATE_KEY"     envDefault:"true"`
}

// GeminiConfig holds the unprefixed Gemini variables shared with other tools.
type GeminiConfig struct {
	APIKey string `env:"GEMINI_API_KEY" envDefault:""`
	Model  string `env:"GEMINI_MODEL"   envDefault:""`
}

// Config is the full process configuration.
type Config struct {
	Server ServerConfig
	Gemini GeminiConfig
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	c := Config{}
	if err := env.ParseWithOptions(&c.Server, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse %s* environment: %w", EnvPrefix, err)
	}
	if err := env.Parse(&c.Gemini); err != nil {
		return nil, fmt.Errorf("parse Gemini environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Server.Port)
	}
	if c.Server.BatchPacing < 0 {
		return errors.New("batch pacing must not be negative")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Server.LogLevel)
	}
	return nil
}
