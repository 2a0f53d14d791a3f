// Package config loads mpcompat settings from the environment.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Config holds environment defaults for the CLI. Command-line flags override
// every field.
type Config struct {
	DB       string `env:"MPCOMPAT_DB"`                             // Desync journal path; empty disables journaling
	PatchDir string `env:"MPCOMPAT_PATCH_DIR" envDefault:"patches"` // Descriptor directory for validate
	Format   string `env:"MPCOMPAT_FORMAT"    envDefault:"text"`    // text or json
	LogLevel string `env:"MPCOMPAT_LOG_LEVEL" envDefault:"warn"`    // debug, info, warn or error
	Peers    int    `env:"MPCOMPAT_PEERS"     envDefault:"0"`       // Overrides scenario peer counts when non-zero
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the environment configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values that env tags cannot express.
func (c Config) Validate() error {
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("MPCOMPAT_FORMAT must be text or json, got %q", c.Format)
	}
	if c.Peers < 0 {
		return fmt.Errorf("MPCOMPAT_PEERS must not be negative, got %d", c.Peers)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("MPCOMPAT_LOG_LEVEL: %w", err)
	}
	return level, nil
}
