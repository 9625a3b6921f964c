// Package config loads runtime settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Backends accepted in TURNWHEEL_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bbolt"
)

// Config holds every setting of the tw command.
type Config struct {
	DB        string `env:"TURNWHEEL_DB" envDefault:".turnwheel/turnwheel.db"`
	Backend   string `env:"TURNWHEEL_BACKEND" envDefault:"sqlite"`
	Slot      string `env:"TURNWHEEL_SLOT" envDefault:"suspend"`
	KeepSaves int    `env:"TURNWHEEL_KEEP_SAVES" envDefault:"3"`
	MaxUses   int    `env:"TURNWHEEL_MAX_USES" envDefault:"-1"`
	LogLevel  string `env:"TURNWHEEL_LOG_LEVEL" envDefault:"warn"`
	Metrics   bool   `env:"TURNWHEEL_METRICS" envDefault:"false"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the environment.
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

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendBolt:
	default:
		return fmt.Errorf("config: unknown backend %q (want %s or %s)", c.Backend, BackendSQLite, BackendBolt)
	}
	if c.DB == "" {
		return fmt.Errorf("config: empty database path")
	}
	if c.Slot == "" {
		return fmt.Errorf("config: empty save slot")
	}
	if c.KeepSaves < 1 {
		return fmt.Errorf("config: keep saves must be at least 1, got %d", c.KeepSaves)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NewLogger builds a console logger at the configured level, writing to
// stderr so command output stays parseable.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	return zc.Build()
}
