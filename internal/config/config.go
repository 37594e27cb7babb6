// Package config provides configuration loading for leadscored.
package config

import (
	"fmt"
	"time"
)

// Config is the complete leadscored configuration.
type Config struct {
	Logging  LoggingConfig  `koanf:"logging"`
	Engine   EngineConfig   `koanf:"engine"`
	Decay    DecayConfig    `koanf:"decay"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is a zap level string: debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// EngineConfig holds the scoring engine tunables.
type EngineConfig struct {
	ContactHistoryLimit int `koanf:"contact_history_limit"`
	GlobalHistoryLimit  int `koanf:"global_history_limit"`
	CategoryWindow      int `koanf:"category_window"`

	// RateLimitTimezone is the IANA zone defining the calendar-day boundary
	// for per-day rule caps. The original design compared local date
	// strings, which is ambiguous across deployments; here the zone is an
	// explicit setting and defaults to UTC.
	RateLimitTimezone string `koanf:"rate_limit_timezone"`
}

// DecayConfig controls the inactivity scheduler.
type DecayConfig struct {
	CheckInterval Duration `koanf:"check_interval"`
}

// SnapshotConfig controls file persistence.
type SnapshotConfig struct {
	// Path is the snapshot file location. Empty disables persistence.
	Path string `koanf:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Engine: EngineConfig{
			ContactHistoryLimit: 100,
			GlobalHistoryLimit:  1000,
			CategoryWindow:      20,
			RateLimitTimezone:   "UTC",
		},
		Decay: DecayConfig{
			CheckInterval: Duration(time.Hour),
		},
		Snapshot: SnapshotConfig{
			Path: "", // set by loader to ~/.config/leadscored/snapshot.json
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Engine.ContactHistoryLimit <= 0 {
		return fmt.Errorf("engine.contact_history_limit must be positive, got %d", c.Engine.ContactHistoryLimit)
	}
	if c.Engine.GlobalHistoryLimit <= 0 {
		return fmt.Errorf("engine.global_history_limit must be positive, got %d", c.Engine.GlobalHistoryLimit)
	}
	if c.Engine.CategoryWindow <= 0 {
		return fmt.Errorf("engine.category_window must be positive, got %d", c.Engine.CategoryWindow)
	}
	if _, err := time.LoadLocation(c.Engine.RateLimitTimezone); err != nil {
		return fmt.Errorf("engine.rate_limit_timezone: %w", err)
	}
	if c.Decay.CheckInterval.Duration() <= 0 {
		return fmt.Errorf("decay.check_interval must be positive, got %s", c.Decay.CheckInterval.Duration())
	}
	return nil
}
