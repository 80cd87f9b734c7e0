// Package config loads the engine's YAML configuration file: refresh
// cadences, single-leg recovery policy, liquidation thresholds, per-venue
// rate-limiter buckets, and the optional Postgres/Redis backends.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig is the root configuration shape (recognized keys, effects).
type EngineConfig struct {
	RefreshIntervalMs     int `yaml:"refresh_interval_ms"`
	HardRefreshIntervalMs int `yaml:"hard_refresh_interval_ms"`

	OpenThreshold float64 `yaml:"open_threshold"`

	MaxSingleLegRetries int `yaml:"max_single_leg_retries"`
	SingleLegBackoffMs  int `yaml:"single_leg_backoff_ms"`
	SingleLegFillWaitMs int `yaml:"single_leg_fill_wait_ms"`
	SingleLegPollMs     int `yaml:"single_leg_poll_ms"`

	WarningThreshold        float64 `yaml:"warning_threshold"`
	EmergencyCloseThreshold float64 `yaml:"emergency_close_threshold"`
	LiqCheckIntervalMs      int     `yaml:"liq_check_interval_ms"`
	EnableEmergencyClose    *bool   `yaml:"enable_emergency_close"`
	MaxCloseRetries         int     `yaml:"max_close_retries"`

	RateLimiter map[string]RateLimiterConfig `yaml:"rate_limiter"`

	PreferredVenueForMissingLeg []string `yaml:"preferred_venue_for_missing_leg"`

	SymbolSnapshotPath string `yaml:"symbol_snapshot_path"`

	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// RateLimiterConfig configures one venue's token bucket.
type RateLimiterConfig struct {
	Burst        int     `yaml:"burst"`
	RefillPerSec float64 `yaml:"refill_per_sec"`
}

// PostgresConfig configures the optional audit log backend. Disabled unless
// Enabled is set, matching the repository's default of reconstructing all
// state from venue APIs on start.
type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// RedisConfig configures the optional distributed lock backend.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

// Load reads path and applies defaults (spec.md §6) for any zero-valued
// field so a minimal config file is always valid.
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine config %s: %w", path, err)
	}
	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse engine config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(c *EngineConfig) {
	if c.RefreshIntervalMs == 0 {
		c.RefreshIntervalMs = 60_000
	}
	if c.HardRefreshIntervalMs == 0 {
		c.HardRefreshIntervalMs = 300_000
	}
	if c.OpenThreshold == 0 {
		c.OpenThreshold = 1e-4
	}
	if c.MaxSingleLegRetries == 0 {
		c.MaxSingleLegRetries = 3
	}
	if c.SingleLegBackoffMs == 0 {
		c.SingleLegBackoffMs = 60_000
	}
	if c.SingleLegFillWaitMs == 0 {
		c.SingleLegFillWaitMs = 60_000
	}
	if c.SingleLegPollMs == 0 {
		c.SingleLegPollMs = 5_000
	}
	if c.WarningThreshold == 0 {
		c.WarningThreshold = 0.4
	}
	if c.EmergencyCloseThreshold == 0 {
		c.EmergencyCloseThreshold = 0.9
	}
	if c.LiqCheckIntervalMs == 0 {
		c.LiqCheckIntervalMs = 10_000
	}
	if c.MaxCloseRetries == 0 {
		c.MaxCloseRetries = 3
	}
	if c.SymbolSnapshotPath == "" {
		c.SymbolSnapshotPath = "symbols.snapshot.json"
	}
	if c.EnableEmergencyClose == nil {
		enabled := true
		c.EnableEmergencyClose = &enabled
	}
}

// EmergencyCloseEnabled returns the resolved enable_emergency_close value
// (defaults true, spec.md §6).
func (c EngineConfig) EmergencyCloseEnabled() bool {
	return c.EnableEmergencyClose == nil || *c.EnableEmergencyClose
}

// Validate rejects configurations spec.md's invariants could never honor.
func (c *EngineConfig) Validate() error {
	if c.OpenThreshold <= 0 {
		return fmt.Errorf("open_threshold must be positive, got %v", c.OpenThreshold)
	}
	if c.WarningThreshold <= 0 || c.WarningThreshold >= c.EmergencyCloseThreshold {
		return fmt.Errorf("warning_threshold (%v) must be in (0, emergency_close_threshold=%v)", c.WarningThreshold, c.EmergencyCloseThreshold)
	}
	if c.EmergencyCloseThreshold > 1 {
		return fmt.Errorf("emergency_close_threshold must be <= 1, got %v", c.EmergencyCloseThreshold)
	}
	if c.MaxSingleLegRetries < 0 {
		return fmt.Errorf("max_single_leg_retries cannot be negative, got %d", c.MaxSingleLegRetries)
	}
	for name, rl := range c.RateLimiter {
		if rl.Burst <= 0 || rl.RefillPerSec <= 0 {
			return fmt.Errorf("rate_limiter.%s: burst and refill_per_sec must be positive", name)
		}
	}
	return nil
}

func (c EngineConfig) RefreshInterval() time.Duration     { return time.Duration(c.RefreshIntervalMs) * time.Millisecond }
func (c EngineConfig) HardRefreshInterval() time.Duration { return time.Duration(c.HardRefreshIntervalMs) * time.Millisecond }
func (c EngineConfig) SingleLegBackoff() time.Duration    { return time.Duration(c.SingleLegBackoffMs) * time.Millisecond }
func (c EngineConfig) SingleLegFillWait() time.Duration   { return time.Duration(c.SingleLegFillWaitMs) * time.Millisecond }
func (c EngineConfig) SingleLegPoll() time.Duration       { return time.Duration(c.SingleLegPollMs) * time.Millisecond }
func (c EngineConfig) LiqCheckInterval() time.Duration    { return time.Duration(c.LiqCheckIntervalMs) * time.Millisecond }
