// Package config defines the engine's configuration: a TOML file merged on
// top of built-in defaults, then overridden by PRICEENGINE_* environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/openmandi/price-engine/internal/confidence"
	"github.com/openmandi/price-engine/internal/ethics"
	"github.com/openmandi/price-engine/internal/fairness"
)

// duration wraps time.Duration so TOML files can say "15m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Cache      CacheConfig      `toml:"cache"`
	Confidence ConfidenceConfig `toml:"confidence"`
	Fairness   FairnessConfig   `toml:"fairness"`
	Ethics     EthicsConfig     `toml:"ethics"`
	LogLevel   string           `toml:"log_level"`
}

// ServerConfig holds the HTTP listener parameters.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	RequestTimeout duration `toml:"request_timeout"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
}

// PostgresConfig holds the market-data database connection. An empty DSN
// selects the seeded in-memory repository (development profile).
type PostgresConfig struct {
	DSN string `toml:"dsn"`
}

// RedisConfig holds the read-through cache connection. An empty Addr
// disables the Redis layer.
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	TTL      duration `toml:"ttl"`
}

// CacheConfig controls the in-process snapshot cache.
type CacheConfig struct {
	// Window bounds the snapshot and history horizon loaded per refresh.
	Window duration `toml:"window"`
	// RefreshSchedule is a cron expression for background refreshes.
	RefreshSchedule string `toml:"refresh_schedule"`
}

// ConfidenceConfig tunes the confidence estimator.
type ConfidenceConfig struct {
	VolatilityWeight  float64  `toml:"volatility_weight"`
	StalenessWeight   float64  `toml:"staleness_weight"`
	StalenessHorizon  duration `toml:"staleness_horizon"`
	DefaultVolatility float64  `toml:"default_volatility"`
	LowThreshold      float64  `toml:"low_threshold"`
}

// FairnessConfig tunes the offer scorer.
type FairnessConfig struct {
	FairBand     float64 `toml:"fair_band"`
	ModerateBand float64 `toml:"moderate_band"`
	MaxDeviation float64 `toml:"max_deviation"`
}

// EthicsConfig tunes the ethics guard.
type EthicsConfig struct {
	ManipulationRunLength int      `toml:"manipulation_run_length"`
	OfferHistoryWindow    duration `toml:"offer_history_window"`
}

// Defaults returns the built-in configuration. Every field can be
// overridden by the TOML file or the environment.
func Defaults() Config {
	conf := confidence.DefaultParams()
	fair := fairness.DefaultParams()
	guard := ethics.DefaultParams()

	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: duration{30 * time.Second},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Redis: RedisConfig{
			TTL: duration{5 * time.Minute},
		},
		Cache: CacheConfig{
			Window:          duration{30 * 24 * time.Hour},
			RefreshSchedule: "@every 15m",
		},
		Confidence: ConfidenceConfig{
			VolatilityWeight:  conf.VolatilityWeight,
			StalenessWeight:   conf.StalenessWeight,
			StalenessHorizon:  duration{conf.StalenessHorizon},
			DefaultVolatility: conf.DefaultVolatility,
			LowThreshold:      conf.LowThreshold,
		},
		Fairness: FairnessConfig{
			FairBand:     fair.FairBand,
			ModerateBand: fair.ModerateBand,
			MaxDeviation: fair.MaxDeviation,
		},
		Ethics: EthicsConfig{
			ManipulationRunLength: guard.ManipulationRunLength,
			OfferHistoryWindow:    duration{30 * 24 * time.Hour},
		},
		LogLevel: "info",
	}
}

// Validate checks cross-field invariants after Load.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("config: rate limit must be positive")
	}
	if c.Cache.Window.Duration <= 0 {
		return fmt.Errorf("config: cache.window must be positive")
	}
	if c.Fairness.MaxDeviation <= c.Fairness.ModerateBand ||
		c.Fairness.ModerateBand <= c.Fairness.FairBand ||
		c.Fairness.FairBand <= 0 {
		return fmt.Errorf("config: fairness bands must satisfy 0 < fair < moderate < max")
	}
	if c.Confidence.LowThreshold <= 0 || c.Confidence.LowThreshold >= 1 {
		return fmt.Errorf("config: confidence.low_threshold must be in (0, 1)")
	}
	if c.Ethics.ManipulationRunLength < 1 {
		return fmt.Errorf("config: ethics.manipulation_run_length must be at least 1")
	}
	return nil
}

// ConfidenceParams builds the estimator parameters.
func (c *Config) ConfidenceParams() confidence.Params {
	p := confidence.DefaultParams()
	p.VolatilityWeight = c.Confidence.VolatilityWeight
	p.StalenessWeight = c.Confidence.StalenessWeight
	p.StalenessHorizon = c.Confidence.StalenessHorizon.Duration
	p.DefaultVolatility = c.Confidence.DefaultVolatility
	p.LowThreshold = c.Confidence.LowThreshold
	return p
}

// FairnessParams builds the scorer parameters.
func (c *Config) FairnessParams() fairness.Params {
	return fairness.Params{
		FairBand:     c.Fairness.FairBand,
		ModerateBand: c.Fairness.ModerateBand,
		MaxDeviation: c.Fairness.MaxDeviation,
	}
}

// EthicsParams builds the guard parameters. The guard's exploitation
// threshold always tracks the scorer's.
func (c *Config) EthicsParams() ethics.Params {
	return ethics.Params{
		ExploitThreshold:      c.Fairness.MaxDeviation,
		ManipulationRunLength: c.Ethics.ManipulationRunLength,
	}
}
