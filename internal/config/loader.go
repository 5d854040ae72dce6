package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path (skipped when path is
// empty), merges it on top of the built-in defaults, applies PRICEENGINE_*
// environment variable overrides, and returns the final Config. The caller
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PRICEENGINE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Server.Addr, "PRICEENGINE_SERVER_ADDR")
	setDuration(&cfg.Server.RequestTimeout, "PRICEENGINE_SERVER_REQUEST_TIMEOUT")
	setFloat64(&cfg.Server.RateLimitRPS, "PRICEENGINE_SERVER_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "PRICEENGINE_SERVER_RATE_LIMIT_BURST")

	setStr(&cfg.Postgres.DSN, "PRICEENGINE_POSTGRES_DSN")

	setStr(&cfg.Redis.Addr, "PRICEENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PRICEENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PRICEENGINE_REDIS_DB")
	setDuration(&cfg.Redis.TTL, "PRICEENGINE_REDIS_TTL")

	setDuration(&cfg.Cache.Window, "PRICEENGINE_CACHE_WINDOW")
	setStr(&cfg.Cache.RefreshSchedule, "PRICEENGINE_CACHE_REFRESH_SCHEDULE")

	setFloat64(&cfg.Confidence.VolatilityWeight, "PRICEENGINE_CONFIDENCE_VOLATILITY_WEIGHT")
	setFloat64(&cfg.Confidence.StalenessWeight, "PRICEENGINE_CONFIDENCE_STALENESS_WEIGHT")
	setDuration(&cfg.Confidence.StalenessHorizon, "PRICEENGINE_CONFIDENCE_STALENESS_HORIZON")
	setFloat64(&cfg.Confidence.DefaultVolatility, "PRICEENGINE_CONFIDENCE_DEFAULT_VOLATILITY")
	setFloat64(&cfg.Confidence.LowThreshold, "PRICEENGINE_CONFIDENCE_LOW_THRESHOLD")

	setFloat64(&cfg.Fairness.FairBand, "PRICEENGINE_FAIRNESS_FAIR_BAND")
	setFloat64(&cfg.Fairness.ModerateBand, "PRICEENGINE_FAIRNESS_MODERATE_BAND")
	setFloat64(&cfg.Fairness.MaxDeviation, "PRICEENGINE_FAIRNESS_MAX_DEVIATION")

	setInt(&cfg.Ethics.ManipulationRunLength, "PRICEENGINE_ETHICS_MANIPULATION_RUN_LENGTH")
	setDuration(&cfg.Ethics.OfferHistoryWindow, "PRICEENGINE_ETHICS_OFFER_HISTORY_WINDOW")

	setStr(&cfg.LogLevel, "PRICEENGINE_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		_ = dst.UnmarshalText([]byte(v))
	}
}
