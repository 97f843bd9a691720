package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// EnvPrefix prefixes environment overrides, e.g. PRICEPILOT_TELEGRAM_BOT_TOKEN.
const EnvPrefix = "PRICEPILOT"

// Config represents the complete application configuration
type Config struct {
	Pricing        PricingConfig        `mapstructure:"pricing"`
	Elasticity     ElasticityConfig     `mapstructure:"elasticity"`
	Experiment     ExperimentConfig     `mapstructure:"experiment"`
	Guardrails     GuardrailConfig      `mapstructure:"guardrails"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	CompetitorFeed CompetitorFeedConfig `mapstructure:"competitor_feed"`
	Server         ServerConfig         `mapstructure:"server"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Telegram       TelegramConfig       `mapstructure:"telegram"`
	Storage        StorageConfig        `mapstructure:"storage"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// PricingConfig holds optimizer settings for scheduled cycles. Zero
// constraint values impose nothing.
type PricingConfig struct {
	Objective      string  `mapstructure:"objective"`
	Workers        int     `mapstructure:"workers"`
	MaxChangePct   float64 `mapstructure:"max_change_pct"`
	MinMargin      float64 `mapstructure:"min_margin"`
	MaxAboveMarket float64 `mapstructure:"max_above_market"`
}

// Constraints returns the configured optimizer constraints.
func (p PricingConfig) Constraints() models.Constraints {
	var c models.Constraints
	if p.MaxChangePct > 0 {
		c.MaxChangePct = models.Float(p.MaxChangePct)
	}
	if p.MinMargin > 0 {
		c.MinMargin = models.Float(p.MinMargin)
	}
	if p.MaxAboveMarket > 0 {
		c.MaxAboveMarket = models.Float(p.MaxAboveMarket)
	}
	return c
}

// ElasticityConfig holds estimator thresholds and the fallback coefficient.
type ElasticityConfig struct {
	MinDataPoints  int     `mapstructure:"min_data_points"`
	MinCleanPoints int     `mapstructure:"min_clean_points"`
	LookbackDays   int     `mapstructure:"lookback_days"`
	Default        float64 `mapstructure:"default"`
}

// ExperimentConfig holds A/B evaluation settings
type ExperimentConfig struct {
	MinImpressions        int     `mapstructure:"min_impressions"`
	Alpha                 float64 `mapstructure:"alpha"`
	Z                     float64 `mapstructure:"z"`
	DefaultPriceChangePct float64 `mapstructure:"default_price_change_pct"`
}

// GuardrailConfig holds the limits applied before a price goes live
type GuardrailConfig struct {
	MinMargin              float64 `mapstructure:"min_margin"`
	MaxChangePct           float64 `mapstructure:"max_change_pct"`
	MinHoursBetweenChanges float64 `mapstructure:"min_hours_between_changes"`
	AutoApply              bool    `mapstructure:"auto_apply"`
}

// SchedulerConfig holds cron specs (with seconds) for background jobs
type SchedulerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	CycleSpec string        `mapstructure:"cycle_spec"`
	PruneSpec string        `mapstructure:"prune_spec"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// CompetitorFeedConfig holds the competitor price feed client configuration
type CompetitorFeedConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"`
}

// CacheConfig holds the Redis result cache configuration
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath    string        `mapstructure:"db_path"`
	Retention time.Duration `mapstructure:"retention"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional .env file, the config file at
// path (skipped when path is empty) and PRICEPILOT_* environment variables,
// in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
// Every key is registered so that environment overrides apply to it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pricing.objective", "balanced")
	v.SetDefault("pricing.workers", 4)
	v.SetDefault("pricing.max_change_pct", 0.15)
	v.SetDefault("pricing.min_margin", 0.20)
	v.SetDefault("pricing.max_above_market", 0.10)

	v.SetDefault("elasticity.min_data_points", 10)
	v.SetDefault("elasticity.min_clean_points", 5)
	v.SetDefault("elasticity.lookback_days", 90)
	v.SetDefault("elasticity.default", -1.5)

	v.SetDefault("experiment.min_impressions", 30)
	v.SetDefault("experiment.alpha", 0.05)
	v.SetDefault("experiment.z", 1.96)
	v.SetDefault("experiment.default_price_change_pct", -0.10)

	v.SetDefault("guardrails.min_margin", 0.15)
	v.SetDefault("guardrails.max_change_pct", 0.20)
	v.SetDefault("guardrails.min_hours_between_changes", 4.0)
	v.SetDefault("guardrails.auto_apply", false)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cycle_spec", "0 0 * * * *") // hourly
	v.SetDefault("scheduler.prune_spec", "0 30 3 * * *")
	v.SetDefault("scheduler.timeout", "10m")

	v.SetDefault("competitor_feed.enabled", false)
	v.SetDefault("competitor_feed.base_url", "")
	v.SetDefault("competitor_feed.timeout", "15s")
	v.SetDefault("competitor_feed.max_retries", 3)
	v.SetDefault("competitor_feed.retry_delay", "1s")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.retention", "2160h") // 90 days

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if !validObjective(c.Pricing.Objective) {
		names := make([]string, len(models.Objectives))
		for i, o := range models.Objectives {
			names[i] = string(o)
		}
		return fmt.Errorf("pricing.objective must be one of: %s", strings.Join(names, ", "))
	}
	if c.Pricing.Workers < 1 {
		return fmt.Errorf("pricing.workers must be at least 1")
	}
	if c.Pricing.MaxChangePct < 0 || c.Pricing.MaxChangePct > 1 {
		return fmt.Errorf("pricing.max_change_pct must be between 0.0 and 1.0")
	}
	if c.Pricing.MinMargin < 0 || c.Pricing.MinMargin >= 1 {
		return fmt.Errorf("pricing.min_margin must be in [0.0, 1.0)")
	}
	if c.Pricing.MaxAboveMarket < 0 {
		return fmt.Errorf("pricing.max_above_market must not be negative")
	}

	if c.Elasticity.MinDataPoints < 2 {
		return fmt.Errorf("elasticity.min_data_points must be at least 2")
	}
	if c.Elasticity.MinCleanPoints < 2 {
		return fmt.Errorf("elasticity.min_clean_points must be at least 2")
	}
	if c.Elasticity.LookbackDays < 1 {
		return fmt.Errorf("elasticity.lookback_days must be at least 1")
	}
	if c.Elasticity.Default >= 0 {
		return fmt.Errorf("elasticity.default must be negative")
	}

	if c.Experiment.MinImpressions < 1 {
		return fmt.Errorf("experiment.min_impressions must be at least 1")
	}
	if c.Experiment.Alpha <= 0 || c.Experiment.Alpha >= 1 {
		return fmt.Errorf("experiment.alpha must be between 0.0 and 1.0")
	}
	if c.Experiment.Z <= 0 {
		return fmt.Errorf("experiment.z must be positive")
	}
	if c.Experiment.DefaultPriceChangePct <= -1 {
		return fmt.Errorf("experiment.default_price_change_pct must be greater than -1.0")
	}

	if c.Guardrails.MinMargin < 0 || c.Guardrails.MinMargin >= 1 {
		return fmt.Errorf("guardrails.min_margin must be in [0.0, 1.0)")
	}
	if c.Guardrails.MaxChangePct <= 0 || c.Guardrails.MaxChangePct > 1 {
		return fmt.Errorf("guardrails.max_change_pct must be in (0.0, 1.0]")
	}
	if c.Guardrails.MinHoursBetweenChanges < 0 {
		return fmt.Errorf("guardrails.min_hours_between_changes must not be negative")
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.CycleSpec == "" {
			return fmt.Errorf("scheduler.cycle_spec is required when the scheduler is enabled")
		}
		if c.Scheduler.Timeout < 1*time.Second {
			return fmt.Errorf("scheduler.timeout must be at least 1 second")
		}
	}

	if c.CompetitorFeed.Enabled {
		if c.CompetitorFeed.BaseURL == "" {
			return fmt.Errorf("competitor_feed.base_url is required when the feed is enabled")
		}
		if c.CompetitorFeed.MaxRetries < 0 {
			return fmt.Errorf("competitor_feed.max_retries must not be negative")
		}
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return fmt.Errorf("server.mode must be one of: debug, release, test")
	}

	if c.Cache.Enabled {
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required when the cache is enabled")
		}
		if c.Cache.TTL < 1*time.Second {
			return fmt.Errorf("cache.ttl must be at least 1 second")
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.Retention < 24*time.Hour {
		return fmt.Errorf("storage.retention must be at least 24h")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

func validObjective(s string) bool {
	for _, o := range models.Objectives {
		if string(o) == s {
			return true
		}
	}
	return false
}
