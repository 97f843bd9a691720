package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/pricepilot/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
pricing:
  objective: maximize_profit
  workers: 8
  max_change_pct: 0.1

elasticity:
  lookback_days: 60

guardrails:
  min_hours_between_changes: 6
  auto_apply: true

scheduler:
  cycle_spec: "0 */15 * * * *"

competitor_feed:
  enabled: true
  base_url: "http://feed.local"

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true

storage:
  db_path: "./data/test.db"

logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Pricing.Objective != "maximize_profit" || cfg.Pricing.Workers != 8 {
		t.Errorf("Unexpected pricing config: %+v", cfg.Pricing)
	}
	if cfg.Pricing.MinMargin != 0.20 {
		t.Errorf("Expected default min margin 0.20, got %v", cfg.Pricing.MinMargin)
	}
	if cfg.Elasticity.LookbackDays != 60 || cfg.Elasticity.MinDataPoints != 10 {
		t.Errorf("Unexpected elasticity config: %+v", cfg.Elasticity)
	}
	if cfg.Guardrails.MinHoursBetweenChanges != 6 || !cfg.Guardrails.AutoApply {
		t.Errorf("Unexpected guardrail config: %+v", cfg.Guardrails)
	}
	if cfg.Scheduler.Timeout != 10*time.Minute {
		t.Errorf("Unexpected scheduler timeout: %v", cfg.Scheduler.Timeout)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("Unexpected cache TTL: %v", cfg.Cache.TTL)
	}
	if cfg.Storage.Retention != 90*24*time.Hour {
		t.Errorf("Unexpected retention: %v", cfg.Storage.Retention)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}

	c := cfg.Pricing.Constraints()
	if c.MaxChangePct == nil || *c.MaxChangePct != 0.1 {
		t.Errorf("Unexpected max change constraint: %v", c.MaxChangePct)
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if cfg.Experiment.Z != 1.96 || cfg.Experiment.MinImpressions != 30 {
		t.Errorf("Unexpected experiment defaults: %+v", cfg.Experiment)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PRICEPILOT_TELEGRAM_BOT_TOKEN", "env_token")
	t.Setenv("PRICEPILOT_PRICING_OBJECTIVE", "maximize_volume")
	t.Setenv("PRICEPILOT_CACHE_TTL", "30m")

	cfg, err := Load(writeConfig(t, "telegram:\n  bot_token: file_token\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.BotToken != "env_token" {
		t.Errorf("Expected env override, got %q", cfg.Telegram.BotToken)
	}
	if cfg.Pricing.Objective != "maximize_volume" {
		t.Errorf("Expected env objective, got %q", cfg.Pricing.Objective)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Expected env TTL, got %v", cfg.Cache.TTL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown objective", func(c *Config) { c.Pricing.Objective = "cheapest" }, "pricing.objective"},
		{"no workers", func(c *Config) { c.Pricing.Workers = 0 }, "pricing.workers"},
		{"margin of one", func(c *Config) { c.Pricing.MinMargin = 1 }, "pricing.min_margin"},
		{"positive default elasticity", func(c *Config) { c.Elasticity.Default = 0.5 }, "elasticity.default"},
		{"alpha out of range", func(c *Config) { c.Experiment.Alpha = 1.5 }, "experiment.alpha"},
		{"zero guardrail change", func(c *Config) { c.Guardrails.MaxChangePct = 0 }, "guardrails.max_change_pct"},
		{"scheduler without spec", func(c *Config) { c.Scheduler.CycleSpec = "" }, "scheduler.cycle_spec"},
		{"feed without url", func(c *Config) { c.CompetitorFeed.Enabled = true }, "competitor_feed.base_url"},
		{"cache without ttl", func(c *Config) { c.Cache.Enabled = true; c.Cache.TTL = 0 }, "cache.ttl"},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }, "telegram.bot_token"},
		{"short retention", func(c *Config) { c.Storage.Retention = time.Hour }, "storage.retention"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_AcceptsEveryObjective(t *testing.T) {
	for _, obj := range models.Objectives {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		cfg.Pricing.Objective = string(obj)
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() rejected objective %q: %v", obj, err)
		}
	}
}
