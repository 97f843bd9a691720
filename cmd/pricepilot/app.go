package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rewired-gh/pricepilot/internal/cache"
	"github.com/rewired-gh/pricepilot/internal/competitorfeed"
	"github.com/rewired-gh/pricepilot/internal/config"
	"github.com/rewired-gh/pricepilot/internal/elasticity"
	"github.com/rewired-gh/pricepilot/internal/experiment"
	"github.com/rewired-gh/pricepilot/internal/guardrail"
	"github.com/rewired-gh/pricepilot/internal/logger"
	"github.com/rewired-gh/pricepilot/internal/models"
	"github.com/rewired-gh/pricepilot/internal/pricing"
	"github.com/rewired-gh/pricepilot/internal/repricer"
	"github.com/rewired-gh/pricepilot/internal/storage"
	"github.com/rewired-gh/pricepilot/internal/telegram"
)

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	store     *storage.Storage
	redis     *cache.RedisStore
	telegram  *telegram.Client
	optimizer *pricing.Optimizer
	estimator *elasticity.Estimator
	evaluator *experiment.Evaluator
	service   *repricer.Service
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if configPath != "" {
		logger.Info("Configuration loaded from %s", configPath)
	}

	a := &app{cfg: cfg}
	a.store, err = storage.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a.optimizer = pricing.New(cfg.Pricing.Workers)
	a.estimator = elasticity.NewEstimator(elasticity.Config{
		MinDataPoints:  cfg.Elasticity.MinDataPoints,
		MinCleanPoints: cfg.Elasticity.MinCleanPoints,
	})
	a.evaluator = experiment.NewEvaluator(experiment.Config{
		MinImpressions: cfg.Experiment.MinImpressions,
		Alpha:          cfg.Experiment.Alpha,
		Z:              cfg.Experiment.Z,
	})

	deps := repricer.Deps{
		Store:     a.store,
		Optimizer: a.optimizer,
		Estimator: a.estimator,
		Evaluator: a.evaluator,
		Guard: guardrail.NewChecker(guardrail.Config{
			MinMargin:              cfg.Guardrails.MinMargin,
			MaxChangePct:           cfg.Guardrails.MaxChangePct,
			MinHoursBetweenChanges: cfg.Guardrails.MinHoursBetweenChanges,
		}),
		Cache: cache.NewElasticityCache(a.cacheStore(), cfg.Cache.TTL),
	}

	if cfg.CompetitorFeed.Enabled {
		deps.Feed = competitorfeed.NewClient(
			cfg.CompetitorFeed.BaseURL,
			cfg.CompetitorFeed.Timeout,
			cfg.CompetitorFeed.MaxRetries,
			cfg.CompetitorFeed.RetryDelay,
		)
		logger.Info("Competitor feed enabled (%s)", cfg.CompetitorFeed.BaseURL)
	}

	if cfg.Telegram.Enabled {
		a.telegram, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		deps.Notifier = a.telegram
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	objective, err := models.ParseObjective(cfg.Pricing.Objective)
	if err != nil {
		a.close()
		return nil, err
	}
	a.service = repricer.New(deps, repricer.Config{
		Objective:         objective,
		Constraints:       cfg.Pricing.Constraints(),
		LookbackDays:      cfg.Elasticity.LookbackDays,
		DefaultElasticity: cfg.Elasticity.Default,
		AutoApply:         cfg.Guardrails.AutoApply,
		PriceChangePct:    cfg.Experiment.DefaultPriceChangePct,
	})
	if a.telegram != nil {
		a.telegram.SetStatusFunc(a.service.Status)
	}
	return a, nil
}

// cacheStore returns Redis when enabled and reachable, otherwise an
// in-process store.
func (a *app) cacheStore() cache.Store {
	if !a.cfg.Cache.Enabled {
		return cache.NewMemoryStore()
	}
	rs := cache.NewRedisStore(&redis.Options{
		Addr:     a.cfg.Cache.Addr,
		Password: a.cfg.Cache.Password,
		DB:       a.cfg.Cache.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rs.Ping(ctx); err != nil {
		logger.Warn("Redis at %s unreachable, using in-process cache: %v", a.cfg.Cache.Addr, err)
		rs.Close()
		return cache.NewMemoryStore()
	}
	a.redis = rs
	logger.Info("Elasticity cache backed by Redis at %s", a.cfg.Cache.Addr)
	return rs
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("Failed to close Redis client: %v", err)
		}
	}
	if err := a.store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
	logger.Sync()
}
