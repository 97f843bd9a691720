// Package repricer runs the repricing cycle and the product and experiment
// operations behind the API, CLI and scheduler. It is the only place where
// storage, cache, feed and notifications meet the pricing core.
package repricer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rewired-gh/pricepilot/internal/cache"
	"github.com/rewired-gh/pricepilot/internal/elasticity"
	"github.com/rewired-gh/pricepilot/internal/experiment"
	"github.com/rewired-gh/pricepilot/internal/guardrail"
	"github.com/rewired-gh/pricepilot/internal/logger"
	"github.com/rewired-gh/pricepilot/internal/models"
	"github.com/rewired-gh/pricepilot/internal/pricing"
	"github.com/rewired-gh/pricepilot/internal/storage"
)

var (
	// ErrExperimentCompleted is returned when ending an experiment twice.
	ErrExperimentCompleted = errors.New("experiment already completed")
	// ErrCycleRunning is returned when a repricing cycle is already in progress.
	ErrCycleRunning = errors.New("repricing cycle already running")
)

// PriceFeed supplies fresh competitor prices.
type PriceFeed interface {
	FetchPrices(ctx context.Context, productID string) ([]models.CompetitorPrice, error)
}

// Notifier delivers cycle digests, alerts and failure notices.
type Notifier interface {
	SendReport(r models.CycleReport) error
	SendAlerts(alerts []models.Alert) error
	SendError(err error) error
	SendRecovery(failureCount int) error
}

type Config struct {
	Objective         models.Objective
	Constraints       models.Constraints
	LookbackDays      int
	CompetitorWindow  time.Duration
	DefaultElasticity float64
	AutoApply         bool
	AlertCooldown     time.Duration
	TopK              int
	HistoryDepth      int
	PriceChangePct    float64
}

func DefaultConfig() Config {
	return Config{
		Objective:         models.Balanced,
		LookbackDays:      90,
		CompetitorWindow:  7 * 24 * time.Hour,
		DefaultElasticity: -1.5,
		AlertCooldown:     6 * time.Hour,
		TopK:              5,
		HistoryDepth:      20,
		PriceChangePct:    0.05,
	}
}

// Deps are the collaborators of a Service. Cache, Feed and Notifier are
// optional.
type Deps struct {
	Store     *storage.Storage
	Optimizer *pricing.Optimizer
	Estimator *elasticity.Estimator
	Evaluator *experiment.Evaluator
	Guard     *guardrail.Checker
	Cache     *cache.ElasticityCache
	Feed      PriceFeed
	Notifier  Notifier
}

type Service struct {
	store     *storage.Storage
	optimizer *pricing.Optimizer
	estimator *elasticity.Estimator
	evaluator *experiment.Evaluator
	guard     *guardrail.Checker
	cache     *cache.ElasticityCache
	feed      PriceFeed
	notifier  Notifier
	config    Config
	now       func() time.Time

	cycleMu             sync.Mutex
	mu                  sync.Mutex
	notified            map[string]time.Time
	consecutiveFailures int
	lastReport          *models.CycleReport
}

func New(d Deps, config Config) *Service {
	def := DefaultConfig()
	if config.Objective == "" {
		config.Objective = def.Objective
	}
	if config.LookbackDays <= 0 {
		config.LookbackDays = def.LookbackDays
	}
	if config.CompetitorWindow <= 0 {
		config.CompetitorWindow = def.CompetitorWindow
	}
	if config.DefaultElasticity == 0 {
		config.DefaultElasticity = def.DefaultElasticity
	}
	if config.TopK <= 0 {
		config.TopK = def.TopK
	}
	if config.HistoryDepth < guardrail.MinHistory {
		config.HistoryDepth = def.HistoryDepth
	}
	if config.PriceChangePct == 0 {
		config.PriceChangePct = def.PriceChangePct
	}

	s := &Service{
		store:     d.Store,
		optimizer: d.Optimizer,
		estimator: d.Estimator,
		evaluator: d.Evaluator,
		guard:     d.Guard,
		cache:     d.Cache,
		feed:      d.Feed,
		notifier:  d.Notifier,
		config:    config,
		now:       time.Now,
		notified:  make(map[string]time.Time),
	}
	if s.optimizer == nil {
		s.optimizer = pricing.New(0)
	}
	if s.estimator == nil {
		s.estimator = elasticity.NewEstimator(elasticity.DefaultConfig())
	}
	if s.evaluator == nil {
		s.evaluator = experiment.NewEvaluator(experiment.DefaultConfig())
	}
	if s.guard == nil {
		s.guard = guardrail.NewChecker(guardrail.DefaultConfig())
	}
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.config
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping()
}

// Snapshot assembles the optimizer input for a product. Missing market data
// falls back to neutral values: competitor average at our own price,
// competitor minimum 10% below it, the default elasticity, and 30 days since
// the last change.
func (s *Service) Snapshot(ctx context.Context, p *models.Product) (models.FeatureSnapshot, error) {
	now := s.now()

	stats, err := s.store.CompetitorStats(p.ID, now.Add(-s.config.CompetitorWindow))
	if err != nil {
		return models.FeatureSnapshot{}, err
	}
	avg, minPrice := p.CurrentPrice, p.CurrentPrice*0.9
	if stats.Count > 0 {
		avg, minPrice = stats.AvgPrice, stats.MinPrice
	}

	e := s.config.DefaultElasticity
	est, err := s.ProductElasticity(ctx, p.ID, s.config.LookbackDays)
	if err != nil {
		return models.FeatureSnapshot{}, err
	}
	switch {
	case est.Insufficient:
	case math.IsNaN(est.Elasticity) || math.IsInf(est.Elasticity, 0):
		logger.Warn("Ignoring non-finite elasticity for %s, using %.2f", p.ID, e)
	default:
		e = est.Elasticity
	}

	days := 30
	last, err := s.store.LastPriceChange(p.ID)
	if err != nil {
		return models.FeatureSnapshot{}, err
	}
	if last != nil {
		days = int(now.Sub(last.EffectiveAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
	}

	return models.FeatureSnapshot{
		ProductID:           p.ID,
		CurrentPrice:        p.CurrentPrice,
		Cost:                p.Cost,
		MinPrice:            p.MinPrice,
		MaxPrice:            p.MaxPrice,
		StockQuantity:       p.StockQuantity,
		StockVelocity:       orDefault(p.StockVelocity, 5),
		Elasticity:          e,
		CompetitorAvgPrice:  avg,
		CompetitorMinPrice:  minPrice,
		MarketPosition:      p.CurrentPrice / avg,
		DaysSinceLastChange: days,
		Category:            p.Category,
		SeasonalityFactor:   orDefault(p.SeasonalityFactor, 1),
		ConversionRate:      orDefault(p.ConversionRate, 0.02),
		ReturnRate:          orDefault(p.ReturnRate, 0.05),
	}, nil
}

// ProductElasticity estimates a product's elasticity from the last days of
// sales, going through the cache when one is configured.
func (s *Service) ProductElasticity(ctx context.Context, productID string, days int) (models.ElasticityEstimate, error) {
	if days <= 0 {
		days = s.config.LookbackDays
	}
	if s.cache != nil {
		est, found, err := s.cache.Get(ctx, productID, days)
		if err != nil {
			logger.Warn("Elasticity cache read failed for %s: %v", productID, err)
		} else if found {
			return *est, nil
		}
	}

	p, err := s.store.GetProduct(productID)
	if err != nil {
		return models.ElasticityEstimate{}, err
	}
	sales, err := s.store.SalesSince(productID, s.now().AddDate(0, 0, -days))
	if err != nil {
		return models.ElasticityEstimate{}, err
	}

	var est models.ElasticityEstimate
	if len(sales) < 2 {
		est = models.ElasticityEstimate{
			ProductID:      productID,
			DataPoints:     len(sales),
			CurrentPrice:   p.CurrentPrice,
			Interpretation: models.InsufficientSignal,
			Description:    "Insufficient data for elasticity calculation",
			Insufficient:   true,
			Error:          "Not enough data points",
		}
	} else {
		est, err = s.estimator.Estimate(productID, sales, &elasticity.Bounds{
			Cost:     p.Cost,
			MinPrice: p.MinPrice,
			MaxPrice: p.MaxPrice,
		})
		if err != nil {
			return models.ElasticityEstimate{}, err
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, productID, days, est); err != nil {
			logger.Warn("Elasticity cache write failed for %s: %v", productID, err)
		}
	}
	return est, nil
}

// RecordSales stores sales observations and drops the product's cached
// elasticity for the default window.
func (s *Service) RecordSales(ctx context.Context, productID string, obs []models.SalesObservation) error {
	if _, err := s.store.GetProduct(productID); err != nil {
		return err
	}
	for i := range obs {
		obs[i].ProductID = productID
	}
	if err := s.store.AddSales(obs); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, productID, s.config.LookbackDays); err != nil {
			logger.Warn("Elasticity cache invalidation failed for %s: %v", productID, err)
		}
	}
	return nil
}

// UpsertProduct stores a product.
func (s *Service) UpsertProduct(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = s.now()
	return s.store.UpsertProduct(p)
}

// RecordCompetitorPrices stores competitor observations for a product.
func (s *Service) RecordCompetitorPrices(ctx context.Context, productID string, prices []models.CompetitorPrice) error {
	if _, err := s.store.GetProduct(productID); err != nil {
		return err
	}
	now := s.now()
	for i := range prices {
		prices[i].ProductID = productID
		if prices[i].ObservedAt.IsZero() {
			prices[i].ObservedAt = now
		}
	}
	return s.store.AddCompetitorPrices(prices)
}

// CompetitivePosition compares a product with its latest competitor prices.
func (s *Service) CompetitivePosition(ctx context.Context, productID string) (pricing.CompetitivePosition, error) {
	p, err := s.store.GetProduct(productID)
	if err != nil {
		return pricing.CompetitivePosition{}, err
	}
	competitors, err := s.store.LatestCompetitorPrices(productID)
	if err != nil {
		return pricing.CompetitivePosition{}, err
	}
	e := s.config.DefaultElasticity
	if est, err := s.ProductElasticity(ctx, productID, s.config.LookbackDays); err != nil {
		return pricing.CompetitivePosition{}, err
	} else if !est.Insufficient {
		e = est.Elasticity
	}
	return pricing.AnalyzePosition(*p, competitors, e), nil
}

// Prune drops observations older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.PruneObservations(s.now().Add(-retention))
}

// LastReport returns the report of the most recent successful cycle.
func (s *Service) LastReport() *models.CycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return nil
	}
	r := *s.lastReport
	return &r
}

// Status is a one-line summary for chat commands.
func (s *Service) Status(ctx context.Context) string {
	r := s.LastReport()
	if r == nil {
		return "No repricing cycle has completed yet"
	}
	return fmt.Sprintf("Last cycle %s: %d evaluated, %d approved, %d rejected, %d applied, avg revenue %+.1f%%",
		r.StartedAt.UTC().Format(time.RFC3339), r.ProductsEvaluated, r.Approved, r.Rejected, r.Applied, r.AvgRevenueChange)
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// SetAutoApply toggles applying approved prices during a cycle.
func (s *Service) SetAutoApply(on bool) {
	s.config.AutoApply = on
}
