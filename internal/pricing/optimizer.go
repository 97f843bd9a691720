package pricing

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// Optimizer runs the pricing pipeline. It holds no mutable state and is safe
// for concurrent use; the zero value is ready to use.
type Optimizer struct {
	// Workers bounds BatchOptimize concurrency. Zero means GOMAXPROCS.
	Workers int
}

// New returns an Optimizer that runs at most workers items in parallel.
func New(workers int) *Optimizer {
	return &Optimizer{Workers: workers}
}

// Optimize recommends a price for one product.
func (o *Optimizer) Optimize(s models.FeatureSnapshot, objective models.Objective, c models.Constraints) models.OptimizationResult {
	factors := ComputeFactors(s)
	weights := WeightsFor(objective, s)
	blended := Blend(factors, weights)

	price, applied := EnforceConstraints(blended, s, c)
	impact := EstimateImpact(s, price)
	confidence := ScoreConfidence(s, factors)

	return models.OptimizationResult{
		ProductID:             s.ProductID,
		Category:              s.Category,
		Objective:             objectiveOrDefault(objective),
		CurrentPrice:          s.CurrentPrice,
		OptimalPrice:          roundWithin(price, s.MinPrice, s.MaxPrice),
		ExpectedRevenueChange: Round(impact.RevenueChange, 2),
		ExpectedProfitChange:  Round(impact.ProfitChange, 2),
		ExpectedVolumeChange:  Round(impact.VolumeChange, 2),
		ConfidenceScore:       Round(confidence, 2),
		Factors: models.FactorPrices{
			Elasticity:  Round(factors.Elasticity, CurrencyPlaces),
			Competition: Round(factors.Competition, CurrencyPlaces),
			Inventory:   Round(factors.Inventory, CurrencyPlaces),
			Seasonality: Round(factors.Seasonality, CurrencyPlaces),
			Margin:      Round(factors.Margin, CurrencyPlaces),
		},
		ConstraintsApplied: applied,
	}
}

// BatchOptimize optimizes every snapshot concurrently. Results are returned
// in input order, so BatchOptimize([]{s})[0] equals Optimize(s).
func (o *Optimizer) BatchOptimize(snapshots []models.FeatureSnapshot, objective models.Objective, c models.Constraints) []models.OptimizationResult {
	results := make([]models.OptimizationResult, len(snapshots))
	if len(snapshots) == 0 {
		return results
	}

	workers := o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range snapshots {
		i := i
		g.Go(func() error {
			results[i] = o.Optimize(snapshots[i], objective, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// CategoryElasticity averages elasticity per category. It is diagnostic only:
// per-item optimization does not consume it.
func CategoryElasticity(snapshots []models.FeatureSnapshot) map[string]float64 {
	byCategory := make(map[string][]float64)
	for _, s := range snapshots {
		byCategory[s.Category] = append(byCategory[s.Category], s.Elasticity)
	}
	out := make(map[string]float64, len(byCategory))
	for category, values := range byCategory {
		out[category] = stat.Mean(values, nil)
	}
	return out
}

func objectiveOrDefault(o models.Objective) models.Objective {
	if _, ok := weightTables[o]; ok {
		return o
	}
	return models.Balanced
}

// roundWithin rounds to currency precision without leaving [lo, hi].
func roundWithin(price, lo, hi float64) float64 {
	r := Round(price, CurrencyPlaces)
	if r < lo || r > hi || math.IsNaN(r) {
		return price
	}
	return r
}
