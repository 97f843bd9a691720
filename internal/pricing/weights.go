package pricing

import (
	"math"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// Weights is a weight per factor, indexed by Factor.
type Weights [numFactors]float64

var weightTables = map[models.Objective]Weights{
	models.MaximizeRevenue: {0.40, 0.30, 0.10, 0.10, 0.10},
	models.MaximizeProfit:  {0.20, 0.20, 0.10, 0.10, 0.40},
	models.MaximizeVolume:  {0.30, 0.40, 0.20, 0.10, 0.00},
	models.Balanced:        {0.25, 0.25, 0.20, 0.15, 0.15},
}

// WeightsFor returns the factor weights for an objective. Balanced weights
// are overridden for strongly elastic products and for inventory outside the
// 14–45 day comfort band. Overrides replace values in place; the vector is
// not renormalized, so a balanced vector can sum above 1.
func WeightsFor(objective models.Objective, s models.FeatureSnapshot) Weights {
	w, ok := weightTables[objective]
	if !ok {
		w = weightTables[models.Balanced]
		objective = models.Balanced
	}
	if objective != models.Balanced {
		return w
	}

	if math.Abs(s.Elasticity) > 2 {
		w[FactorElasticity] = 0.35
		w[FactorCompetition] = 0.30
	}
	days := s.DaysOfStock()
	if days > 45 || days < 14 {
		w[FactorInventory] = 0.30
		w[FactorSeasonality] = 0.10
	}
	return w
}

// Blend is the weighted sum of factor prices.
func Blend(f models.FactorPrices, w Weights) float64 {
	var price float64
	for i, v := range f.Values() {
		price += v * w[i]
	}
	return price
}
