package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// ScoreConfidence rates how trustworthy a recommendation is, in [0, 1].
// Extreme elasticity, a recent price change, disagreement between factor
// prices and extreme inventory each lower the score; a price close to the
// market average raises it.
func ScoreConfidence(s models.FeatureSnapshot, f models.FactorPrices) float64 {
	confidence := 1.0

	if math.Abs(s.Elasticity) > 3 {
		confidence *= 0.8
	}
	if s.DaysSinceLastChange < 7 {
		confidence *= 0.9
	}
	if factorDispersion(f) > 0.2 {
		confidence *= 0.85
	}
	if days := s.DaysOfStock(); days > 90 || days < 3 {
		confidence *= 0.85
	}
	if s.MarketPosition >= 0.95 && s.MarketPosition <= 1.05 {
		confidence *= 1.1
	}

	return math.Max(0, math.Min(confidence, 1.0))
}

// factorDispersion is the coefficient of variation (population standard
// deviation over mean) of the factor prices. A zero mean gives zero.
func factorDispersion(f models.FactorPrices) float64 {
	values := f.Values()
	mean := stat.Mean(values, nil)
	if mean == 0 || math.IsNaN(mean) {
		return 0
	}
	return stat.PopStdDev(values, nil) / mean
}
