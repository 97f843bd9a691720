// Package elasticity estimates price elasticity of demand from a product's
// sales history by regressing period-over-period quantity changes on price
// changes.
package elasticity

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/pricepilot/internal/models"
	"github.com/rewired-gh/pricepilot/internal/pricing"
)

// ErrTooFewObservations is returned when fewer than two observations are
// supplied; no percentage change can be formed from a single point.
var ErrTooFewObservations = errors.New("elasticity: at least two observations are required")

const (
	DefaultMinDataPoints  = 10
	DefaultMinCleanPoints = 5
)

// Config sets the sample-size thresholds.
type Config struct {
	MinDataPoints  int // raw observations
	MinCleanPoints int // rows left after dropping undefined and zero price changes
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{MinDataPoints: DefaultMinDataPoints, MinCleanPoints: DefaultMinCleanPoints}
}

// Bounds carries the product economics used to derive an optimal price.
// Without bounds the estimate keeps the current price as optimal.
type Bounds struct {
	Cost     float64
	MinPrice float64
	MaxPrice float64
}

// Estimator fits elasticity curves. The zero value uses DefaultConfig.
type Estimator struct {
	cfg Config
}

// NewEstimator returns an Estimator; non-positive thresholds fall back to
// the defaults.
func NewEstimator(cfg Config) *Estimator {
	if cfg.MinDataPoints <= 0 {
		cfg.MinDataPoints = DefaultMinDataPoints
	}
	if cfg.MinCleanPoints <= 0 {
		cfg.MinCleanPoints = DefaultMinCleanPoints
	}
	return &Estimator{cfg: cfg}
}

// Config returns the thresholds in effect.
func (e *Estimator) Config() Config {
	if e == nil || e.cfg.MinDataPoints <= 0 {
		return NewEstimator(Config{}).cfg
	}
	return e.cfg
}

// Estimate fits elasticity to a chronological series of observations.
//
// Too little data is not an error: the estimate comes back with Insufficient
// set and zero elasticity and confidence. The only error is
// ErrTooFewObservations.
func (e *Estimator) Estimate(productID string, obs []models.SalesObservation, bounds *Bounds) (models.ElasticityEstimate, error) {
	if len(obs) < 2 {
		return models.ElasticityEstimate{}, fmt.Errorf("product %s has %d observations: %w", productID, len(obs), ErrTooFewObservations)
	}
	cfg := e.Config()

	if len(obs) < cfg.MinDataPoints {
		return models.ElasticityEstimate{
			ProductID:      productID,
			DataPoints:     len(obs),
			Interpretation: models.InsufficientSignal,
			Description:    "Insufficient data for elasticity calculation",
			Insufficient:   true,
			Error:          "Not enough data points",
		}, nil
	}

	currentPrice := obs[len(obs)-1].Price
	priceChanges, quantityChanges := percentChanges(obs)

	if len(priceChanges) < cfg.MinCleanPoints {
		return flatVariation(productID, len(obs), currentPrice), nil
	}

	_, slope := stat.LinearRegression(priceChanges, quantityChanges, nil, false)
	if !finite(slope) {
		// Every clean row moved the price by the same percentage.
		return flatVariation(productID, len(obs), currentPrice), nil
	}
	elasticity := slope
	confidence := math.Abs(stat.Correlation(priceChanges, quantityChanges, nil))
	if math.IsNaN(confidence) {
		// Constant quantity changes have no correlation to speak of.
		confidence = 0
	}

	optimalPrice := currentPrice
	if bounds != nil && elasticity < -1 {
		optimalPrice = bounds.Cost * (elasticity / (1 + elasticity))
		optimalPrice = math.Max(bounds.MinPrice, math.Min(bounds.MaxPrice, optimalPrice))
	}

	var priceChangePct float64
	if currentPrice != 0 {
		priceChangePct = (optimalPrice - currentPrice) / currentPrice
	}
	avgQuantity := meanQuantity(obs)
	currentRevenue := currentPrice * avgQuantity
	optimalRevenue := optimalPrice * avgQuantity * (1 + priceChangePct*elasticity)

	interpretation, description := interpret(elasticity)

	action := models.PriceDecrease
	if optimalPrice > currentPrice {
		action = models.PriceIncrease
	}

	return models.ElasticityEstimate{
		ProductID:          productID,
		Elasticity:         pricing.Round(elasticity, 2),
		Confidence:         pricing.Round(confidence, 2),
		DataPoints:         len(priceChanges),
		CurrentPrice:       pricing.Round(currentPrice, pricing.CurrencyPlaces),
		OptimalPrice:       pricing.Round(optimalPrice, pricing.CurrencyPlaces),
		Interpretation:     interpretation,
		Description:        description,
		RevenueOpportunity: pricing.Round(optimalRevenue-currentRevenue, pricing.CurrencyPlaces),
		Recommendation: &models.PriceRecommendation{
			Action:     action,
			Amount:     pricing.Round(math.Abs(optimalPrice-currentPrice), pricing.CurrencyPlaces),
			Percentage: pricing.Round(math.Abs(priceChangePct)*100, 2),
		},
	}, nil
}

func flatVariation(productID string, dataPoints int, currentPrice float64) models.ElasticityEstimate {
	return models.ElasticityEstimate{
		ProductID:      productID,
		DataPoints:     dataPoints,
		CurrentPrice:   pricing.Round(currentPrice, pricing.CurrencyPlaces),
		Interpretation: models.InsufficientSignal,
		Description:    "Not enough price variations",
		Insufficient:   true,
		Error:          "Insufficient price variations",
	}
}

// Estimate runs a default Estimator.
func Estimate(productID string, obs []models.SalesObservation, bounds *Bounds) (models.ElasticityEstimate, error) {
	return (&Estimator{}).Estimate(productID, obs, bounds)
}

// percentChanges returns the paired price and quantity changes between
// consecutive observations, skipping pairs where either change is undefined
// or infinite, or the price did not move.
func percentChanges(obs []models.SalesObservation) (price, quantity []float64) {
	for i := 1; i < len(obs); i++ {
		dp := pctChange(obs[i-1].Price, obs[i].Price)
		dq := pctChange(obs[i-1].Quantity, obs[i].Quantity)
		if !finite(dp) || !finite(dq) || dp == 0 {
			continue
		}
		price = append(price, dp)
		quantity = append(quantity, dq)
	}
	return price, quantity
}

func pctChange(prev, cur float64) float64 {
	return (cur - prev) / prev
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func meanQuantity(obs []models.SalesObservation) float64 {
	var sum float64
	for _, o := range obs {
		sum += o.Quantity
	}
	return sum / float64(len(obs))
}

func interpret(e float64) (models.Interpretation, string) {
	impact := math.Abs(e * 10)
	switch {
	case e > -1:
		return models.Inelastic, "Inelastic: Price changes have minimal impact on demand"
	case e > -2:
		return models.ModeratelyElastic, fmt.Sprintf("Moderately elastic: 10%% price increase → %.1f%% demand decrease", impact)
	default:
		return models.HighlyElastic, fmt.Sprintf("Highly elastic: 10%% price increase → %.1f%% demand decrease", impact)
	}
}
