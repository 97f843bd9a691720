// Package pricing computes a recommended price for one product from a
// FeatureSnapshot: five independent factor prices are blended with
// objective-specific weights, clipped by hard bounds and caller constraints,
// and annotated with an impact projection and a confidence score.
//
// Everything in this package is a pure function of its inputs.
package pricing

import (
	"math"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// Factor indexes one pricing signal.
type Factor int

const (
	FactorElasticity Factor = iota
	FactorCompetition
	FactorInventory
	FactorSeasonality
	FactorMargin

	numFactors
)

var factorNames = [numFactors]string{"elasticity", "competition", "inventory", "seasonality", "margin"}

func (f Factor) String() string {
	if f < 0 || f >= numFactors {
		return "unknown"
	}
	return factorNames[f]
}

// calculators are evaluated in Factor order.
var calculators = [numFactors]func(models.FeatureSnapshot) float64{
	FactorElasticity:  ElasticityPrice,
	FactorCompetition: CompetitivePrice,
	FactorInventory:   InventoryPrice,
	FactorSeasonality: SeasonalPrice,
	FactorMargin:      MarginPrice,
}

// Inventory thresholds in days of stock.
const (
	excessStockDays   = 60.0
	scarceStockDays   = 7.0
	maxExcessDiscount = 0.20
	maxScarcePremium  = 0.15
)

// ElasticityPrice proposes a price from the demand elasticity. Inelastic
// demand (e >= -1) leaves headroom, so the price goes up 10%. Elastic demand
// uses cost / (e / (1 + e)), which tends to zero as e approaches -1 from
// below; the constraint enforcer clips whatever this produces.
func ElasticityPrice(s models.FeatureSnapshot) float64 {
	e := s.Elasticity
	if e >= -1 {
		return s.CurrentPrice * 1.10
	}
	return s.Cost / (e / (1 + e))
}

// CompetitivePrice moves toward the market when the product sits more than
// 10% away from the competitor average.
func CompetitivePrice(s models.FeatureSnapshot) float64 {
	switch {
	case s.MarketPosition > 1.1:
		if s.Elasticity < -2 {
			return s.CompetitorAvgPrice * 0.98
		}
		return s.CurrentPrice * 0.95
	case s.MarketPosition < 0.9:
		if s.Elasticity > -1.5 {
			return s.CompetitorAvgPrice * 0.95
		}
		return s.CurrentPrice * 1.02
	default:
		return s.CurrentPrice
	}
}

// InventoryPrice discounts excess stock (more than 60 days) by up to 20% and
// adds up to 15% on scarce stock (fewer than 7 days).
func InventoryPrice(s models.FeatureSnapshot) float64 {
	days := s.DaysOfStock()
	switch {
	case days > excessStockDays:
		reduction := math.Min(maxExcessDiscount, (days-excessStockDays)/100)
		return s.CurrentPrice * (1 - reduction)
	case days < scarceStockDays:
		increase := math.Min(maxScarcePremium, (scarceStockDays-days)/10)
		return s.CurrentPrice * (1 + increase)
	default:
		return s.CurrentPrice
	}
}

// SeasonalPrice scales the current price by the seasonality multiplier.
func SeasonalPrice(s models.FeatureSnapshot) float64 {
	return s.CurrentPrice * s.SeasonalityFactor
}

// MarginPrice is a 15% markup floor over cost, never below the minimum price.
func MarginPrice(s models.FeatureSnapshot) float64 {
	return math.Max(s.Cost*1.15, s.MinPrice)
}

// ComputeFactors evaluates every factor calculator.
func ComputeFactors(s models.FeatureSnapshot) models.FactorPrices {
	var v [numFactors]float64
	for i, calc := range calculators {
		v[i] = calc(s)
	}
	return models.FactorPrices{
		Elasticity:  v[FactorElasticity],
		Competition: v[FactorCompetition],
		Inventory:   v[FactorInventory],
		Seasonality: v[FactorSeasonality],
		Margin:      v[FactorMargin],
	}
}
