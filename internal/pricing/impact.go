package pricing

import "github.com/rewired-gh/pricepilot/internal/models"

// baselineVolume normalizes revenue and profit projections.
const baselineVolume = 100.0

// Impact is the projected percentage change from moving to a new price.
type Impact struct {
	RevenueChange float64
	ProfitChange  float64
	VolumeChange  float64
}

// EstimateImpact projects revenue, profit and volume changes from the current
// price to newPrice under constant elasticity. A non-positive current price
// yields no projection; a zero profit baseline (cost == price) yields a zero
// profit change.
func EstimateImpact(s models.FeatureSnapshot, newPrice float64) Impact {
	if s.CurrentPrice <= 0 {
		return Impact{}
	}
	priceChangePct := (newPrice - s.CurrentPrice) / s.CurrentPrice
	volumeChangePct := priceChangePct * s.Elasticity

	currentRevenue := baselineVolume * s.CurrentPrice
	currentProfit := baselineVolume * (s.CurrentPrice - s.Cost)

	newVolume := baselineVolume * (1 + volumeChangePct)
	newRevenue := newVolume * newPrice
	newProfit := newVolume * (newPrice - s.Cost)

	impact := Impact{
		RevenueChange: (newRevenue - currentRevenue) / currentRevenue * 100,
		VolumeChange:  volumeChangePct * 100,
	}
	if currentProfit != 0 {
		impact.ProfitChange = (newProfit - currentProfit) / currentProfit * 100
	}
	return impact
}
