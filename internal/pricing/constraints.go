package pricing

import (
	"math"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// EnforceConstraints clips a blended price against hard bounds and the
// optional caller constraints, in this order:
//
//  1. [MinPrice, MaxPrice]
//  2. max_change_pct relative to the current price, keeping the direction
//  3. max_above_market relative to the competitor average
//  4. min_margin over cost
//
// Steps 2–4 can push the price back outside the hard bounds, so the bounds
// are applied once more at the end and win over every soft constraint. Only
// steps that changed the price are reported.
func EnforceConstraints(price float64, s models.FeatureSnapshot, c models.Constraints) (float64, []string) {
	applied := []string{}

	price, applied = clipBounds(price, s, applied, "")

	if c.MaxChangePct != nil && s.CurrentPrice > 0 {
		maxChange := *c.MaxChangePct
		if math.Abs(price-s.CurrentPrice)/s.CurrentPrice > maxChange {
			if price > s.CurrentPrice {
				price = s.CurrentPrice * (1 + maxChange)
			} else {
				price = s.CurrentPrice * (1 - maxChange)
			}
			applied = append(applied, "max_change_constraint: "+formatPct(maxChange))
		}
	}

	// A zero competitor average means no market data; capping at zero would
	// only be undone by the hard bounds.
	if c.MaxAboveMarket != nil && s.CompetitorAvgPrice > 0 {
		maxAbove := *c.MaxAboveMarket
		ceiling := s.CompetitorAvgPrice * (1 + maxAbove)
		if price > ceiling {
			price = ceiling
			applied = append(applied, "competitive_constraint: max "+formatPct(maxAbove)+" above market")
		}
	}

	// A margin of 100% or more has no finite price floor.
	if c.MinMargin != nil && *c.MinMargin < 1 {
		minMargin := *c.MinMargin
		floor := s.Cost / (1 - minMargin)
		if price < floor {
			price = floor
			applied = append(applied, "margin_constraint: min "+formatPct(minMargin)+" margin")
		}
	}

	price, applied = clipBounds(price, s, applied, "hard bounds override: ")
	return price, applied
}

func clipBounds(price float64, s models.FeatureSnapshot, applied []string, prefix string) (float64, []string) {
	if math.IsNaN(price) {
		price = s.CurrentPrice
		applied = append(applied, prefix+"invalid_price: reset to current")
	}
	if price < s.MinPrice {
		price = s.MinPrice
		applied = append(applied, prefix+"min_price_constraint: "+formatMoney(s.MinPrice))
	}
	if price > s.MaxPrice {
		price = s.MaxPrice
		applied = append(applied, prefix+"max_price_constraint: "+formatMoney(s.MaxPrice))
	}
	return price, applied
}
