// Package models defines the domain entities shared by the pricing engine and
// the service around it: feature snapshots, optimization and statistical
// results, catalog records, experiments and alerts.
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// MinStockVelocity guards days-of-stock against a zero or negative velocity.
const MinStockVelocity = 0.1

// FeatureSnapshot is the pricing-relevant state of one product at the moment
// an optimization is requested. It is built fresh by the caller and never
// mutated by the engine.
type FeatureSnapshot struct {
	ProductID           string  `json:"product_id"`
	CurrentPrice        float64 `json:"current_price"`
	Cost                float64 `json:"cost"`
	MinPrice            float64 `json:"min_price"`
	MaxPrice            float64 `json:"max_price"`
	StockQuantity       int     `json:"stock_quantity"`
	StockVelocity       float64 `json:"stock_velocity"` // units per day
	Elasticity          float64 `json:"elasticity"`
	CompetitorAvgPrice  float64 `json:"competitor_avg_price"`
	CompetitorMinPrice  float64 `json:"competitor_min_price"`
	MarketPosition      float64 `json:"market_position"` // current / competitor average
	DaysSinceLastChange int     `json:"days_since_last_change"`
	Category            string  `json:"category"`
	SeasonalityFactor   float64 `json:"seasonality_factor"`
	ConversionRate      float64 `json:"conversion_rate"`
	ReturnRate          float64 `json:"return_rate"`
}

// DaysOfStock returns how many days the current stock lasts at the current
// velocity.
func (s FeatureSnapshot) DaysOfStock() float64 {
	return float64(s.StockQuantity) / math.Max(s.StockVelocity, MinStockVelocity)
}

// Validate checks snapshot field constraints. The engine assumes well-formed
// input and does not call this; callers building snapshots from external data
// should.
func (s FeatureSnapshot) Validate() error {
	if s.ProductID == "" {
		return errors.New("product ID must not be empty")
	}
	if s.CurrentPrice <= 0 || s.Cost <= 0 || s.MinPrice <= 0 || s.MaxPrice <= 0 {
		return errors.New("current price, cost, min price and max price must be positive")
	}
	if s.MinPrice > s.MaxPrice {
		return errors.New("min price must be <= max price")
	}
	if s.StockQuantity < 0 {
		return errors.New("stock quantity must not be negative")
	}
	if s.CompetitorAvgPrice < 0 || s.CompetitorMinPrice < 0 {
		return errors.New("competitor prices must not be negative")
	}
	if s.DaysSinceLastChange < 0 {
		return errors.New("days since last change must not be negative")
	}
	if s.ConversionRate < 0 || s.ConversionRate > 1 {
		return errors.New("conversion rate must be between 0.0 and 1.0")
	}
	if s.ReturnRate < 0 || s.ReturnRate > 1 {
		return errors.New("return rate must be between 0.0 and 1.0")
	}
	return nil
}

// Objective selects the factor weight table.
type Objective string

const (
	MaximizeRevenue Objective = "maximize_revenue"
	MaximizeProfit  Objective = "maximize_profit"
	MaximizeVolume  Objective = "maximize_volume"
	Balanced        Objective = "balanced"
)

// Objectives lists every supported objective.
var Objectives = []Objective{MaximizeRevenue, MaximizeProfit, MaximizeVolume, Balanced}

// ParseObjective maps a textual objective to its value. An empty string means
// Balanced; "balance" is accepted as an alias.
func ParseObjective(s string) (Objective, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "balanced", "balance":
		return Balanced, nil
	case string(MaximizeRevenue):
		return MaximizeRevenue, nil
	case string(MaximizeProfit):
		return MaximizeProfit, nil
	case string(MaximizeVolume):
		return MaximizeVolume, nil
	}
	return "", fmt.Errorf("unknown objective: %q", s)
}

// Constraint keys recognized in caller-supplied constraint maps.
const (
	KeyMaxChangePct   = "max_change_pct"
	KeyMinMargin      = "min_margin"
	KeyMaxAboveMarket = "max_above_market"
)

// Constraints are optional soft caps applied after blending. A nil field
// imposes no constraint. All values are fractions (0.15 = 15%).
type Constraints struct {
	MaxChangePct   *float64 `json:"max_change_pct,omitempty" mapstructure:"max_change_pct"`
	MinMargin      *float64 `json:"min_margin,omitempty" mapstructure:"min_margin"`
	MaxAboveMarket *float64 `json:"max_above_market,omitempty" mapstructure:"max_above_market"`
}

// ConstraintsFromMap builds Constraints from a key/value map. Unknown keys are
// ignored.
func ConstraintsFromMap(m map[string]float64) Constraints {
	var c Constraints
	for k, v := range m {
		v := v
		switch k {
		case KeyMaxChangePct:
			c.MaxChangePct = &v
		case KeyMinMargin:
			c.MinMargin = &v
		case KeyMaxAboveMarket:
			c.MaxAboveMarket = &v
		}
	}
	return c
}

// IsZero reports whether no constraint is set.
func (c Constraints) IsZero() bool {
	return c.MaxChangePct == nil && c.MinMargin == nil && c.MaxAboveMarket == nil
}

// Float returns a pointer to v, for building Constraints literals.
func Float(v float64) *float64 {
	return &v
}
