package pricing

import (
	"fmt"
	"math"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// MarketPositionKind is where a price sits relative to the competition.
type MarketPositionKind string

const (
	BelowMarket   MarketPositionKind = "below_market"
	AtMarket      MarketPositionKind = "at_market"
	AboveMarket   MarketPositionKind = "above_market"
	NoCompetition MarketPositionKind = "no_competition"
)

// CompetitivePosition summarizes a product's standing against its rivals.
type CompetitivePosition struct {
	ProductID          string             `json:"product_id"`
	OurPrice           float64            `json:"our_price"`
	Position           MarketPositionKind `json:"position"`
	Description        string             `json:"description"`
	AvgCompetitorPrice float64            `json:"avg_competitor_price,omitempty"`
	MinCompetitorPrice float64            `json:"min_competitor_price,omitempty"`
	MaxCompetitorPrice float64            `json:"max_competitor_price,omitempty"`
	PriceIndex         float64            `json:"price_index,omitempty"`
	InStockCompetitors int                `json:"in_stock_competitors"`
	RecommendedPrice   float64            `json:"recommended_price,omitempty"`
	Recommendation     string             `json:"recommendation"`
	ExpectedImpact     string             `json:"expected_impact"`
}

// AnalyzePosition compares a product's price with the latest competitor
// observations. Only in-stock rivals count toward the market statistics;
// out-of-stock rivals are a reason to raise a below-market price.
func AnalyzePosition(p models.Product, competitors []models.CompetitorPrice, elasticity float64) CompetitivePosition {
	pos := CompetitivePosition{ProductID: p.ID, OurPrice: p.CurrentPrice}

	var inStock []float64
	outOfStock := 0
	for _, c := range competitors {
		if c.InStock {
			inStock = append(inStock, c.TotalPrice())
		} else {
			outOfStock++
		}
	}
	pos.InStockCompetitors = len(inStock)

	if len(inStock) == 0 {
		pos.Position = NoCompetition
		pos.Description = "No active competitors found"
		pos.Recommendation = "Monitor for new competitors"
		pos.ExpectedImpact = "N/A"
		return pos
	}

	avg, lo, hi := 0.0, math.Inf(1), math.Inf(-1)
	for _, v := range inStock {
		avg += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	avg /= float64(len(inStock))

	pos.AvgCompetitorPrice = Round(avg, CurrencyPlaces)
	pos.MinCompetitorPrice = Round(lo, CurrencyPlaces)
	pos.MaxCompetitorPrice = Round(hi, CurrencyPlaces)
	pos.PriceIndex = Round(p.CurrentPrice/avg, 2)

	switch {
	case p.CurrentPrice < avg*0.95:
		pos.Position = BelowMarket
		pos.Description = fmt.Sprintf("%.1f%% below average", (avg-p.CurrentPrice)/avg*100)
	case p.CurrentPrice > avg*1.05:
		pos.Position = AboveMarket
		pos.Description = fmt.Sprintf("%.1f%% above average", (p.CurrentPrice-avg)/avg*100)
	default:
		pos.Position = AtMarket
		pos.Description = "At market average"
	}

	switch {
	case pos.Position == AboveMarket && len(inStock) > 2:
		target := avg * 0.98
		pos.RecommendedPrice = Round(target, CurrencyPlaces)
		pos.Recommendation = fmt.Sprintf("Lower to %s to match market", formatMoney(target))
		if elasticity < 0 {
			volumeChange := (target - p.CurrentPrice) / p.CurrentPrice * elasticity
			pos.ExpectedImpact = fmt.Sprintf("%+d units/week", int(baselineVolume*volumeChange))
		} else {
			pos.ExpectedImpact = "Positive volume impact expected"
		}
	case pos.Position == BelowMarket && outOfStock > 0:
		target := math.Min(avg*0.95, p.MaxPrice)
		pos.RecommendedPrice = Round(target, CurrencyPlaces)
		pos.Recommendation = fmt.Sprintf("Increase to %s - %d competitors out of stock", formatMoney(target), outOfStock)
		pos.ExpectedImpact = "Higher margins with minimal volume impact"
	case pos.Position == BelowMarket:
		pos.Recommendation = "Maintain current pricing - good competitive position"
		pos.ExpectedImpact = "Current position is optimal"
	default:
		pos.Recommendation = "Current pricing is well-positioned"
		pos.ExpectedImpact = "No change recommended"
	}
	return pos
}
