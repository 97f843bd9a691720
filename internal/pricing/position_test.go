package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rewired-gh/pricepilot/internal/models"
)

func rivals(prices ...float64) []models.CompetitorPrice {
	out := make([]models.CompetitorPrice, 0, len(prices))
	for i, p := range prices {
		out = append(out, models.CompetitorPrice{
			ProductID:  "sku-1",
			Competitor: string(rune('A' + i)),
			Price:      p,
			InStock:    true,
		})
	}
	return out
}

func TestAnalyzePosition_NoCompetition(t *testing.T) {
	p := models.Product{ID: "sku-1", CurrentPrice: 50, MaxPrice: 60}
	out := []models.CompetitorPrice{{ProductID: "sku-1", Price: 40, InStock: false}}

	pos := AnalyzePosition(p, out, -2)
	assert.Equal(t, NoCompetition, pos.Position)
	assert.Equal(t, 0, pos.InStockCompetitors)
	assert.Equal(t, "Monitor for new competitors", pos.Recommendation)
	assert.Zero(t, pos.RecommendedPrice)
}

func TestAnalyzePosition_AboveMarketMatches(t *testing.T) {
	p := models.Product{ID: "sku-1", CurrentPrice: 50, MaxPrice: 60}
	comps := rivals(40, 42, 45)
	comps[1].ShippingCost = 2

	pos := AnalyzePosition(p, comps, -2)
	assert.Equal(t, AboveMarket, pos.Position)
	assert.Equal(t, 43.0, pos.AvgCompetitorPrice)
	assert.Equal(t, 40.0, pos.MinCompetitorPrice)
	assert.Equal(t, 45.0, pos.MaxCompetitorPrice)
	assert.Equal(t, 1.16, pos.PriceIndex)
	assert.Equal(t, "16.3% above average", pos.Description)
	assert.Equal(t, 42.14, pos.RecommendedPrice)
	assert.Equal(t, "Lower to $42.14 to match market", pos.Recommendation)
	assert.Equal(t, "+31 units/week", pos.ExpectedImpact)
}

func TestAnalyzePosition_AboveMarketFewRivals(t *testing.T) {
	p := models.Product{ID: "sku-1", CurrentPrice: 50, MaxPrice: 60}

	pos := AnalyzePosition(p, rivals(40, 42), -2)
	assert.Equal(t, AboveMarket, pos.Position)
	assert.Equal(t, "Current pricing is well-positioned", pos.Recommendation)
	assert.Zero(t, pos.RecommendedPrice)
}

func TestAnalyzePosition_BelowMarketWithStockouts(t *testing.T) {
	p := models.Product{ID: "sku-1", CurrentPrice: 30, MaxPrice: 60}
	comps := append(rivals(38, 40, 42), models.CompetitorPrice{ProductID: "sku-1", Competitor: "Z", Price: 35})

	pos := AnalyzePosition(p, comps, -1.2)
	assert.Equal(t, BelowMarket, pos.Position)
	assert.Equal(t, 3, pos.InStockCompetitors)
	assert.Equal(t, "25.0% below average", pos.Description)
	assert.InDelta(t, 38.0, pos.RecommendedPrice, 1e-9)
	assert.Equal(t, "Increase to $38.00 - 1 competitors out of stock", pos.Recommendation)

	p.MaxPrice = 35
	pos = AnalyzePosition(p, comps, -1.2)
	assert.Equal(t, 35.0, pos.RecommendedPrice, "capped at max price")
}

func TestAnalyzePosition_BelowMarketAllInStock(t *testing.T) {
	p := models.Product{ID: "sku-1", CurrentPrice: 30, MaxPrice: 60}

	pos := AnalyzePosition(p, rivals(38, 40, 42), -1.2)
	assert.Equal(t, BelowMarket, pos.Position)
	assert.Equal(t, "Maintain current pricing - good competitive position", pos.Recommendation)
}

func TestAnalyzePosition_AtMarket(t *testing.T) {
	p := models.Product{ID: "sku-1", CurrentPrice: 41, MaxPrice: 60}

	pos := AnalyzePosition(p, rivals(38, 40, 42), -1.2)
	assert.Equal(t, AtMarket, pos.Position)
	assert.Equal(t, "At market average", pos.Description)
	assert.Equal(t, "No change recommended", pos.ExpectedImpact)
}
