package models

import (
	"errors"
	"time"
)

// Product is a catalog item whose price the service manages.
type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	CurrentPrice      float64   `json:"current_price"`
	Cost              float64   `json:"cost"`
	MinPrice          float64   `json:"min_price"`
	MaxPrice          float64   `json:"max_price"`
	StockQuantity     int       `json:"stock_quantity"`
	StockVelocity     float64   `json:"stock_velocity"`
	SeasonalityFactor float64   `json:"seasonality_factor"`
	ConversionRate    float64   `json:"conversion_rate"`
	ReturnRate        float64   `json:"return_rate"`
	Active            bool      `json:"active"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Validate checks product field constraints.
func (p *Product) Validate() error {
	if p.ID == "" {
		return errors.New("product ID must not be empty")
	}
	if p.Name == "" {
		return errors.New("product name must not be empty")
	}
	if p.CurrentPrice <= 0 {
		return errors.New("current price must be positive")
	}
	if p.Cost < 0 {
		return errors.New("cost must not be negative")
	}
	if p.MinPrice <= 0 || p.MaxPrice <= 0 {
		return errors.New("min and max price must be positive")
	}
	if p.MinPrice > p.MaxPrice {
		return errors.New("min price must be <= max price")
	}
	if p.StockQuantity < 0 {
		return errors.New("stock quantity must not be negative")
	}
	if p.StockVelocity < 0 {
		return errors.New("stock velocity must not be negative")
	}
	if p.ConversionRate < 0 || p.ConversionRate > 1 {
		return errors.New("conversion rate must be between 0.0 and 1.0")
	}
	if p.ReturnRate < 0 || p.ReturnRate > 1 {
		return errors.New("return rate must be between 0.0 and 1.0")
	}
	return nil
}

// CompetitorPrice is one observation of a rival's price for a product.
type CompetitorPrice struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	Competitor   string    `json:"competitor"`
	Price        float64   `json:"price"`
	ShippingCost float64   `json:"shipping_cost"`
	InStock      bool      `json:"in_stock"`
	ObservedAt   time.Time `json:"observed_at"`
}

// TotalPrice is the landed price including shipping.
func (c CompetitorPrice) TotalPrice() float64 {
	return c.Price + c.ShippingCost
}

// CompetitorStats aggregates recent in-stock competitor prices.
type CompetitorStats struct {
	Count    int
	AvgPrice float64
	MinPrice float64
}

// SalesObservation is one period (day) of sales at a given price.
type SalesObservation struct {
	ProductID   string    `json:"product_id,omitempty"`
	Date        time.Time `json:"date"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
	Revenue     float64   `json:"revenue,omitempty"`
	Impressions int       `json:"impressions,omitempty"`
}

// PriceChange is a row of a product's price history.
type PriceChange struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	OldPrice    float64   `json:"old_price"`
	NewPrice    float64   `json:"new_price"`
	Reason      string    `json:"reason"`
	ChangedBy   string    `json:"changed_by"`
	EffectiveAt time.Time `json:"effective_at"`
}

// Recommendation is a persisted optimization result.
type Recommendation struct {
	ID        string             `json:"id"`
	Result    OptimizationResult `json:"result"`
	Approved  bool               `json:"approved"`
	Rejection string             `json:"rejection,omitempty"`
	Anomalies []string           `json:"anomalies,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}
