package storage

import (
	"fmt"
	"time"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// AddCompetitorPrices stores a batch of competitor observations. Missing IDs
// are generated.
func (s *Storage) AddCompetitorPrices(prices []models.CompetitorPrice) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO competitor_prices
			(id, product_id, competitor, price, shipping_cost, in_stock, observed_at)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare competitor insert: %w", err)
	}
	defer stmt.Close()

	for i := range prices {
		c := &prices[i]
		if c.ID == "" {
			c.ID = newID()
		}
		if _, err := stmt.Exec(c.ID, c.ProductID, c.Competitor, c.Price, c.ShippingCost,
			boolToInt(c.InStock), c.ObservedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert competitor price: %w", err)
		}
	}
	return tx.Commit()
}

// LatestCompetitorPrices returns the most recent observation per competitor
// for a product, ordered by competitor.
func (s *Storage) LatestCompetitorPrices(productID string) ([]models.CompetitorPrice, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.product_id, c.competitor, c.price, c.shipping_cost, c.in_stock, c.observed_at
		FROM competitor_prices c
		JOIN (
			SELECT competitor, MAX(observed_at) AS latest
			FROM competitor_prices WHERE product_id = ?
			GROUP BY competitor
		) l ON l.competitor = c.competitor AND l.latest = c.observed_at
		WHERE c.product_id = ?
		ORDER BY c.competitor`, productID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query competitor prices: %w", err)
	}
	defer rows.Close()

	prices := []models.CompetitorPrice{}
	for rows.Next() {
		var c models.CompetitorPrice
		var inStock int
		var observedAtNano int64
		if err := rows.Scan(&c.ID, &c.ProductID, &c.Competitor, &c.Price, &c.ShippingCost,
			&inStock, &observedAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan competitor price: %w", err)
		}
		c.InStock = inStock != 0
		c.ObservedAt = fromNano(observedAtNano)
		prices = append(prices, c)
	}
	return prices, rows.Err()
}

// CompetitorStats aggregates in-stock competitor prices observed since the
// given time. Count is zero when there are none.
func (s *Storage) CompetitorStats(productID string, since time.Time) (models.CompetitorStats, error) {
	var stats models.CompetitorStats
	var avg, lo *float64
	err := s.db.QueryRow(`
		SELECT COUNT(*), AVG(price), MIN(price)
		FROM competitor_prices
		WHERE product_id = ? AND in_stock = 1 AND observed_at >= ?`,
		productID, since.UnixNano(),
	).Scan(&stats.Count, &avg, &lo)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate competitor prices: %w", err)
	}
	if avg != nil {
		stats.AvgPrice = *avg
	}
	if lo != nil {
		stats.MinPrice = *lo
	}
	return stats, nil
}

// AddSales stores daily sales observations, replacing any existing row for
// the same product and day.
func (s *Storage) AddSales(obs []models.SalesObservation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO sales (product_id, date, price, quantity, revenue, impressions)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sales insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.Exec(o.ProductID, o.Date.UnixNano(), o.Price, o.Quantity, o.Revenue, o.Impressions); err != nil {
			return fmt.Errorf("failed to insert sales row: %w", err)
		}
	}
	return tx.Commit()
}

// SalesSince returns a product's sales observations from since onward in
// chronological order.
func (s *Storage) SalesSince(productID string, since time.Time) ([]models.SalesObservation, error) {
	rows, err := s.db.Query(`
		SELECT product_id, date, price, quantity, revenue, impressions
		FROM sales WHERE product_id = ? AND date >= ?
		ORDER BY date`, productID, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	obs := []models.SalesObservation{}
	for rows.Next() {
		var o models.SalesObservation
		var dateNano int64
		if err := rows.Scan(&o.ProductID, &dateNano, &o.Price, &o.Quantity, &o.Revenue, &o.Impressions); err != nil {
			return nil, fmt.Errorf("failed to scan sales row: %w", err)
		}
		o.Date = fromNano(dateNano)
		obs = append(obs, o)
	}
	return obs, rows.Err()
}
