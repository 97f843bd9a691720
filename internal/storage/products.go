package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rewired-gh/pricepilot/internal/models"
)

const productCols = `id, name, category, current_price, cost, min_price, max_price,
	stock_quantity, stock_velocity, seasonality_factor, conversion_rate, return_rate,
	active, updated_at`

// UpsertProduct inserts a product or replaces the stored copy.
func (s *Storage) UpsertProduct(p *models.Product) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT INTO products (`+productCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, category=excluded.category,
			current_price=excluded.current_price, cost=excluded.cost,
			min_price=excluded.min_price, max_price=excluded.max_price,
			stock_quantity=excluded.stock_quantity, stock_velocity=excluded.stock_velocity,
			seasonality_factor=excluded.seasonality_factor,
			conversion_rate=excluded.conversion_rate, return_rate=excluded.return_rate,
			active=excluded.active, updated_at=excluded.updated_at`,
		p.ID, p.Name, p.Category, p.CurrentPrice, p.Cost, p.MinPrice, p.MaxPrice,
		p.StockQuantity, p.StockVelocity, p.SeasonalityFactor, p.ConversionRate, p.ReturnRate,
		boolToInt(p.Active), p.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (s *Storage) GetProduct(id string) (*models.Product, error) {
	row := s.db.QueryRow(`SELECT `+productCols+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// ListActiveProducts returns active products ordered by ID.
func (s *Storage) ListActiveProducts() ([]*models.Product, error) {
	rows, err := s.db.Query(`SELECT ` + productCols + ` FROM products WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()
	products := []*models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(scan func(...any) error) (*models.Product, error) {
	var p models.Product
	var active int
	var updatedAtNano int64
	err := scan(
		&p.ID, &p.Name, &p.Category, &p.CurrentPrice, &p.Cost, &p.MinPrice, &p.MaxPrice,
		&p.StockQuantity, &p.StockVelocity, &p.SeasonalityFactor, &p.ConversionRate, &p.ReturnRate,
		&active, &updatedAtNano,
	)
	if err != nil {
		return nil, err
	}
	p.Active = active != 0
	p.UpdatedAt = fromNano(updatedAtNano)
	return &p, nil
}
