package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// ApplyPriceChange records a price-history row and moves the product to the
// new price in one transaction. OldPrice is taken from the stored product.
func (s *Storage) ApplyPriceChange(pc *models.PriceChange) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := tx.QueryRow(`SELECT current_price FROM products WHERE id = ?`, pc.ProductID).Scan(&pc.OldPrice); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("product %s: %w", pc.ProductID, ErrNotFound)
		}
		return fmt.Errorf("failed to read current price: %w", err)
	}
	if pc.ID == "" {
		pc.ID = newID()
	}

	if _, err := tx.Exec(`
		INSERT INTO price_history (id, product_id, old_price, new_price, reason, changed_by, effective_at)
		VALUES (?,?,?,?,?,?,?)`,
		pc.ID, pc.ProductID, pc.OldPrice, pc.NewPrice, pc.Reason, pc.ChangedBy, pc.EffectiveAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert price history: %w", err)
	}
	if _, err := tx.Exec(`UPDATE products SET current_price = ?, updated_at = ? WHERE id = ?`,
		pc.NewPrice, pc.EffectiveAt.UnixNano(), pc.ProductID); err != nil {
		return fmt.Errorf("failed to update product price: %w", err)
	}
	return tx.Commit()
}

// LastPriceChange returns the most recent price change for a product, or
// nil if its price has never changed.
func (s *Storage) LastPriceChange(productID string) (*models.PriceChange, error) {
	history, err := s.PriceHistory(productID, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	return &history[0], nil
}

// PriceHistory returns up to limit price changes, newest first.
func (s *Storage) PriceHistory(productID string, limit int) ([]models.PriceChange, error) {
	rows, err := s.db.Query(`
		SELECT id, product_id, old_price, new_price, reason, changed_by, effective_at
		FROM price_history WHERE product_id = ?
		ORDER BY effective_at DESC LIMIT ?`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	history := []models.PriceChange{}
	for rows.Next() {
		var pc models.PriceChange
		var effectiveAtNano int64
		if err := rows.Scan(&pc.ID, &pc.ProductID, &pc.OldPrice, &pc.NewPrice, &pc.Reason,
			&pc.ChangedBy, &effectiveAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		pc.EffectiveAt = fromNano(effectiveAtNano)
		history = append(history, pc)
	}
	return history, rows.Err()
}
