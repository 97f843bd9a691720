package storage

import (
	"fmt"

	"github.com/rewired-gh/pricepilot/internal/models"
)

func (s *Storage) AddAlert(a *models.Alert) error {
	if a.ID == "" {
		a.ID = newID()
	}
	_, err := s.db.Exec(`
		INSERT INTO alerts (id, severity, type, title, message, product_id, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		a.ID, string(a.Severity), string(a.Type), a.Title, a.Message, a.ProductID, a.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Storage) RecentAlerts(limit int) ([]models.Alert, error) {
	rows, err := s.db.Query(`
		SELECT id, severity, type, title, message, product_id, created_at
		FROM alerts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var a models.Alert
		var severity, typ string
		var createdAtNano int64
		if err := rows.Scan(&a.ID, &severity, &typ, &a.Title, &a.Message, &a.ProductID, &createdAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Severity = models.Severity(severity)
		a.Type = models.AlertType(typ)
		a.CreatedAt = fromNano(createdAtNano)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
