package storage

import (
	"encoding/json"
	"fmt"

	"github.com/rewired-gh/pricepilot/internal/models"
)

func (s *Storage) AddRecommendation(r *models.Recommendation) error {
	resultJSON, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal optimization result: %w", err)
	}
	anomalies := r.Anomalies
	if anomalies == nil {
		anomalies = []string{}
	}
	anomaliesJSON, err := json.Marshal(anomalies)
	if err != nil {
		return fmt.Errorf("failed to marshal anomalies: %w", err)
	}
	if r.ID == "" {
		r.ID = newID()
	}

	_, err = s.db.Exec(`
		INSERT INTO recommendations
			(id, product_id, optimal_price, result, approved, rejection, anomalies, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.ID, r.Result.ProductID, r.Result.OptimalPrice, string(resultJSON),
		boolToInt(r.Approved), r.Rejection, string(anomaliesJSON), r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}
	return nil
}

// RecentRecommendations returns up to limit recommendations, newest first.
// An empty productID matches every product.
func (s *Storage) RecentRecommendations(productID string, limit int) ([]models.Recommendation, error) {
	rows, err := s.db.Query(`
		SELECT id, result, approved, rejection, anomalies, created_at
		FROM recommendations
		WHERE ? = '' OR product_id = ?
		ORDER BY created_at DESC LIMIT ?`, productID, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	recs := []models.Recommendation{}
	for rows.Next() {
		var r models.Recommendation
		var resultJSON, anomaliesJSON string
		var approved int
		var createdAtNano int64
		if err := rows.Scan(&r.ID, &resultJSON, &approved, &r.Rejection, &anomaliesJSON, &createdAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		if err := json.Unmarshal([]byte(resultJSON), &r.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal optimization result: %w", err)
		}
		if err := json.Unmarshal([]byte(anomaliesJSON), &r.Anomalies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal anomalies: %w", err)
		}
		r.Approved = approved != 0
		r.CreatedAt = fromNano(createdAtNano)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
