package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rewired-gh/pricepilot/internal/models"
)

const experimentCols = `id, name, description, status, price_change_pct, start_at, end_at, created_at`

// CreateExperiment stores an experiment and its arms.
func (s *Storage) CreateExperiment(e *models.Experiment) error {
	if e.ID == "" {
		e.ID = newID()
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid experiment: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`INSERT INTO experiments (`+experimentCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.Name, e.Description, string(e.Status), e.PriceChangePct,
		e.StartAt.UnixNano(), nullableNano(e.EndAt), e.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert experiment: %w", err)
	}
	for _, arm := range e.Arms {
		if _, err := tx.Exec(`
			INSERT INTO experiment_arms (experiment_id, product_id, grp, test_price)
			VALUES (?,?,?,?)`, e.ID, arm.ProductID, string(arm.Group), arm.TestPrice); err != nil {
			return fmt.Errorf("failed to insert experiment arm: %w", err)
		}
	}
	return tx.Commit()
}

// GetExperiment returns an experiment with its arms.
func (s *Storage) GetExperiment(id string) (*models.Experiment, error) {
	row := s.db.QueryRow(`SELECT `+experimentCols+` FROM experiments WHERE id = ?`, id)
	e, err := scanExperiment(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("experiment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	if e.Arms, err = s.experimentArms(id); err != nil {
		return nil, err
	}
	return e, nil
}

// ListExperiments returns experiments newest first. An empty status matches
// all of them. Arms are not loaded.
func (s *Storage) ListExperiments(status models.ExperimentStatus) ([]*models.Experiment, error) {
	rows, err := s.db.Query(`
		SELECT `+experimentCols+` FROM experiments
		WHERE ? = '' OR status = ?
		ORDER BY created_at DESC`, string(status), string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query experiments: %w", err)
	}
	defer rows.Close()

	experiments := []*models.Experiment{}
	for rows.Next() {
		e, err := scanExperiment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, e)
	}
	return experiments, rows.Err()
}

// UpdateExperimentStatus moves an experiment to status. A non-nil endAt also
// sets its end time.
func (s *Storage) UpdateExperimentStatus(id string, status models.ExperimentStatus, endAt *time.Time) error {
	res, err := s.db.Exec(`
		UPDATE experiments SET status = ?, end_at = COALESCE(?, end_at) WHERE id = ?`,
		string(status), nullableNano(endAt), id)
	if err != nil {
		return fmt.Errorf("failed to update experiment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("experiment %s: %w", id, ErrNotFound)
	}
	return nil
}

// ActiveExperimentForProduct returns the running experiment covering a
// product at now, with its arms, or nil when there is none.
func (s *Storage) ActiveExperimentForProduct(productID string, now time.Time) (*models.Experiment, error) {
	row := s.db.QueryRow(`
		SELECT `+prefixed("e.", experimentCols)+`
		FROM experiments e
		JOIN experiment_arms a ON a.experiment_id = e.id
		WHERE a.product_id = ? AND e.status = ? AND e.start_at <= ?
		  AND (e.end_at IS NULL OR e.end_at >= ?)
		ORDER BY e.start_at DESC LIMIT 1`,
		productID, string(models.ExperimentRunning), now.UnixNano(), now.UnixNano())
	e, err := scanExperiment(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active experiment: %w", err)
	}
	if e.Arms, err = s.experimentArms(e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

// AddExperimentCounts records exposures and outcomes for one arm.
func (s *Storage) AddExperimentCounts(experimentID string, group models.Group, c models.GroupCounts, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO experiment_counts (experiment_id, grp, impressions, conversions, revenue, recorded_at)
		VALUES (?,?,?,?,?,?)`,
		experimentID, string(group), c.Impressions, c.Conversions, c.Revenue, at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert experiment counts: %w", err)
	}
	return nil
}

// ExperimentCounts sums the recorded counts per arm.
func (s *Storage) ExperimentCounts(experimentID string) (control, variant models.GroupCounts, err error) {
	rows, err := s.db.Query(`
		SELECT grp, SUM(impressions), SUM(conversions), SUM(revenue)
		FROM experiment_counts WHERE experiment_id = ?
		GROUP BY grp`, experimentID)
	if err != nil {
		return control, variant, fmt.Errorf("failed to query experiment counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var group string
		var c models.GroupCounts
		if err := rows.Scan(&group, &c.Impressions, &c.Conversions, &c.Revenue); err != nil {
			return control, variant, fmt.Errorf("failed to scan experiment counts: %w", err)
		}
		switch models.Group(group) {
		case models.GroupControl:
			control = c
		case models.GroupVariant:
			variant = c
		}
	}
	return control, variant, rows.Err()
}

func (s *Storage) experimentArms(experimentID string) ([]models.ExperimentArm, error) {
	rows, err := s.db.Query(`
		SELECT product_id, grp, test_price FROM experiment_arms
		WHERE experiment_id = ? ORDER BY product_id, grp`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query experiment arms: %w", err)
	}
	defer rows.Close()

	arms := []models.ExperimentArm{}
	for rows.Next() {
		var a models.ExperimentArm
		var group string
		if err := rows.Scan(&a.ProductID, &group, &a.TestPrice); err != nil {
			return nil, fmt.Errorf("failed to scan experiment arm: %w", err)
		}
		a.Group = models.Group(group)
		arms = append(arms, a)
	}
	return arms, rows.Err()
}

func scanExperiment(scan func(...any) error) (*models.Experiment, error) {
	var e models.Experiment
	var status string
	var startAtNano, createdAtNano int64
	var endAtNano sql.NullInt64
	err := scan(&e.ID, &e.Name, &e.Description, &status, &e.PriceChangePct,
		&startAtNano, &endAtNano, &createdAtNano)
	if err != nil {
		return nil, err
	}
	e.Status = models.ExperimentStatus(status)
	e.StartAt = fromNano(startAtNano)
	e.CreatedAt = fromNano(createdAtNano)
	if endAtNano.Valid {
		t := fromNano(endAtNano.Int64)
		e.EndAt = &t
	}
	return &e, nil
}

func nullableNano(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func prefixed(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, col := range parts {
		parts[i] = prefix + strings.TrimSpace(col)
	}
	return strings.Join(parts, ", ")
}
