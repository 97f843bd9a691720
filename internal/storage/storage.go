// Package storage provides SQLite-backed persistence for the catalog,
// competitor and sales observations, price history, recommendations,
// experiments and alerts.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/pricepilot/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "pricepilot", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Storage) Ping() error {
	return s.db.Ping()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			category           TEXT NOT NULL DEFAULT '',
			current_price      REAL NOT NULL,
			cost               REAL NOT NULL,
			min_price          REAL NOT NULL,
			max_price          REAL NOT NULL,
			stock_quantity     INTEGER NOT NULL DEFAULT 0,
			stock_velocity     REAL NOT NULL DEFAULT 0,
			seasonality_factor REAL NOT NULL DEFAULT 1,
			conversion_rate    REAL NOT NULL DEFAULT 0,
			return_rate        REAL NOT NULL DEFAULT 0,
			active             INTEGER NOT NULL DEFAULT 1,
			updated_at         INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS competitor_prices (
			id            TEXT PRIMARY KEY,
			product_id    TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			competitor    TEXT NOT NULL,
			price         REAL NOT NULL,
			shipping_cost REAL NOT NULL DEFAULT 0,
			in_stock      INTEGER NOT NULL DEFAULT 1,
			observed_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_competitor_prices_product ON competitor_prices(product_id, observed_at)`,
		`CREATE TABLE IF NOT EXISTS sales (
			product_id  TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			date        INTEGER NOT NULL,
			price       REAL NOT NULL,
			quantity    REAL NOT NULL,
			revenue     REAL NOT NULL DEFAULT 0,
			impressions INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (product_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id           TEXT PRIMARY KEY,
			product_id   TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			old_price    REAL NOT NULL,
			new_price    REAL NOT NULL,
			reason       TEXT NOT NULL DEFAULT '',
			changed_by   TEXT NOT NULL DEFAULT '',
			effective_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history(product_id, effective_at DESC)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id            TEXT PRIMARY KEY,
			product_id    TEXT NOT NULL,
			optimal_price REAL NOT NULL,
			result        TEXT NOT NULL,
			approved      INTEGER NOT NULL DEFAULT 0,
			rejection     TEXT NOT NULL DEFAULT '',
			anomalies     TEXT NOT NULL DEFAULT '[]',
			created_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_created_at ON recommendations(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS experiments (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL,
			price_change_pct REAL NOT NULL,
			start_at         INTEGER NOT NULL,
			end_at           INTEGER,
			created_at       INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS experiment_arms (
			experiment_id TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
			product_id    TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			grp           TEXT NOT NULL,
			test_price    REAL NOT NULL,
			PRIMARY KEY (experiment_id, product_id, grp)
		)`,
		`CREATE TABLE IF NOT EXISTS experiment_counts (
			experiment_id TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
			grp           TEXT NOT NULL,
			impressions   INTEGER NOT NULL DEFAULT 0,
			conversions   INTEGER NOT NULL DEFAULT 0,
			revenue       REAL NOT NULL DEFAULT 0,
			recorded_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_experiment_counts ON experiment_counts(experiment_id, grp)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id         TEXT PRIMARY KEY,
			severity   TEXT NOT NULL,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			message    TEXT NOT NULL,
			product_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// PruneObservations deletes competitor observations, sales rows,
// recommendations and alerts older than cutoff. Products, price history and
// experiments are kept.
func (s *Storage) PruneObservations(cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var total int64
	for _, stmt := range []string{
		`DELETE FROM competitor_prices WHERE observed_at < ?`,
		`DELETE FROM sales WHERE date < ?`,
		`DELETE FROM recommendations WHERE created_at < ?`,
		`DELETE FROM alerts WHERE created_at < ?`,
	} {
		res, err := tx.Exec(stmt, cutoff.UnixNano())
		if err != nil {
			return 0, fmt.Errorf("failed to prune observations: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, tx.Commit()
}

func newID() string {
	return uuid.NewString()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fromNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
