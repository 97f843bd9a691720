package repricer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rewired-gh/pricepilot/internal/experiment"
	"github.com/rewired-gh/pricepilot/internal/logger"
	"github.com/rewired-gh/pricepilot/internal/metrics"
	"github.com/rewired-gh/pricepilot/internal/models"
)

// NewExperiment describes an experiment to create.
type NewExperiment struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	ProductIDs     []string   `json:"product_ids"`
	PriceChangePct float64    `json:"price_change_pct"`
	StartAt        time.Time  `json:"start_at"`
	EndAt          *time.Time `json:"end_at"`
}

// Allocation is the arm and price a user sees for a product.
type Allocation struct {
	ProductID    string       `json:"product_id"`
	UserID       string       `json:"user_id"`
	ExperimentID string       `json:"experiment_id,omitempty"`
	Group        models.Group `json:"group"`
	Price        float64      `json:"price"`
}

// CreateExperiment starts an A/B price test over the given products. The
// variant arm carries the current price moved by PriceChangePct (the
// configured default when zero). Experiments starting in the future are
// stored as drafts.
func (s *Service) CreateExperiment(ctx context.Context, req NewExperiment) (*models.Experiment, error) {
	if len(req.ProductIDs) == 0 {
		return nil, errors.New("experiment needs at least one product")
	}
	now := s.now()
	pct := req.PriceChangePct
	if pct == 0 {
		pct = s.config.PriceChangePct
	}
	start := req.StartAt
	if start.IsZero() {
		start = now
	}

	e := &models.Experiment{
		Name:           req.Name,
		Description:    req.Description,
		Status:         models.ExperimentRunning,
		PriceChangePct: pct,
		StartAt:        start,
		EndAt:          req.EndAt,
		CreatedAt:      now,
	}
	if start.After(now) {
		e.Status = models.ExperimentDraft
	}
	for _, id := range req.ProductIDs {
		p, err := s.store.GetProduct(id)
		if err != nil {
			return nil, err
		}
		e.Arms = append(e.Arms, experiment.Arms(p.ID, p.CurrentPrice, pct)...)
	}
	if err := s.store.CreateExperiment(e); err != nil {
		return nil, err
	}
	logger.Info("Created experiment %s (%s) over %d products, change %+.1f%%", e.ID, e.Name, len(req.ProductIDs), pct*100)
	return e, nil
}

// GetExperiment returns a stored experiment with its arms.
func (s *Service) GetExperiment(ctx context.Context, id string) (*models.Experiment, error) {
	return s.store.GetExperiment(id)
}

// ListExperiments returns experiments with the given status, or all when
// status is empty.
func (s *Service) ListExperiments(ctx context.Context, status models.ExperimentStatus) ([]*models.Experiment, error) {
	return s.store.ListExperiments(status)
}

// RecordExperimentCounts adds impressions and conversions for one arm.
func (s *Service) RecordExperimentCounts(ctx context.Context, id string, group models.Group, c models.GroupCounts) error {
	if group != models.GroupControl && group != models.GroupVariant {
		return fmt.Errorf("unknown group %q", group)
	}
	if c.Impressions < 0 || c.Conversions < 0 || c.Conversions > c.Impressions {
		return errors.New("conversions must be between 0 and impressions")
	}
	if _, err := s.store.GetExperiment(id); err != nil {
		return err
	}
	return s.store.AddExperimentCounts(id, group, c, s.now())
}

// ExperimentResults evaluates the counts recorded so far.
func (s *Service) ExperimentResults(ctx context.Context, id string) (models.ExperimentAnalysis, error) {
	if _, err := s.store.GetExperiment(id); err != nil {
		return models.ExperimentAnalysis{}, err
	}
	control, variant, err := s.store.ExperimentCounts(id)
	if err != nil {
		return models.ExperimentAnalysis{}, err
	}
	analysis := s.evaluator.Evaluate(control, variant)
	analysis.ExperimentID = id
	return analysis, nil
}

// EndExperiment completes an experiment. With adopt set, every variant arm's
// price becomes the product's live price and is written to price history.
func (s *Service) EndExperiment(ctx context.Context, id string, adopt bool) (*models.Experiment, error) {
	e, err := s.store.GetExperiment(id)
	if err != nil {
		return nil, err
	}
	if e.Status == models.ExperimentCompleted {
		return nil, fmt.Errorf("experiment %s: %w", id, ErrExperimentCompleted)
	}
	now := s.now()

	if adopt {
		for _, arm := range e.Arms {
			if arm.Group != models.GroupVariant {
				continue
			}
			p, err := s.store.GetProduct(arm.ProductID)
			if err != nil {
				return nil, err
			}
			if math.Abs(p.CurrentPrice-arm.TestPrice) < 0.005 {
				// Already adopted by an earlier attempt that failed part way.
				continue
			}
			if err := s.store.ApplyPriceChange(&models.PriceChange{
				ProductID:   arm.ProductID,
				NewPrice:    arm.TestPrice,
				Reason:      "experiment: " + e.Name,
				ChangedBy:   "experiment:" + e.ID,
				EffectiveAt: now,
			}); err != nil {
				return nil, fmt.Errorf("failed to adopt variant price for %s: %w", arm.ProductID, err)
			}
			metrics.PriceChanges.WithLabelValues("experiment", p.Category).Inc()
		}
	}

	if err := s.store.UpdateExperimentStatus(id, models.ExperimentCompleted, &now); err != nil {
		return nil, err
	}
	logger.Info("Ended experiment %s (adopt=%t)", id, adopt)
	return s.store.GetExperiment(id)
}

// Allocate assigns a user to an arm of the running experiment covering the
// product. Without one the user sees the live price in group "none".
func (s *Service) Allocate(ctx context.Context, productID, userID string) (Allocation, error) {
	p, err := s.store.GetProduct(productID)
	if err != nil {
		return Allocation{}, err
	}
	alloc := Allocation{ProductID: productID, UserID: userID, Group: models.GroupNone, Price: p.CurrentPrice}

	e, err := s.store.ActiveExperimentForProduct(productID, s.now())
	if err != nil || e == nil {
		return alloc, err
	}
	group := experiment.Allocate(productID, userID)
	for _, arm := range e.Arms {
		if arm.ProductID == productID && arm.Group == group {
			alloc.ExperimentID = e.ID
			alloc.Group = group
			alloc.Price = arm.TestPrice
			break
		}
	}
	return alloc, nil
}

// activateDueExperiments starts draft experiments whose start time has come.
func (s *Service) activateDueExperiments() {
	drafts, err := s.store.ListExperiments(models.ExperimentDraft)
	if err != nil {
		logger.Warn("Failed to list draft experiments: %v", err)
		return
	}
	now := s.now()
	for _, e := range drafts {
		if e.StartAt.After(now) {
			continue
		}
		if err := s.store.UpdateExperimentStatus(e.ID, models.ExperimentRunning, nil); err != nil {
			logger.Warn("Failed to start experiment %s: %v", e.ID, err)
			continue
		}
		logger.Info("Started experiment %s (%s)", e.ID, e.Name)
	}
}
