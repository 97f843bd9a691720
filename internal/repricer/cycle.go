package repricer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rewired-gh/pricepilot/internal/guardrail"
	"github.com/rewired-gh/pricepilot/internal/logger"
	"github.com/rewired-gh/pricepilot/internal/metrics"
	"github.com/rewired-gh/pricepilot/internal/models"
	"github.com/rewired-gh/pricepilot/internal/pricing"
)

// RunCycle reprices every active product once: refresh competitor prices,
// build snapshots, optimize, vet each recommendation through the guardrails,
// persist recommendations and alerts, and send the digest.
func (s *Service) RunCycle(ctx context.Context) (models.CycleReport, error) {
	if !s.cycleMu.TryLock() {
		return models.CycleReport{}, ErrCycleRunning
	}
	defer s.cycleMu.Unlock()

	start := s.now()
	report := models.CycleReport{StartedAt: start}
	logger.Info("Starting repricing cycle")

	products, err := s.store.ListActiveProducts()
	if err != nil {
		return report, fmt.Errorf("failed to load products: %w", err)
	}
	logger.Debug("Loaded %d active products", len(products))
	s.activateDueExperiments()

	if s.feed != nil {
		report.FeedErrors = s.refreshCompetitors(ctx, products)
	}

	snapshots := make([]models.FeatureSnapshot, 0, len(products))
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		snap, err := s.Snapshot(ctx, p)
		if err != nil {
			return report, fmt.Errorf("failed to build snapshot for %s: %w", p.ID, err)
		}
		snapshots = append(snapshots, snap)
	}
	if byCategory := pricing.CategoryElasticity(snapshots); len(byCategory) > 0 {
		logger.Debug("Category elasticities: %v", byCategory)
	}

	optStart := time.Now()
	results := s.optimizer.BatchOptimize(snapshots, s.config.Objective, s.config.Constraints)
	metrics.ObserveSince(metrics.OptimizationDuration, optStart)
	report.ProductsEvaluated = len(results)

	var recs []models.Recommendation
	var raised []models.Alert
	var revenueSum, profitSum float64
	reviewed := 0
	for i, res := range results {
		rec, alerts, applied, err := s.review(*products[i], res)
		if err != nil {
			report.Failed++
			logger.Error("Failed to review %s: %v", products[i].ID, err)
			continue
		}
		reviewed++
		recs = append(recs, rec)
		raised = append(raised, alerts...)
		revenueSum += res.ExpectedRevenueChange
		profitSum += res.ExpectedProfitChange

		switch {
		case rec.Approved:
			report.Approved++
		case rec.Rejection == unchangedReason:
			report.Unchanged++
		default:
			report.Rejected++
		}
		if len(rec.Anomalies) > 0 {
			report.Anomalies++
		}
		if applied {
			report.Applied++
		}
	}
	if reviewed > 0 {
		report.AvgRevenueChange = pricing.Round(revenueSum/float64(reviewed), 2)
		report.AvgProfitChange = pricing.Round(profitSum/float64(reviewed), 2)
	}
	metrics.ExpectedRevenueChange.Set(report.AvgRevenueChange)

	report.AlertsRaised = s.raise(raised)
	report.Top = topByRevenue(recs, s.config.TopK)
	report.Duration = s.now().Sub(start)

	s.mu.Lock()
	r := report
	s.lastReport = &r
	s.mu.Unlock()

	if s.notifier != nil && report.ProductsEvaluated > 0 {
		if err := s.notifier.SendReport(report); err != nil {
			logger.Error("Failed to send Telegram digest: %v", err)
		}
	}

	logger.Info("Repricing cycle completed in %v: %d evaluated, %d approved, %d rejected, %d applied, %d failed",
		report.Duration, report.ProductsEvaluated, report.Approved, report.Rejected, report.Applied, report.Failed)
	return report, nil
}

// ScheduledCycle runs a cycle and handles its outcome the way a background
// job must: failures are counted, the first failure of a streak and the
// recovery after it are notified.
func (s *Service) ScheduledCycle(ctx context.Context) {
	_, err := s.RunCycle(ctx)
	if errors.Is(err, ErrCycleRunning) {
		logger.Info("Skipping scheduled repricing cycle: previous cycle still running")
		return
	}

	s.mu.Lock()
	failures := s.consecutiveFailures
	if err != nil {
		s.consecutiveFailures++
	} else {
		s.consecutiveFailures = 0
	}
	s.mu.Unlock()

	if err != nil {
		metrics.Cycles.WithLabelValues("error").Inc()
		logger.Error("Repricing cycle failed: %v", err)
		if failures == 0 && s.notifier != nil {
			if sendErr := s.notifier.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
		return
	}

	metrics.Cycles.WithLabelValues("ok").Inc()
	if failures > 0 && s.notifier != nil {
		if sendErr := s.notifier.SendRecovery(failures); sendErr != nil {
			logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
		}
	}
}

const unchangedReason = "No price change recommended"

// review vets one optimizer result and persists the recommendation. The
// price is applied only when auto-apply is on, the guardrails approve and no
// anomaly was flagged.
func (s *Service) review(p models.Product, res models.OptimizationResult) (models.Recommendation, []models.Alert, bool, error) {
	now := s.now()
	rec := models.Recommendation{Result: res, CreatedAt: now}
	var alerts []models.Alert

	if math.Abs(res.OptimalPrice-res.CurrentPrice) < 0.005 {
		rec.Rejection = unchangedReason
		metrics.Recommendations.WithLabelValues("unchanged").Inc()
		return rec, nil, false, s.store.AddRecommendation(&rec)
	}

	last, err := s.store.LastPriceChange(p.ID)
	if err != nil {
		return rec, nil, false, err
	}
	decision := s.guard.Check(p, res.OptimalPrice, last, now)
	rec.Approved = decision.Approved
	rec.Rejection = decision.Reason
	alerts = append(alerts, decision.Alerts...)

	history, err := s.store.PriceHistory(p.ID, s.config.HistoryDepth)
	if err != nil {
		return rec, nil, false, err
	}
	prices := make([]float64, len(history))
	for i, h := range history {
		prices[i] = h.NewPrice
	}
	rec.Anomalies = guardrail.DetectAnomalies(prices, res.OptimalPrice)
	if len(rec.Anomalies) > 0 {
		alerts = append(alerts, models.Alert{
			Severity:  models.SeverityWarning,
			Type:      models.AlertPriceAnomaly,
			Title:     fmt.Sprintf("Price anomaly for %s", p.Name),
			Message:   strings.Join(rec.Anomalies, "; "),
			ProductID: p.ID,
			CreatedAt: now,
		})
	}

	if err := s.store.AddRecommendation(&rec); err != nil {
		return rec, nil, false, err
	}

	outcome := "rejected"
	if rec.Approved {
		outcome = "approved"
	}
	metrics.Recommendations.WithLabelValues(outcome).Inc()

	if !rec.Approved || !s.config.AutoApply || len(rec.Anomalies) > 0 {
		return rec, alerts, false, nil
	}
	if err := s.store.ApplyPriceChange(&models.PriceChange{
		ProductID:   p.ID,
		NewPrice:    res.OptimalPrice,
		Reason:      "optimizer: " + string(res.Objective),
		ChangedBy:   "pricepilot",
		EffectiveAt: now,
	}); err != nil {
		return rec, alerts, false, fmt.Errorf("failed to apply price for %s: %w", p.ID, err)
	}
	metrics.PriceChanges.WithLabelValues("optimizer", p.Category).Inc()
	logger.Info("Applied price %.2f -> %.2f for %s", res.CurrentPrice, res.OptimalPrice, p.ID)
	return rec, alerts, true, nil
}

// refreshCompetitors pulls fresh competitor prices and returns the number of
// products whose fetch failed.
func (s *Service) refreshCompetitors(ctx context.Context, products []*models.Product) int {
	failed := 0
	for _, p := range products {
		prices, err := s.feed.FetchPrices(ctx, p.ID)
		if err != nil {
			failed++
			logger.Warn("Competitor feed failed for %s: %v", p.ID, err)
			continue
		}
		if err := s.store.AddCompetitorPrices(prices); err != nil {
			failed++
			logger.Warn("Failed to store competitor prices for %s: %v", p.ID, err)
		}
	}
	if failed > 0 {
		logger.Warn("Competitor feed refresh failed for %d of %d products", failed, len(products))
	}
	return failed
}

// raise stores every alert and notifies the ones not sent for the same
// product and type within the cooldown. It returns the number stored.
func (s *Service) raise(alerts []models.Alert) int {
	now := s.now()
	stored := 0
	var fresh []models.Alert

	s.mu.Lock()
	for i := range alerts {
		a := &alerts[i]
		if err := s.store.AddAlert(a); err != nil {
			logger.Warn("Failed to store alert: %v", err)
			continue
		}
		stored++
		metrics.Alerts.WithLabelValues(string(a.Severity), string(a.Type)).Inc()

		key := a.ProductID + "|" + string(a.Type)
		if sentAt, ok := s.notified[key]; ok && now.Sub(sentAt) < s.config.AlertCooldown {
			continue
		}
		fresh = append(fresh, *a)
	}
	s.mu.Unlock()

	if len(fresh) == 0 || s.notifier == nil {
		return stored
	}
	if err := s.notifier.SendAlerts(fresh); err != nil {
		logger.Error("Failed to send alerts to Telegram: %v", err)
		return stored
	}

	s.mu.Lock()
	for _, a := range fresh {
		s.notified[a.ProductID+"|"+string(a.Type)] = now
	}
	s.mu.Unlock()
	return stored
}

func topByRevenue(recs []models.Recommendation, k int) []models.Recommendation {
	var candidates []models.Recommendation
	for _, r := range recs {
		if r.Rejection != unchangedReason {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Result.ExpectedRevenueChange > candidates[j].Result.ExpectedRevenueChange
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}
