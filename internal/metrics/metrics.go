// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PriceChanges counts applied price changes by reason and category.
	PriceChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricepilot_price_changes_total",
		Help: "Total number of applied price changes",
	}, []string{"reason", "category"})

	// Recommendations counts optimizer recommendations by guardrail outcome.
	Recommendations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricepilot_recommendations_total",
		Help: "Total recommendations by guardrail outcome",
	}, []string{"outcome"})

	// OptimizationDuration tracks batch optimization latency.
	OptimizationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricepilot_optimization_duration_seconds",
		Help:    "Time spent in batch optimization",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	})

	// Alerts counts raised alerts by severity and type.
	Alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricepilot_alerts_total",
		Help: "Total number of alerts triggered",
	}, []string{"severity", "type"})

	// Cycles counts repricing cycles by result.
	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricepilot_cycles_total",
		Help: "Total repricing cycles by result",
	}, []string{"result"})

	// ExpectedRevenueChange is the mean projected revenue change of the last
	// cycle, in percent.
	ExpectedRevenueChange = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricepilot_expected_revenue_change_percent",
		Help: "Mean projected revenue change of the last repricing cycle",
	})

	// HTTPRequests tracks API latency by route and status.
	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricepilot_http_request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveSince records the seconds elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
