package models

import "time"

// CycleReport summarizes one repricing cycle.
type CycleReport struct {
	StartedAt         time.Time        `json:"started_at"`
	Duration          time.Duration    `json:"duration"`
	ProductsEvaluated int              `json:"products_evaluated"`
	Approved          int              `json:"approved"`
	Rejected          int              `json:"rejected"`
	Unchanged         int              `json:"unchanged"`
	Applied           int              `json:"applied"`
	Anomalies         int              `json:"anomalies"`
	AlertsRaised      int              `json:"alerts_raised"`
	FeedErrors        int              `json:"feed_errors"`
	Failed            int              `json:"failed"` // products whose review could not be stored
	AvgRevenueChange  float64          `json:"avg_revenue_change"`
	AvgProfitChange   float64          `json:"avg_profit_change"`
	Top               []Recommendation `json:"top,omitempty"` // largest projected revenue gains
}
