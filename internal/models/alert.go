package models

import "time"

// Severity of an operational alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertType classifies an operational alert.
type AlertType string

const (
	AlertPriceAnomaly       AlertType = "price_anomaly"
	AlertMarginViolation    AlertType = "margin_violation"
	AlertCompetitorMismatch AlertType = "competitor_mismatch"
	AlertSystemError        AlertType = "system_error"
	AlertRevenueDrop        AlertType = "revenue_drop"
	AlertExperimentFailure  AlertType = "experiment_failure"
)

// Alert is raised by guardrail checks and the repricing cycle.
type Alert struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Type      AlertType `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ProductID string    `json:"product_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
