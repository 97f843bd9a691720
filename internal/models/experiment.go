package models

import (
	"errors"
	"time"
)

// ExperimentStatus is the lifecycle state of a price experiment.
type ExperimentStatus string

const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentPaused    ExperimentStatus = "paused"
	ExperimentCompleted ExperimentStatus = "completed"
)

// Group identifies an experiment arm.
type Group string

const (
	GroupControl Group = "control"
	GroupVariant Group = "variant"
	GroupNone    Group = "none"
)

// Experiment is an A/B price test over one or more products.
type Experiment struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	Status         ExperimentStatus `json:"status"`
	PriceChangePct float64          `json:"price_change_pct"`
	StartAt        time.Time        `json:"start_at"`
	EndAt          *time.Time       `json:"end_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	Arms           []ExperimentArm  `json:"arms,omitempty"`
}

// Validate checks experiment field constraints.
func (e *Experiment) Validate() error {
	if e.ID == "" {
		return errors.New("experiment ID must not be empty")
	}
	if e.Name == "" {
		return errors.New("experiment name must not be empty")
	}
	if e.PriceChangePct <= -1 {
		return errors.New("price change must be greater than -100%")
	}
	if e.EndAt != nil && e.EndAt.Before(e.StartAt) {
		return errors.New("end must not be before start")
	}
	return nil
}

// ExperimentArm is the price a product carries in one arm of an experiment.
type ExperimentArm struct {
	ProductID string  `json:"product_id"`
	Group     Group   `json:"group"`
	TestPrice float64 `json:"test_price"`
}
