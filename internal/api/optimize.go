package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/pricepilot/internal/elasticity"
	"github.com/rewired-gh/pricepilot/internal/models"
)

const maxBatchSize = 1000

type optimizeRequest struct {
	Snapshot    models.FeatureSnapshot `json:"snapshot"`
	Objective   string                 `json:"objective"`
	Constraints map[string]float64     `json:"constraints"`
}

type batchOptimizeRequest struct {
	Snapshots   []models.FeatureSnapshot `json:"snapshots"`
	Objective   string                   `json:"objective"`
	Constraints map[string]float64       `json:"constraints"`
}

type elasticityRequest struct {
	ProductID    string                    `json:"product_id"`
	Observations []models.SalesObservation `json:"observations"`
	Bounds       *struct {
		Cost     float64 `json:"cost"`
		MinPrice float64 `json:"min_price"`
		MaxPrice float64 `json:"max_price"`
	} `json:"bounds"`
	MinPoints int `json:"min_points"`
}

type evaluateRequest struct {
	Control models.GroupCounts `json:"control"`
	Variant models.GroupCounts `json:"variant"`
}

func (h *Handler) optimize(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	objective, err := models.ParseObjective(req.Objective)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Snapshot.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	ok(c, h.Optimizer.Optimize(req.Snapshot, objective, models.ConstraintsFromMap(req.Constraints)))
}

func (h *Handler) batchOptimize(c *gin.Context) {
	var req batchOptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Snapshots) > maxBatchSize {
		fail(c, http.StatusBadRequest, fmt.Sprintf("batch exceeds %d snapshots", maxBatchSize))
		return
	}
	objective, err := models.ParseObjective(req.Objective)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	for i, s := range req.Snapshots {
		if err := s.Validate(); err != nil {
			fail(c, http.StatusBadRequest, fmt.Sprintf("snapshot %d: %v", i, err))
			return
		}
	}
	ok(c, h.Optimizer.BatchOptimize(req.Snapshots, objective, models.ConstraintsFromMap(req.Constraints)))
}

func (h *Handler) estimateElasticity(c *gin.Context) {
	var req elasticityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	est := h.Estimator
	if req.MinPoints > 0 {
		cfg := est.Config()
		cfg.MinDataPoints = req.MinPoints
		est = elasticity.NewEstimator(cfg)
	}
	var bounds *elasticity.Bounds
	if req.Bounds != nil {
		bounds = &elasticity.Bounds{Cost: req.Bounds.Cost, MinPrice: req.Bounds.MinPrice, MaxPrice: req.Bounds.MaxPrice}
	}

	result, err := est.Estimate(req.ProductID, req.Observations, bounds)
	if errors.Is(err, elasticity.ErrTooFewObservations) {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	for _, g := range []models.GroupCounts{req.Control, req.Variant} {
		if g.Impressions < 0 || g.Conversions < 0 || g.Conversions > g.Impressions {
			fail(c, http.StatusBadRequest, "conversions must be between 0 and impressions")
			return
		}
	}
	ok(c, h.Evaluator.Evaluate(req.Control, req.Variant))
}
