// Package api exposes the optimizer, estimator, evaluator and repricing
// service over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rewired-gh/pricepilot/internal/elasticity"
	"github.com/rewired-gh/pricepilot/internal/experiment"
	"github.com/rewired-gh/pricepilot/internal/metrics"
	"github.com/rewired-gh/pricepilot/internal/pricing"
	"github.com/rewired-gh/pricepilot/internal/repricer"
)

// Handler serves the HTTP API. The stateless endpoints use the core
// components directly; everything touching stored data goes through Service.
type Handler struct {
	Service   *repricer.Service
	Optimizer *pricing.Optimizer
	Estimator *elasticity.Estimator
	Evaluator *experiment.Evaluator
}

// NewRouter builds the gin engine. mode is a gin mode ("debug", "release", "test").
func NewRouter(h *Handler, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	if h.Optimizer == nil {
		h.Optimizer = pricing.New(0)
	}
	if h.Estimator == nil {
		h.Estimator = elasticity.NewEstimator(elasticity.DefaultConfig())
	}
	if h.Evaluator == nil {
		h.Evaluator = experiment.NewEvaluator(experiment.DefaultConfig())
	}

	r := gin.New()
	r.Use(gin.Recovery(), instrument())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", h.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.POST("/optimize", h.optimize)
	v1.POST("/optimize/batch", h.batchOptimize)
	v1.POST("/elasticity", h.estimateElasticity)
	v1.POST("/experiments/evaluate", h.evaluate)

	if h.Service != nil {
		v1.PUT("/products/:id", h.upsertProduct)
		v1.GET("/products/:id/elasticity", h.productElasticity)
		v1.GET("/products/:id/competition", h.competition)
		v1.POST("/products/:id/sales", h.recordSales)
		v1.POST("/products/:id/competitor-prices", h.recordCompetitorPrices)

		v1.POST("/experiments", h.createExperiment)
		v1.GET("/experiments", h.listExperiments)
		v1.GET("/experiments/:id", h.getExperiment)
		v1.POST("/experiments/:id/counts", h.recordCounts)
		v1.GET("/experiments/:id/results", h.experimentResults)
		v1.POST("/experiments/:id/end", h.endExperiment)
		v1.GET("/allocation/:product_id/:user_id", h.allocate)

		v1.POST("/cycles", h.runCycle)
		v1.GET("/cycles/last", h.lastCycle)
	}
	return r
}

func (h *Handler) ready(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	if err := h.Service.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveSince(
			metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())),
			start,
		)
	}
}
