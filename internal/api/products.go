package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/pricepilot/internal/models"
)

func (h *Handler) upsertProduct(c *gin.Context) {
	var p models.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = c.Param("id")
	if err := p.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Service.UpsertProduct(c.Request.Context(), &p); err != nil {
		failErr(c, err)
		return
	}
	ok(c, p)
}

func (h *Handler) productElasticity(c *gin.Context) {
	days := 0
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	est, err := h.Service.ProductElasticity(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, est)
}

func (h *Handler) competition(c *gin.Context) {
	pos, err := h.Service.CompetitivePosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, pos)
}

func (h *Handler) recordSales(c *gin.Context) {
	var req struct {
		Observations []models.SalesObservation `json:"observations"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	for _, o := range req.Observations {
		if o.Date.IsZero() || o.Price <= 0 || o.Quantity < 0 {
			fail(c, http.StatusBadRequest, "observations need a date, a positive price and a non-negative quantity")
			return
		}
	}
	if err := h.Service.RecordSales(c.Request.Context(), c.Param("id"), req.Observations); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"recorded": len(req.Observations)})
}

func (h *Handler) recordCompetitorPrices(c *gin.Context) {
	var req struct {
		Prices []models.CompetitorPrice `json:"prices"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	for _, p := range req.Prices {
		if p.Competitor == "" || p.Price <= 0 || p.ShippingCost < 0 {
			fail(c, http.StatusBadRequest, "prices need a competitor and a positive price")
			return
		}
	}
	if err := h.Service.RecordCompetitorPrices(c.Request.Context(), c.Param("id"), req.Prices); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"recorded": len(req.Prices)})
}

func (h *Handler) runCycle(c *gin.Context) {
	report, err := h.Service.RunCycle(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, report)
}

func (h *Handler) lastCycle(c *gin.Context) {
	r := h.Service.LastReport()
	if r == nil {
		fail(c, http.StatusNotFound, "no cycle has completed yet")
		return
	}
	ok(c, r)
}
