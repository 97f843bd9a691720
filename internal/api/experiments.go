package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/pricepilot/internal/models"
	"github.com/rewired-gh/pricepilot/internal/repricer"
)

func (h *Handler) createExperiment(c *gin.Context) {
	var req repricer.NewExperiment
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || len(req.ProductIDs) == 0 {
		fail(c, http.StatusBadRequest, "name and product_ids are required")
		return
	}
	if req.PriceChangePct <= -1 {
		fail(c, http.StatusBadRequest, "price change must be greater than -100%")
		return
	}
	e, err := h.Service.CreateExperiment(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, e)
}

func (h *Handler) listExperiments(c *gin.Context) {
	items, err := h.Service.ListExperiments(c.Request.Context(), models.ExperimentStatus(c.Query("status")))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, items)
}

func (h *Handler) getExperiment(c *gin.Context) {
	e, err := h.Service.GetExperiment(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, e)
}

func (h *Handler) recordCounts(c *gin.Context) {
	var req struct {
		Group models.Group `json:"group"`
		models.GroupCounts
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Group != models.GroupControl && req.Group != models.GroupVariant {
		fail(c, http.StatusBadRequest, "group must be control or variant")
		return
	}
	if req.Impressions < 0 || req.Conversions < 0 || req.Conversions > req.Impressions {
		fail(c, http.StatusBadRequest, "conversions must be between 0 and impressions")
		return
	}
	if err := h.Service.RecordExperimentCounts(c.Request.Context(), c.Param("id"), req.Group, req.GroupCounts); err != nil {
		failErr(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) experimentResults(c *gin.Context) {
	a, err := h.Service.ExperimentResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, a)
}

func (h *Handler) endExperiment(c *gin.Context) {
	var req struct {
		Adopt bool `json:"adopt"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	e, err := h.Service.EndExperiment(c.Request.Context(), c.Param("id"), req.Adopt)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, e)
}

func (h *Handler) allocate(c *gin.Context) {
	a, err := h.Service.Allocate(c.Request.Context(), c.Param("product_id"), c.Param("user_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, a)
}
