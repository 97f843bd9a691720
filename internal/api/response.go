package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/pricepilot/internal/logger"
	"github.com/rewired-gh/pricepilot/internal/repricer"
	"github.com/rewired-gh/pricepilot/internal/storage"
)

type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, apiResponse{Code: 0, Message: "ok", Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, apiResponse{Code: status, Message: message})
}

// failErr maps service errors to HTTP statuses.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, repricer.ErrExperimentCompleted), errors.Is(err, repricer.ErrCycleRunning):
		fail(c, http.StatusConflict, err.Error())
	default:
		logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
		fail(c, http.StatusInternalServerError, err.Error())
	}
}
