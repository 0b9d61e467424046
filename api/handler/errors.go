package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvester/models"
)

// respondError maps a HarvestError to the HTTP status for its code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error) {
	var he *models.HarvestError
	if !errors.As(err, &he) {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
		})
		return
	}

	status := http.StatusInternalServerError
	switch he.Code {
	case models.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case models.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case models.ErrCodeNotFound, models.ErrCodeDiscoveryEmpty:
		status = http.StatusNotFound
	case models.ErrCodeRateLimited:
		status = http.StatusTooManyRequests
	case models.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	case models.ErrCodeContextFailure, models.ErrCodeInteractionUnavailable:
		status = http.StatusBadGateway
	case models.ErrCodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, models.ErrorResponse{Error: he.ToDetail()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: msg},
	})
}
