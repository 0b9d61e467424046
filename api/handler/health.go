package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvester/models"
	"github.com/use-agent/harvester/state"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// PageCounter reports how many browser pages are open.
type PageCounter interface {
	ActivePages() int
}

// Health returns a handler for GET /api/v1/health.
//
// Reports the open page count and whether a run is in progress. Status is
// degraded when the state store cannot be read.
func Health(pages PageCounter, store *state.Store, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		st, err := store.Snapshot(c.Request.Context())
		if err != nil {
			status = "degraded"
		}

		active := 0
		if pages != nil {
			active = pages.ActivePages()
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      status,
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			ActivePages: active,
			Running:     st.IsRunning,
			Version:     Version,
		})
	}
}
