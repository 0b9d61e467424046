package handler

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvester/export"
	"github.com/use-agent/harvester/models"
	"github.com/use-agent/harvester/orchestrator"
	"github.com/use-agent/harvester/state"
)

// PostHarvest returns a handler for POST /api/v1/harvest.
//
// The run starts in the background and supersedes any run in progress.
// The response only acknowledges the start; progress is read from
// /harvest/state or /harvest/events.
func PostHarvest(o *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.HarvestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		id, err := o.Start(c.Request.Context(), req.URL, orchestrator.Options{
			BatchSize:   req.BatchSize,
			SendMessage: req.SendMessage,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		slog.Info("harvest accepted", "run_id", id, "url", req.URL)
		c.JSON(http.StatusAccepted, models.HarvestResponse{ID: id, Status: models.StatusRunning})
	}
}

// GetState returns a handler for GET /api/v1/harvest/state.
func GetState(store *state.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := store.Snapshot(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.StateResponse{State: st, Summary: st.Summary()})
	}
}

// StreamEvents returns a handler for GET /api/v1/harvest/events.
//
// It sends the current state first, then one "state" event per publish.
// The stream ends after a terminal state or when the client goes away.
func StreamEvents(store *state.Store, keepAlive time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, cancel := store.Subscribe()
		defer cancel()

		current, err := store.Snapshot(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		first := true
		c.Stream(func(w io.Writer) bool {
			if first {
				first = false
				c.SSEvent("state", models.StateResponse{State: current, Summary: current.Summary()})
				return current.IsRunning
			}
			select {
			case <-c.Request.Context().Done():
				return false
			case <-ticker.C:
				c.SSEvent("ping", time.Now().Unix())
				return true
			case st, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent("state", models.StateResponse{State: st, Summary: st.Summary()})
				return st.IsRunning
			}
		})
	}
}

// Export returns a handler for GET /api/v1/harvest/export?format=csv|json|txt.
func Export(store *state.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		format, err := export.ParseFormat(c.Query("format"))
		if err != nil {
			respondError(c, err)
			return
		}
		st, err := store.Snapshot(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if st.ID == "" {
			respondError(c, models.NewHarvestError(models.ErrCodeNotFound, "no run to export", nil))
			return
		}

		c.Header("Content-Disposition", `attachment; filename="`+export.Filename(format, time.Now())+`"`)
		c.Header("Content-Type", format.ContentType())
		c.Status(http.StatusOK)
		if err := export.Write(c.Writer, format, st.Records); err != nil {
			slog.Error("export failed", "run_id", st.ID, "format", format, "error", err)
		}
	}
}
