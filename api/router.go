package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvester/api/handler"
	"github.com/use-agent/harvester/api/middleware"
	"github.com/use-agent/harvester/config"
	"github.com/use-agent/harvester/orchestrator"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint stays outside auth so monitoring probes always work.
func NewRouter(o *orchestrator.Orchestrator, pages handler.PageCounter, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	store := o.Store()
	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(pages, store, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	harvest := protected.Group("/harvest")
	harvest.POST("", handler.PostHarvest(o))
	harvest.GET("/state", handler.GetState(store))
	harvest.GET("/events", handler.StreamEvents(store, 15*time.Second))
	harvest.GET("/export", handler.Export(store))

	return r
}
