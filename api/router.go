package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dossier/api/handler"
	"github.com/use-agent/dossier/api/middleware"
	"github.com/use-agent/dossier/browser"
	"github.com/use-agent/dossier/config"
	"github.com/use-agent/dossier/crawl"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(pool *browser.Pool, runner *crawl.Runner, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(pool, runner, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Scheduler status and last pass reports.
	protected.GET("/status", handler.Status(runner))

	// Manual crawl trigger.
	protected.POST("/crawl", handler.TriggerCrawl(runner))

	return r
}
