package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dossier/browser"
	"github.com/use-agent/dossier/crawl"
	"github.com/use-agent/dossier/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports pool utilisation and degrades status when every browser instance
// is currently borrowed.
func Health(pool *browser.Pool, runner *crawl.Runner, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := pool.Stats()

		status := "healthy"
		if stats.MaxSize > 0 && stats.Borrowed >= stats.MaxSize {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         status,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			SchedulerState: runner.State().String(),
			PoolStats:      stats,
			Version:        "0.1.0",
		})
	}
}
