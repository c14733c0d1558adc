package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dossier/crawl"
)

// Status returns a handler for GET /api/v1/status.
//
// Exposes the scheduler state and the per-domain reports from the most
// recent crawl pass.
func Status(runner *crawl.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"state":   runner.State().String(),
			"reports": runner.LastReports(),
		})
	}
}
