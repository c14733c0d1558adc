package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dossier/crawl"
)

// TriggerCrawl returns a handler for POST /api/v1/crawl.
//
// Kicks off a crawl pass in the background. If a pass is already running
// the request is rejected with 409 rather than queued.
func TriggerCrawl(runner *crawl.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		if runner.State() == crawl.StateRunning {
			c.JSON(http.StatusConflict, gin.H{
				"state":   runner.State().String(),
				"skipped": true,
			})
			return
		}

		go runner.Tick(context.Background())

		c.JSON(http.StatusAccepted, gin.H{"started": true})
	}
}
