package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/prodrank/cache"
	"github.com/use-agent/prodrank/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
func Health(xs *Extractors, cc *cache.Cache[*models.ExtractResponse], startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		vp := xs.Default().Viewport()
		resp := models.HealthResponse{
			Status:   "healthy",
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			Version:  Version,
			Viewport: models.Viewport{Width: vp.Width, Height: vp.Height},
		}
		if cc != nil {
			resp.Cache.Entries = cc.Len()
			resp.Cache.Hits, resp.Cache.Misses = cc.Stats()
		}
		c.JSON(http.StatusOK, resp)
	}
}
