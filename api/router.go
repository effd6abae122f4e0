package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/prodrank/api/handler"
	"github.com/use-agent/prodrank/api/middleware"
	"github.com/use-agent/prodrank/cache"
	"github.com/use-agent/prodrank/config"
	"github.com/use-agent/prodrank/models"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
// ctx bounds the background work of the middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health sits outside auth.
func NewRouter(ctx context.Context, cfg *config.Config, xs *handler.Extractors, cc *cache.Cache[*models.ExtractResponse], startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(xs, cc, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.POST("/extract", handler.Extract(xs, cc))
	protected.POST("/compare", handler.Compare())

	return r
}
