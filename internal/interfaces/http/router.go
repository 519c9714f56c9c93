// Package http serves the point cloud over a JSON API.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/embedscope/internal/interfaces/http/handlers"
	"github.com/turtacn/embedscope/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil handlers are not mounted.
type RouterConfig struct {
	Mode string // gin mode: debug | release | test

	HealthHandler     *handlers.HealthHandler
	PointCloudHandler *handlers.PointCloudHandler

	CORS    *middleware.CORSConfig
	Logging middleware.LoggingConfig

	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	HTTPRecorder     middleware.HTTPRecorder
	MetricsPath      string
}

// NewRouter builds the route tree.  Middleware order is recovery, request
// id, CORS, metrics, logging.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery(), middleware.RequestID())
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.HTTPRecorder != nil {
		r.Use(middleware.Metrics(cfg.HTTPRecorder))
	}
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	if cfg.PointCloudHandler != nil {
		cfg.PointCloudHandler.RegisterRoutes(api)
	}
	return r
}
