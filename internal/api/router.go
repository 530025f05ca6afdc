package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/openpulse/pulse-backend-go/internal/api/handlers"
	"github.com/openpulse/pulse-backend-go/internal/api/middleware"
	"github.com/openpulse/pulse-backend-go/internal/config"
	"github.com/openpulse/pulse-backend-go/internal/core/funnels"
	"github.com/openpulse/pulse-backend-go/internal/core/metrics"
	"github.com/openpulse/pulse-backend-go/internal/core/tracking"
	"github.com/openpulse/pulse-backend-go/internal/database"
	"github.com/openpulse/pulse-backend-go/internal/websocket"
)

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg *config.Config, repos *database.Repositories, logger *logrus.Logger, wsHub *websocket.Hub, trackingService *tracking.Service, funnelAnalyzer *funnels.Analyzer, collector *metrics.Collector) *gin.Engine {
	// Set gin mode based on config
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware())
	if cfg.Metrics.Enabled {
		router.Use(middleware.MetricsMiddleware(collector))
	}

	// Initialize handlers
	h := handlers.NewHandlers(cfg, repos, logger, wsHub, trackingService, funnelAnalyzer)

	// Public routes
	router.GET("/health", h.Health)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// Realtime dashboard feed per site
	router.GET("/ws/:site_id", h.WebSocketHandler(wsHub))

	// API v1 routes
	api := router.Group("/api/v1")
	{
		// Tracking endpoints (public, called by the tracking script)
		track := api.Group("/track")
		{
			track.POST("/pageview", h.TrackPageView)
			track.POST("/event", h.TrackEvent)
			track.POST("/heartbeat", h.Heartbeat)
			track.POST("/end", h.EndSession)
		}

		// Reporting and admin endpoints (auth required when enabled)
		protected := api.Group("/")
		if cfg.Auth.Enabled {
			protected.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
		}
		{
			protected.POST("/auth/validate", h.ValidateToken)

			sites := protected.Group("/sites")
			{
				sites.POST("/", h.CreateSite)
				sites.GET("/:site_id", h.GetSite)
				sites.GET("/:site_id/realtime", h.ActiveVisitors)
			}

			goals := protected.Group("/goals")
			{
				goals.POST("/", h.CreateGoal)
				goals.GET("/", h.ListGoals)
				goals.GET("/:id", h.GetGoal)
				goals.PUT("/:id", h.UpdateGoal)
				goals.GET("/:id/stats", h.GoalStats)
				goals.GET("/:id/conversions", h.ListConversions)
				goals.GET("/:id/funnel", h.AnalyzeFunnel)
				goals.GET("/:id/funnel/compare", h.CompareFunnel)
				goals.GET("/:id/funnel/bottlenecks", h.FunnelBottlenecks)
			}

			ws := protected.Group("/websocket")
			{
				ws.GET("/stats", h.GetWebSocketStats(wsHub))
			}
		}
	}

	return router
}
