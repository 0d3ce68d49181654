package routes

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/ouredu/request-tracker/internal/api/handlers"
	"github.com/ouredu/request-tracker/internal/api/middleware"
)

type TrackingRoutes struct {
	handler   *handlers.TrackingHandler
	jwtSecret string
	cache     *middleware.CacheMiddleware
}

func NewTrackingRoutes(handler *handlers.TrackingHandler, jwtSecret string, cacheMiddleware *middleware.CacheMiddleware) *TrackingRoutes {
	return &TrackingRoutes{
		handler:   handler,
		jwtSecret: jwtSecret,
		cache:     cacheMiddleware,
	}
}

// RegisterRoutes registers the tracking and reporting routes
// @Summary Register tracking routes
// @Tags tracking
// @Security BearerAuth
func (t *TrackingRoutes) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/tracking")
	api.Use(middleware.NewAuthMiddleware(t.jwtSecret))

	// Manual instrumentation entry points
	api.POST("/events", t.handler.TrackAccess)
	api.POST("/module-events", t.handler.TrackModuleAccess)

	// Per-user reports
	users := api.Group("/users/:user_id")
	users.GET("/last-access", t.handler.GetLastAccess)
	users.GET("/first-access", t.handler.GetFirstAccess)
	users.GET("/active", t.handler.GetActivityStatus)
	users.GET("/today", t.handler.GetTodayActivity)
	// Range reports can return large payloads; compress and cache them
	cached := t.cache.CacheResponse()
	users.GET("/summary", gzip.Gzip(gzip.DefaultCompression), cached, t.handler.GetActivitySummary)
	users.GET("/modules", gzip.Gzip(gzip.DefaultCompression), cached, t.handler.GetModulesAccessed)
	users.GET("/journey", gzip.Gzip(gzip.DefaultCompression), cached, t.handler.GetUserJourney)

	// Per-module reports
	api.GET("/modules/:module/users", gzip.Gzip(gzip.DefaultCompression), cached, t.handler.GetModuleUsers)

	// Data removal
	api.DELETE("/data", t.handler.RemoveData)
}
