package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ouredu/request-tracker/internal/infrastructure/cache"
	"github.com/ouredu/request-tracker/internal/infrastructure/persistence/postgres/connection"
)

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`
	Timestamp time.Time `json:"timestamp" example:"2025-04-17T02:00:00Z"`
}

// SetupHealthRoutes registers health check endpoints. redisClient may be nil
// when the deployment runs without a queue or session cache.
func SetupHealthRoutes(router *gin.Engine, db *connection.Database, redisClient *cache.RedisClient) {
	// @Summary Health check endpoint
	// @Description Get the current health status of the API
	// @Tags health
	// @Produce json
	// @Success 200 {object} HealthResponse
	// @Router /health [get]
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
		})
	})

	// @Summary Readiness check endpoint
	// @Description Verify database and redis connectivity
	// @Tags health
	// @Produce json
	// @Success 200 {object} HealthResponse
	// @Failure 503 {object} map[string]string
	// @Router /health/ready [get]
	router.GET("/health/ready", func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "redis unreachable"})
				return
			}
		}

		c.JSON(http.StatusOK, HealthResponse{
			Status:    "ready",
			Timestamp: time.Now().UTC(),
		})
	})
}
