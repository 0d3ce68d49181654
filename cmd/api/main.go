package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/ouredu/request-tracker/internal/api/handlers"
	"github.com/ouredu/request-tracker/internal/api/middleware"
	"github.com/ouredu/request-tracker/internal/api/routes"
	"github.com/ouredu/request-tracker/internal/domain/session"
	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/internal/infrastructure/cache"
	"github.com/ouredu/request-tracker/internal/infrastructure/persistence/postgres/connection"
	"github.com/ouredu/request-tracker/internal/infrastructure/persistence/postgres/migrations"
	"github.com/ouredu/request-tracker/internal/infrastructure/queue"
	"github.com/ouredu/request-tracker/internal/infrastructure/scheduler"
	"github.com/ouredu/request-tracker/pkg/config"
	"github.com/ouredu/request-tracker/pkg/logger"
)

// @title           Request Tracker API
// @version         1.0
// @description     Daily request-access tracking with per-endpoint visit reports.

// @host      localhost:8000
// @BasePath

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// RequestLoggerMiddleware logs all incoming HTTP requests
func RequestLoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("Request completed",
			zap.String("path", path),
			zap.String("method", method),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("") // Empty string will make it search in default locations
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	log := logger.NewLoggerWithLevel(cfg.Logging.Level)
	defer log.Sync()

	log.Info("Configuration loaded successfully")
	log.Info("Server mode: " + cfg.Server.Mode)
	log.Info("Tracking configuration",
		zap.Bool("enabled", cfg.Tracking.Enabled),
		zap.Bool("async", cfg.Tracking.Async),
		zap.String("detail_mode", cfg.Tracking.Detail.Mode),
		zap.Bool("detail_dedup", cfg.Tracking.Detail.Dedup))

	// Set up Gin
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	gin.DefaultWriter = os.Stdout

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggerMiddleware(log))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: len(cfg.CORS.AllowedOrigins) == 0,
		AllowOrigins:    cfg.CORS.AllowedOrigins,
		AllowMethods:    cfg.CORS.AllowedMethods,
		AllowHeaders: append(cfg.CORS.AllowedHeaders,
			"Accept-Encoding",
			"Content-Type",
			"Authorization",
			"x-access-token",
			"x-api-key",
			"X-Forwarded-For",
			"X-Real-IP",
		),
		ExposeHeaders:    []string{"Content-Length", "Content-Encoding", "Content-Type"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	metricsMiddleware := middleware.NewMetricsMiddleware()
	router.Use(metricsMiddleware.CollectMetrics())

	// Add Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Connect to database
	db, err := connection.NewDatabase(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if err := migrations.AutoMigrate(db, cfg.Tracking, log.Logger); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize Redis; the tracker degrades to inline tracking without it
	var redisClient *cache.RedisClient
	redisConfig := cache.NewConfigFromEnv(cfg)
	redisClient, err = cache.NewRedisClient(redisConfig)
	if err != nil {
		if cfg.Tracking.Async {
			log.Fatal("Failed to connect to Redis with async tracking enabled", zap.Error(err))
		}
		log.Warn("Redis unavailable, session cache disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// Initialize repositories and services
	trackingRepo := tracking.NewRepository(db)
	registry := tracking.NewRegistry()
	trackingService, err := tracking.NewService(trackingRepo, cfg.Tracking, registry)
	if err != nil {
		log.Fatal("Invalid tracking configuration", zap.Error(err))
	}
	reportingService := tracking.NewReportingService(trackingRepo)

	sessionRepo := session.NewRepository(db)
	sessionResolver := session.NewResolver(sessionRepo, redisClient)

	// Queue broker and worker for async mode
	var broker *queue.TaskBroker
	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	var worker *queue.Worker
	if cfg.Tracking.Async && redisClient != nil {
		broker = queue.NewTaskBroker(redisClient.Client(), cfg.Tracking.Queue.Name, cfg.Tracking.Queue.ResultsTTL)

		workerLogger := logrus.New()
		workerLogger.SetFormatter(&logrus.JSONFormatter{})
		if cfg.Server.Mode == "production" {
			workerLogger.SetLevel(logrus.InfoLevel)
		} else {
			workerLogger.SetLevel(logrus.DebugLevel)
		}

		worker = queue.NewWorker(broker, trackingService, cfg.Tracking.Queue, workerLogger, middleware.ObserveOutcome)
		go worker.Start(backgroundCtx)
	}

	// Tracking middleware observes every request
	trackingMiddleware := middleware.NewTrackingMiddleware(trackingService, broker, sessionResolver, cfg.Tracking)
	router.Use(trackingMiddleware.Handle())

	// Retention sweep at startup and every midnight
	retentionScheduler := scheduler.NewScheduler(trackingService, log)
	retentionScheduler.Start(backgroundCtx)
	log.Info("Retention scheduler started successfully")

	// Routes
	routes.SetupHealthRoutes(router, db, redisClient)

	trackingHandler := handlers.NewTrackingHandler(trackingService, reportingService)
	cacheMiddleware := middleware.NewCacheMiddleware(redisClient, "tracker:reports", time.Minute)
	trackingRoutes := routes.NewTrackingRoutes(trackingHandler, cfg.Auth.JWTSecret, cacheMiddleware)
	trackingRoutes.RegisterRoutes(router)

	for _, route := range router.Routes() {
		log.Info("Route registered",
			zap.String("method", route.Method),
			zap.String("path", route.Path),
		)
	}

	// Start server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info(fmt.Sprintf("Server starting on port %d", cfg.Server.Port))
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info("Shutting down server...")
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Let the worker drain its in-flight task before exit
	stopBackground()
	if worker != nil {
		select {
		case <-worker.Done():
		case <-time.After(5 * time.Second):
			log.Warn("Tracking worker did not stop in time")
		}
	}

	log.Info("Server exited properly")
}
