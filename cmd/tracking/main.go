package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sankofa/delivery-geo/internal/tracking"
	"github.com/sankofa/delivery-geo/pkg/common"
	"github.com/sankofa/delivery-geo/pkg/config"
	"github.com/sankofa/delivery-geo/pkg/logger"
	"github.com/sankofa/delivery-geo/pkg/middleware"
	"go.uber.org/zap"
)

const (
	serviceName = "tracking-service"
	version     = "1.0.0"
)

func main() {
	// Set default port for tracking service if not set
	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8086")
	}
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting tracking service",
		zap.String("service", serviceName),
		zap.String("version", version),
	)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := tracking.NewHub(cfg.Tracking)
	hub.Start(rootCtx)
	defer hub.Stop()

	handler := tracking.NewHandler(hub)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(common.NoRouteHandler())
	router.NoMethod(common.NoMethodHandler())
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.Origins()))
	router.Use(middleware.Metrics(serviceName))

	// Health check endpoints
	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/health/live", common.LivenessProbe(serviceName, version))
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, nil))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "version": version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router)

	// No read/write timeouts here: they would cut long-lived websocket
	// connections. Per-frame deadlines are handled by the pumps.
	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
