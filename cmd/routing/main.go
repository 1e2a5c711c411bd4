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
	"github.com/sankofa/delivery-geo/internal/regionindex"
	"github.com/sankofa/delivery-geo/internal/roadgraph"
	"github.com/sankofa/delivery-geo/internal/routing"
	"github.com/sankofa/delivery-geo/pkg/common"
	"github.com/sankofa/delivery-geo/pkg/config"
	"github.com/sankofa/delivery-geo/pkg/logger"
	"github.com/sankofa/delivery-geo/pkg/middleware"
	"go.uber.org/zap"
)

const (
	serviceName = "routing-service"
	version     = "1.0.0"
)

func main() {
	// Set default port for routing service if not set
	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8083")
	}
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting routing service",
		zap.String("service", serviceName),
		zap.String("version", version),
	)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	index, err := regionindex.Build(rootCtx, cfg.Routing.DataDir, cfg.Routing.RegionIndexPath, false)
	if err != nil {
		logger.Fatal("Failed to build region index", zap.Error(err))
	}
	logger.Info("Region index ready", zap.Int("regions", index.Len()))

	graphs := roadgraph.NewCache(cfg.Routing.CacheDir, cfg.Routing.GraphCacheCapacity)
	service := routing.NewService(index, graphs, cfg.Routing)
	handler := routing.NewHandler(service)

	// Warm the graph cache for the configured city centers in the background.
	service.Preload(rootCtx, cfg.Routing.ParsePreloadPoints())

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

	healthChecks := map[string]func() error{
		"region_index": func() error {
			if index.Len() == 0 {
				return fmt.Errorf("no regions indexed under %s", cfg.Routing.DataDir)
			}
			return nil
		},
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "version": version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
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
