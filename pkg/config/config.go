package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Routing  RoutingConfig
	Tracking TrackingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// RoutingConfig holds road-network and route computation configuration
type RoutingConfig struct {
	DataDir            string
	CacheDir           string
	RegionIndexPath    string
	GraphCacheCapacity int
	RouteCacheTTL      time.Duration
	RouteCacheMax      int
	Workers            int
	ComputeTimeout     time.Duration
	PreloadPoints      string // "lat,lng;lat,lng" pairs composed at startup
}

// TrackingConfig holds live-location hub configuration
type TrackingConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration
	SendBuffer    int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 30),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:5000,http://127.0.0.1:5000"),
		},
		Routing: RoutingConfig{
			DataDir:            getEnv("REGION_DATA_DIR", "data"),
			CacheDir:           getEnv("GRAPH_CACHE_DIR", "data/cache"),
			RegionIndexPath:    getEnv("REGION_INDEX_PATH", "data/region_index.json"),
			GraphCacheCapacity: getEnvAsInt("GRAPH_CACHE_CAPACITY", 2),
			RouteCacheTTL:      getEnvAsDuration("ROUTE_CACHE_TTL", time.Hour),
			RouteCacheMax:      getEnvAsInt("ROUTE_CACHE_MAX", 2000),
			Workers:            getEnvAsInt("ROUTE_WORKERS", 4),
			ComputeTimeout:     getEnvAsDuration("ROUTE_COMPUTE_TIMEOUT", 30*time.Second),
			PreloadPoints:      getEnv("PRELOAD_POINTS", "5.6037,-0.1870;6.6666,-1.6163"),
		},
		Tracking: TrackingConfig{
			Retention:     getEnvAsDuration("LOCATION_RETENTION", 6*time.Hour),
			SweepInterval: getEnvAsDuration("LOCATION_SWEEP_INTERVAL", 30*time.Minute),
			SendBuffer:    getEnvAsInt("WS_SEND_BUFFER", 256),
		},
	}

	if cfg.Routing.GraphCacheCapacity <= 0 {
		cfg.Routing.GraphCacheCapacity = 2
	}
	if cfg.Routing.RouteCacheMax <= 0 {
		cfg.Routing.RouteCacheMax = 2000
	}
	if cfg.Routing.Workers <= 0 {
		cfg.Routing.Workers = 4
	}
	if cfg.Tracking.SendBuffer <= 0 {
		cfg.Tracking.SendBuffer = 256
	}

	return cfg, nil
}

// ParsePreloadPoints parses the PRELOAD_POINTS value into (lat, lng) pairs.
// Malformed pairs are dropped rather than failing startup.
func (c RoutingConfig) ParsePreloadPoints() [][2]float64 {
	var points [][2]float64
	for _, pair := range strings.Split(c.PreloadPoints, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			continue
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLat != nil || errLng != nil {
			continue
		}
		points = append(points, [2]float64{lat, lng})
	}
	return points
}

// Addr returns the listen address for the HTTP server
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Origins returns the configured CORS origins as a slice
func (c *ServerConfig) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
