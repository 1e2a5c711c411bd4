package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("routing-service")
	require.NoError(t, err)

	assert.Equal(t, "routing-service", cfg.Server.ServiceName)
	assert.Equal(t, 2, cfg.Routing.GraphCacheCapacity)
	assert.Equal(t, time.Hour, cfg.Routing.RouteCacheTTL)
	assert.Equal(t, 2000, cfg.Routing.RouteCacheMax)
	assert.Equal(t, 6*time.Hour, cfg.Tracking.Retention)
	assert.Equal(t, 30*time.Minute, cfg.Tracking.SweepInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GRAPH_CACHE_CAPACITY", "5")
	t.Setenv("ROUTE_CACHE_TTL", "30m")
	t.Setenv("LOCATION_RETENTION", "1h")
	t.Setenv("PORT", "9999")

	cfg, err := Load("routing-service")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Routing.GraphCacheCapacity)
	assert.Equal(t, 30*time.Minute, cfg.Routing.RouteCacheTTL)
	assert.Equal(t, time.Hour, cfg.Tracking.Retention)
	assert.Equal(t, ":9999", cfg.Server.Addr())
}

func TestLoad_RejectsNonPositive(t *testing.T) {
	t.Setenv("GRAPH_CACHE_CAPACITY", "0")
	t.Setenv("ROUTE_WORKERS", "-3")

	cfg, err := Load("routing-service")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Routing.GraphCacheCapacity)
	assert.Equal(t, 4, cfg.Routing.Workers)
}

func TestParsePreloadPoints(t *testing.T) {
	cfg := RoutingConfig{PreloadPoints: "5.6037,-0.1870;6.6666,-1.6163"}
	points := cfg.ParsePreloadPoints()
	require.Len(t, points, 2)
	assert.Equal(t, [2]float64{5.6037, -0.1870}, points[0])
	assert.Equal(t, [2]float64{6.6666, -1.6163}, points[1])
}

func TestParsePreloadPoints_SkipsMalformed(t *testing.T) {
	cfg := RoutingConfig{PreloadPoints: "5.6,-0.18; not,a,point ;;x,y;6.66,-1.61"}
	points := cfg.ParsePreloadPoints()
	require.Len(t, points, 2)
	assert.Equal(t, [2]float64{5.6, -0.18}, points[0])
}

func TestOrigins(t *testing.T) {
	cfg := ServerConfig{CORSOrigins: "http://a.test, http://b.test ,"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
}
