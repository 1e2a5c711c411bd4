package routing

import (
	"context"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/sankofa/delivery-geo/internal/regionindex"
	"github.com/sankofa/delivery-geo/internal/roadgraph"
	"github.com/sankofa/delivery-geo/pkg/async"
	"github.com/sankofa/delivery-geo/pkg/common"
	"github.com/sankofa/delivery-geo/pkg/config"
	"github.com/sankofa/delivery-geo/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// MaxAlternatives bounds how many routes one request may ask for.
const MaxAlternatives = 5

// RouteResponse is the external shape of a route lookup.
type RouteResponse struct {
	FromCache   bool          `json:"from_cache"`
	RouteCoords []orb.Point   `json:"route_coords"`
	ETAMin      *float64      `json:"eta_min"`
	AltRoutes   [][]orb.Point `json:"alt_routes"`
}

// RegionInfo is the external shape of one indexed region.
type RegionInfo struct {
	Name string     `json:"name"`
	BBox [4]float64 `json:"bbox"`
}

// Service fronts the planner with response caching and a bounded worker pool
// so heavy graph compositions cannot starve the HTTP server.
type Service struct {
	planner *Planner
	index   *regionindex.Index
	cache   *ResponseCache
	workers *semaphore.Weighted
	timeout time.Duration
}

// NewService wires the routing service from its parts.
func NewService(index *regionindex.Index, graphs *roadgraph.Cache, cfg config.RoutingConfig) *Service {
	return &Service{
		planner: NewPlanner(index, graphs),
		index:   index,
		cache:   NewResponseCache(cfg.RouteCacheTTL, cfg.RouteCacheMax),
		workers: semaphore.NewWeighted(int64(cfg.Workers)),
		timeout: cfg.ComputeTimeout,
	}
}

// Route answers a route request, serving from the response cache when a
// fresh entry exists. Identical repeated requests are expected to hit.
func (s *Service) Route(ctx context.Context, pickupLat, pickupLng, dropoffLat, dropoffLng float64, alternatives int) (*RouteResponse, error) {
	for _, v := range []float64{pickupLat, pickupLng, dropoffLat, dropoffLng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, common.NewValidationError("coordinates must be finite numbers")
		}
	}
	if alternatives < 1 {
		alternatives = 1
	}
	if alternatives > MaxAlternatives {
		alternatives = MaxAlternatives
	}

	key := ResponseKey(pickupLat, pickupLng, dropoffLat, dropoffLng, alternatives)
	if route, ok := s.cache.Get(key); ok {
		return s.respond(route, true), nil
	}

	route, err := s.compute(ctx, pickupLat, pickupLng, dropoffLat, dropoffLng, alternatives)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, route)
	return s.respond(route, false), nil
}

// compute runs the planner on the bounded worker pool with a deadline.
// Saturation or timeout surfaces as a retryable unavailable error rather
// than an unbounded queue.
func (s *Service) compute(ctx context.Context, pickupLat, pickupLng, dropoffLat, dropoffLng float64, alternatives int) (*Route, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.workers.Acquire(ctx, 1); err != nil {
		logger.WarnContext(ctx, "Route worker pool saturated", zap.Error(err))
		return nil, common.NewUnavailableError("route computation is busy, retry shortly", err)
	}

	pickup := orb.Point{pickupLng, pickupLat}
	dropoff := orb.Point{dropoffLng, dropoffLat}

	done := make(chan *Route, 1)
	go func() {
		defer s.workers.Release(1)
		done <- s.planner.GetRoute(ctx, pickup, dropoff, alternatives)
	}()

	select {
	case route := <-done:
		return route, nil
	case <-ctx.Done():
		return nil, common.NewUnavailableError("route computation timed out, retry shortly", ctx.Err())
	}
}

func (s *Service) respond(route *Route, fromCache bool) *RouteResponse {
	alts := route.Alternates
	if alts == nil {
		alts = [][]orb.Point{}
	}
	return &RouteResponse{
		FromCache:   fromCache,
		RouteCoords: route.Coords,
		ETAMin:      route.ETAMinutes,
		AltRoutes:   alts,
	}
}

// Regions lists the indexed regions for diagnostics.
func (s *Service) Regions() []RegionInfo {
	regions := s.index.Regions()
	out := make([]RegionInfo, 0, len(regions))
	for _, r := range regions {
		out = append(out, RegionInfo{
			Name: r.Name,
			BBox: [4]float64{r.BBox.Min[0], r.BBox.Min[1], r.BBox.Max[0], r.BBox.Max[1]},
		})
	}
	return out
}

// Preload warms the graph cache for the configured city centers in the
// background so the first real request does not pay for composition.
func (s *Service) Preload(ctx context.Context, points [][2]float64) {
	for _, p := range points {
		lat, lng := p[0], p[1]
		async.Go(ctx, "graph-preload", func(ctx context.Context) {
			point := orb.Point{lng, lat}
			paths := s.index.PathsForPoints([]orb.Point{point})
			if len(paths) == 0 {
				return
			}
			if _, err := s.planner.graphs.Load(ctx, paths); err != nil {
				logger.WarnContext(ctx, "Graph preload failed",
					zap.Float64("lat", lat),
					zap.Float64("lng", lng),
					zap.Error(err),
				)
				return
			}
			logger.InfoContext(ctx, "Preloaded region graphs",
				zap.Float64("lat", lat),
				zap.Float64("lng", lng),
			)
		})
	}
}
