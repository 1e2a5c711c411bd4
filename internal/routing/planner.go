package routing

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/sankofa/delivery-geo/internal/regionindex"
	"github.com/sankofa/delivery-geo/internal/roadgraph"
	"github.com/sankofa/delivery-geo/pkg/logger"
	"go.uber.org/zap"
)

// Route is one computed route: the primary polyline in lon/lat order, an
// optional ETA in minutes and any alternative polylines. A nil ETA means the
// route is a straight-line fallback with no road data behind it.
type Route struct {
	Coords     []orb.Point
	ETAMinutes *float64
	Alternates [][]orb.Point
}

// Planner resolves pickup/dropoff pairs to road-network routes. It never
// fails: any error along the way degrades to the straight pickup-to-dropoff
// segment so the caller always has something to draw.
type Planner struct {
	index  *regionindex.Index
	graphs *roadgraph.Cache
}

// NewPlanner wires a planner over a built region index and graph cache.
func NewPlanner(index *regionindex.Index, graphs *roadgraph.Cache) *Planner {
	return &Planner{index: index, graphs: graphs}
}

// StraightLine returns the two-point fallback route.
func (p *Planner) StraightLine(pickup, dropoff orb.Point) *Route {
	return &Route{
		Coords:     []orb.Point{pickup, dropoff},
		Alternates: [][]orb.Point{},
	}
}

// GetRoute computes up to alternatives loop-free routes between two lon/lat
// points. The cheapest becomes the primary route with an ETA; the rest are
// returned as alternate polylines.
func (p *Planner) GetRoute(ctx context.Context, pickup, dropoff orb.Point, alternatives int) (route *Route) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Route computation panicked, using straight line",
				zap.Any("panic", r),
			)
			route = p.StraightLine(pickup, dropoff)
		}
	}()

	if alternatives < 1 {
		alternatives = 1
	}

	paths := p.index.PathsForPoints([]orb.Point{pickup, dropoff})
	if len(paths) == 0 {
		return p.StraightLine(pickup, dropoff)
	}

	bundle, err := p.graphs.Load(ctx, paths)
	if err != nil {
		logger.WarnContext(ctx, "Could not load region graphs, using straight line",
			zap.Strings("paths", paths),
			zap.Error(err),
		)
		return p.StraightLine(pickup, dropoff)
	}

	origin, ok := bundle.Graph.NearestNode(pickup)
	if !ok {
		return p.StraightLine(pickup, dropoff)
	}
	dest, ok := bundle.Graph.NearestNode(dropoff)
	if !ok {
		return p.StraightLine(pickup, dropoff)
	}
	if !bundle.Projected.Has(origin) || !bundle.Projected.Has(dest) {
		logger.WarnContext(ctx, "Snapped node missing from projected view, using straight line",
			zap.Int64("origin", int64(origin)),
			zap.Int64("destination", int64(dest)),
		)
		return p.StraightLine(pickup, dropoff)
	}

	it := ShortestSimplePaths(bundle.Simplified, origin, dest)
	var found [][]roadgraph.NodeID
	for len(found) < alternatives {
		nodes, _, ok := it.Next()
		if !ok {
			break
		}
		found = append(found, nodes)
	}
	if len(found) == 0 {
		return p.StraightLine(pickup, dropoff)
	}

	primary := p.polyline(bundle.Graph, found[0])
	eta := p.estimateETA(bundle.Graph, found[0])

	alts := make([][]orb.Point, 0, len(found)-1)
	for _, nodes := range found[1:] {
		alts = append(alts, p.polyline(bundle.Graph, nodes))
	}

	return &Route{
		Coords:     primary,
		ETAMinutes: &eta,
		Alternates: alts,
	}
}

// polyline maps a node path back onto unprojected lon/lat coordinates.
func (p *Planner) polyline(g *roadgraph.Graph, nodes []roadgraph.NodeID) []orb.Point {
	coords := make([]orb.Point, 0, len(nodes))
	for _, id := range nodes {
		if n, ok := g.Nodes[id]; ok {
			coords = append(coords, n.Point)
		}
	}
	return coords
}

// estimateETA sums per-segment travel times over the edges the simplified
// view was derived from. Segments without a usable length contribute nothing.
func (p *Planner) estimateETA(g *roadgraph.Graph, nodes []roadgraph.NodeID) float64 {
	total := 0.0
	for i := 0; i < len(nodes)-1; i++ {
		edge, ok := g.BestEdge(nodes[i], nodes[i+1])
		if !ok || edge.Length <= 0 {
			continue
		}
		speed := EdgeSpeedKph(edge.SpeedTag)
		total += edge.Length / 1000.0 / speed * 60.0
	}
	return total
}
