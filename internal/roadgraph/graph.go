package roadgraph

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/sankofa/delivery-geo/pkg/geo"
)

// NodeID identifies a road-network node (an intersection).
type NodeID int64

// Node carries a node's unprojected WGS84 position.
type Node struct {
	ID    NodeID
	Point orb.Point // lon/lat
}

// Edge is a directed road segment between two nodes. Parallel edges between
// the same ordered pair are allowed (dual carriageways, service roads).
type Edge struct {
	From     NodeID
	To       NodeID
	Length   float64 // metres; <= 0 means unusable
	SpeedTag string  // raw maxspeed value, parsed lazily
}

// Graph is a directed multigraph assembled from one or more region files.
type Graph struct {
	Nodes map[NodeID]Node
	Out   map[NodeID][]Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[NodeID]Node),
		Out:   make(map[NodeID][]Edge),
	}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(n Node) {
	g.Nodes[n.ID] = n
}

// AddEdge appends a directed edge. Endpoints need not exist yet; composition
// may add them from another region file.
func (g *Graph) AddEdge(e Edge) {
	g.Out[e.From] = append(g.Out[e.From], e)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// Merge unions another graph into this one. Nodes present in both keep the
// incoming copy; edges are concatenated.
func (g *Graph) Merge(other *Graph) {
	for id, n := range other.Nodes {
		g.Nodes[id] = n
	}
	for from, edges := range other.Out {
		g.Out[from] = append(g.Out[from], edges...)
	}
}

// NearestNode resolves the closest node to a point over unprojected
// coordinates. Returns false only for an empty graph.
func (g *Graph) NearestNode(p orb.Point) (NodeID, bool) {
	var best NodeID
	bestDist := math.Inf(1)
	found := false
	for id, n := range g.Nodes {
		d := geo.SquaredEuclidean(p, n.Point)
		if d < bestDist || (d == bestDist && (!found || id < best)) {
			bestDist = d
			best = id
			found = true
		}
	}
	return best, found
}

// BestEdge returns the minimum-usable-length edge between an ordered node
// pair, matching the edge the simplified view was derived from.
func (g *Graph) BestEdge(from, to NodeID) (Edge, bool) {
	var best Edge
	bestLen := math.Inf(1)
	found := false
	for _, e := range g.Out[from] {
		if e.To != to {
			continue
		}
		if !found {
			best = e
			found = true
		}
		if e.Length > 0 && e.Length < bestLen {
			bestLen = e.Length
			best = e
		}
	}
	return best, found
}

// Projected holds the planar web-mercator view of a graph, used for metric
// computations. Nodes with coordinates outside the projectable domain are
// absent.
type Projected struct {
	Points map[NodeID]orb.Point
}

// Project derives the planar view of a graph.
func Project(g *Graph) *Projected {
	p := &Projected{Points: make(map[NodeID]orb.Point, len(g.Nodes))}
	for id, n := range g.Nodes {
		lon, lat := n.Point[0], n.Point[1]
		if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
			continue
		}
		if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			continue
		}
		p.Points[id] = geo.ToMercator(n.Point)
	}
	return p
}

// Has reports whether a node survived projection.
func (p *Projected) Has(id NodeID) bool {
	_, ok := p.Points[id]
	return ok
}
