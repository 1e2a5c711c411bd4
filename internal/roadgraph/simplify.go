package roadgraph

// fallbackWeight is assigned when no parallel edge carries a usable length.
const fallbackWeight = 1.0

// SimpleEdge is a weighted edge in the simplified search graph.
type SimpleEdge struct {
	To     NodeID
	Weight float64
}

// Simplified keeps at most one edge per ordered node pair, weighted by the
// minimum usable length among the parallel edges. Path search runs on this
// view only.
type Simplified struct {
	Adj map[NodeID][]SimpleEdge
}

// Simplify derives the search view from a composed multigraph.
func Simplify(g *Graph) *Simplified {
	s := &Simplified{Adj: make(map[NodeID][]SimpleEdge, len(g.Out))}
	for from, edges := range g.Out {
		best := make(map[NodeID]float64)
		for _, e := range edges {
			w := e.Length
			if w <= 0 {
				w = fallbackWeight
			}
			if prev, ok := best[e.To]; !ok || w < prev {
				best[e.To] = w
			}
		}
		adj := make([]SimpleEdge, 0, len(best))
		for to, w := range best {
			adj = append(adj, SimpleEdge{To: to, Weight: w})
		}
		s.Adj[from] = adj
	}
	return s
}

// Weight returns the search weight for an ordered node pair.
func (s *Simplified) Weight(from, to NodeID) (float64, bool) {
	for _, e := range s.Adj[from] {
		if e.To == to {
			return e.Weight, true
		}
	}
	return 0, false
}

// EdgeCount returns the number of simplified edges.
func (s *Simplified) EdgeCount() int {
	total := 0
	for _, adj := range s.Adj {
		total += len(adj)
	}
	return total
}
