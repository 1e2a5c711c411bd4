package routing

import (
	"container/heap"
	"math"
	"strconv"
	"strings"

	"github.com/sankofa/delivery-geo/internal/roadgraph"
)

// dijkstraItem is a priority queue entry for the shortest-path search.
type dijkstraItem struct {
	node roadgraph.NodeID
	dist float64
}

type dijkstraQueue []dijkstraItem

func (q dijkstraQueue) Len() int            { return len(q) }
func (q dijkstraQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q dijkstraQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *dijkstraQueue) Push(x interface{}) { *q = append(*q, x.(dijkstraItem)) }
func (q *dijkstraQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

type edgeKey struct {
	from, to roadgraph.NodeID
}

// dijkstra finds the cheapest path between two nodes on the simplified view,
// honoring node and edge exclusions. Returns false when the target is
// unreachable.
func dijkstra(g *roadgraph.Simplified, from, to roadgraph.NodeID,
	blockedNodes map[roadgraph.NodeID]bool, blockedEdges map[edgeKey]bool) ([]roadgraph.NodeID, float64, bool) {

	if blockedNodes[from] || blockedNodes[to] {
		return nil, 0, false
	}

	dist := map[roadgraph.NodeID]float64{from: 0}
	prev := make(map[roadgraph.NodeID]roadgraph.NodeID)
	done := make(map[roadgraph.NodeID]bool)

	q := &dijkstraQueue{{node: from, dist: 0}}
	heap.Init(q)

	for q.Len() > 0 {
		item := heap.Pop(q).(dijkstraItem)
		if done[item.node] {
			continue
		}
		done[item.node] = true
		if item.node == to {
			break
		}
		for _, e := range g.Adj[item.node] {
			if blockedNodes[e.To] || blockedEdges[edgeKey{item.node, e.To}] {
				continue
			}
			next := item.dist + e.Weight
			if d, ok := dist[e.To]; !ok || next < d {
				dist[e.To] = next
				prev[e.To] = item.node
				heap.Push(q, dijkstraItem{node: e.To, dist: next})
			}
		}
	}

	if !done[to] {
		return nil, 0, false
	}

	path := []roadgraph.NodeID{to}
	for path[len(path)-1] != from {
		path = append(path, prev[path[len(path)-1]])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dist[to], true
}

type candidatePath struct {
	nodes []roadgraph.NodeID
	cost  float64
}

type candidateHeap []candidatePath

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	// Deterministic order among equal-cost paths.
	return pathKey(h[i].nodes) < pathKey(h[j].nodes)
}
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidatePath)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func pathKey(nodes []roadgraph.NodeID) string {
	var b strings.Builder
	for i, n := range nodes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(int64(n), 10))
	}
	return b.String()
}

// PathIterator lazily enumerates loop-free paths between two nodes in
// nondecreasing cost order (Yen's deviation scheme). Each Next call does only
// the spur searches needed to yield one more path, so callers asking for k
// paths never pay for k+1.
type PathIterator struct {
	g          *roadgraph.Simplified
	from, to   roadgraph.NodeID
	accepted   []candidatePath
	candidates candidateHeap
	queued     map[string]bool
	exhausted  bool
}

// ShortestSimplePaths starts a lazy path enumeration on the simplified view.
func ShortestSimplePaths(g *roadgraph.Simplified, from, to roadgraph.NodeID) *PathIterator {
	return &PathIterator{
		g:      g,
		from:   from,
		to:     to,
		queued: make(map[string]bool),
	}
}

// Next yields the following path and its cost, or false when no further
// loop-free path exists.
func (it *PathIterator) Next() ([]roadgraph.NodeID, float64, bool) {
	if it.exhausted {
		return nil, 0, false
	}

	if len(it.accepted) == 0 {
		nodes, cost, ok := dijkstra(it.g, it.from, it.to, nil, nil)
		if !ok {
			it.exhausted = true
			return nil, 0, false
		}
		it.accepted = append(it.accepted, candidatePath{nodes: nodes, cost: cost})
		it.queued[pathKey(nodes)] = true
		return nodes, cost, true
	}

	it.deviate(it.accepted[len(it.accepted)-1])

	if it.candidates.Len() == 0 {
		it.exhausted = true
		return nil, 0, false
	}
	best := heap.Pop(&it.candidates).(candidatePath)
	it.accepted = append(it.accepted, best)
	return best.nodes, best.cost, true
}

// deviate generates the spur candidates branching off the most recently
// accepted path.
func (it *PathIterator) deviate(last candidatePath) {
	for i := 0; i < len(last.nodes)-1; i++ {
		spurNode := last.nodes[i]
		rootPath := last.nodes[:i+1]

		blockedEdges := make(map[edgeKey]bool)
		for _, p := range it.accepted {
			if len(p.nodes) > i+1 && sharesPrefix(p.nodes, rootPath) {
				blockedEdges[edgeKey{p.nodes[i], p.nodes[i+1]}] = true
			}
		}
		blockedNodes := make(map[roadgraph.NodeID]bool)
		for _, n := range rootPath[:len(rootPath)-1] {
			blockedNodes[n] = true
		}

		spurPath, spurCost, ok := dijkstra(it.g, spurNode, it.to, blockedNodes, blockedEdges)
		if !ok {
			continue
		}

		rootCost := 0.0
		valid := true
		for j := 0; j < len(rootPath)-1; j++ {
			w, ok := it.g.Weight(rootPath[j], rootPath[j+1])
			if !ok {
				valid = false
				break
			}
			rootCost += w
		}
		if !valid || math.IsInf(rootCost, 0) {
			continue
		}

		full := make([]roadgraph.NodeID, 0, len(rootPath)+len(spurPath)-1)
		full = append(full, rootPath...)
		full = append(full, spurPath[1:]...)

		key := pathKey(full)
		if it.queued[key] {
			continue
		}
		it.queued[key] = true
		heap.Push(&it.candidates, candidatePath{nodes: full, cost: rootCost + spurCost})
	}
}

func sharesPrefix(path, prefix []roadgraph.NodeID) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i, n := range prefix {
		if path[i] != n {
			return false
		}
	}
	return true
}
