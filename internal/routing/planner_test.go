package routing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/sankofa/delivery-geo/internal/regionindex"
	"github.com/sankofa/delivery-geo/internal/roadgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// accraFixture is a three-node network: a direct 5 km edge at 50 km/h between
// nodes 1 and 2 and a slower detour through node 3.
const accraFixture = `<?xml version="1.0" encoding="UTF-8"?>
<graphml xmlns="http://graphml.graphdrawing.org/xmlns">
  <key id="d0" for="node" attr.name="y" attr.type="string"/>
  <key id="d1" for="node" attr.name="x" attr.type="string"/>
  <key id="d2" for="edge" attr.name="length" attr.type="string"/>
  <key id="d3" for="edge" attr.name="maxspeed" attr.type="string"/>
  <graph edgedefault="directed">
    <node id="1"><data key="d1">-0.2000</data><data key="d0">5.5500</data></node>
    <node id="2"><data key="d1">-0.1500</data><data key="d0">5.6000</data></node>
    <node id="3"><data key="d1">-0.1800</data><data key="d0">5.5900</data></node>
    <edge source="1" target="2"><data key="d2">5000</data><data key="d3">50</data></edge>
    <edge source="1" target="3"><data key="d2">4000</data></edge>
    <edge source="3" target="2"><data key="d2">3000</data></edge>
  </graph>
</graphml>`

func fixturePlanner(t *testing.T) *Planner {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "accra.graphml"), []byte(accraFixture), 0o644))

	index, err := regionindex.Build(context.Background(), dir, filepath.Join(dir, "index.json"), false)
	require.NoError(t, err)
	require.Equal(t, 1, index.Len())

	return NewPlanner(index, roadgraph.NewCache("", 2))
}

func emptyPlanner(t *testing.T) *Planner {
	t.Helper()
	dir := t.TempDir()
	index, err := regionindex.Build(context.Background(), dir, filepath.Join(dir, "index.json"), false)
	require.NoError(t, err)
	return NewPlanner(index, roadgraph.NewCache("", 2))
}

func TestPlanner_GetRoute_RoadNetwork(t *testing.T) {
	p := fixturePlanner(t)

	pickup := orb.Point{-0.2, 5.55}
	dropoff := orb.Point{-0.15, 5.6}
	route := p.GetRoute(context.Background(), pickup, dropoff, 1)

	require.NotNil(t, route)
	assert.Equal(t, []orb.Point{{-0.2, 5.55}, {-0.15, 5.6}}, route.Coords)
	require.NotNil(t, route.ETAMinutes)
	// 5 km at 50 km/h.
	assert.InDelta(t, 6.0, *route.ETAMinutes, 1e-9)
	assert.Empty(t, route.Alternates)
}

func TestPlanner_GetRoute_Alternatives(t *testing.T) {
	p := fixturePlanner(t)

	route := p.GetRoute(context.Background(), orb.Point{-0.2, 5.55}, orb.Point{-0.15, 5.6}, 3)

	require.NotNil(t, route)
	require.Len(t, route.Alternates, 1)
	assert.Equal(t, []orb.Point{{-0.2, 5.55}, {-0.18, 5.59}, {-0.15, 5.6}}, route.Alternates[0])
}

func TestPlanner_GetRoute_AlternativesNeverExceedRequested(t *testing.T) {
	p := fixturePlanner(t)

	route := p.GetRoute(context.Background(), orb.Point{-0.2, 5.55}, orb.Point{-0.15, 5.6}, 1)
	require.NotNil(t, route)
	assert.Empty(t, route.Alternates)
}

func TestPlanner_GetRoute_StraightLineWhenNoRegions(t *testing.T) {
	p := emptyPlanner(t)

	pickup := orb.Point{-0.2, 5.55}
	dropoff := orb.Point{-0.15, 5.6}
	route := p.GetRoute(context.Background(), pickup, dropoff, 2)

	require.NotNil(t, route)
	assert.Equal(t, []orb.Point{pickup, dropoff}, route.Coords)
	assert.Nil(t, route.ETAMinutes)
	assert.NotNil(t, route.Alternates)
	assert.Empty(t, route.Alternates)
}

func TestPlanner_GetRoute_StraightLineWhenUnreachable(t *testing.T) {
	dir := t.TempDir()
	// Two nodes with no connecting edge.
	disconnected := `<?xml version="1.0"?>
<graphml>
  <key id="d0" for="node" attr.name="y"/>
  <key id="d1" for="node" attr.name="x"/>
  <graph edgedefault="directed">
    <node id="1"><data key="d1">-0.2</data><data key="d0">5.55</data></node>
    <node id="2"><data key="d1">-0.15</data><data key="d0">5.6</data></node>
  </graph>
</graphml>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "accra.graphml"), []byte(disconnected), 0o644))

	index, err := regionindex.Build(context.Background(), dir, filepath.Join(dir, "index.json"), false)
	require.NoError(t, err)
	p := NewPlanner(index, roadgraph.NewCache("", 2))

	pickup := orb.Point{-0.2, 5.55}
	dropoff := orb.Point{-0.15, 5.6}
	route := p.GetRoute(context.Background(), pickup, dropoff, 1)

	require.NotNil(t, route)
	assert.Equal(t, []orb.Point{pickup, dropoff}, route.Coords)
	assert.Nil(t, route.ETAMinutes)
}

func TestPlanner_ETAUsesDefaultSpeedForUntaggedEdges(t *testing.T) {
	p := fixturePlanner(t)

	// Force the detour by asking for routes from node 1's side to node 3.
	route := p.GetRoute(context.Background(), orb.Point{-0.2, 5.55}, orb.Point{-0.18, 5.59}, 1)
	require.NotNil(t, route)
	require.NotNil(t, route.ETAMinutes)
	// 4 km at the default 40 km/h.
	assert.InDelta(t, 4.0/40.0*60.0, *route.ETAMinutes, 1e-9)
}

func TestPlanner_ETAMonotonicWithDistance(t *testing.T) {
	dir := t.TempDir()
	var nodes, edges string
	for i := 0; i <= 4; i++ {
		nodes += fmt.Sprintf(`<node id="%d"><data key="d1">%g</data><data key="d0">5.55</data></node>`, i+1, -0.2+float64(i)*0.01)
	}
	for i := 1; i <= 4; i++ {
		edges += fmt.Sprintf(`<edge source="%d" target="%d"><data key="d2">1000</data><data key="d3">50</data></edge>`, i, i+1)
	}
	content := `<?xml version="1.0"?>
<graphml>
  <key id="d0" for="node" attr.name="y"/>
  <key id="d1" for="node" attr.name="x"/>
  <key id="d2" for="edge" attr.name="length"/>
  <key id="d3" for="edge" attr.name="maxspeed"/>
  <graph edgedefault="directed">` + nodes + edges + `</graph>
</graphml>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "line.graphml"), []byte(content), 0o644))

	index, err := regionindex.Build(context.Background(), dir, filepath.Join(dir, "index.json"), false)
	require.NoError(t, err)
	p := NewPlanner(index, roadgraph.NewCache("", 2))

	start := orb.Point{-0.2, 5.55}
	near := p.GetRoute(context.Background(), start, orb.Point{-0.18, 5.55}, 1)
	far := p.GetRoute(context.Background(), start, orb.Point{-0.16, 5.55}, 1)

	require.NotNil(t, near.ETAMinutes)
	require.NotNil(t, far.ETAMinutes)
	assert.Less(t, *near.ETAMinutes, *far.ETAMinutes)
}
