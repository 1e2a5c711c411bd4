package regionindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRegion drops a minimal two-node GraphML file spanning the given bbox.
func writeRegion(t *testing.T, dir, name string, minLon, minLat, maxLon, maxLat float64) string {
	t.Helper()
	content := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<graphml xmlns="http://graphml.graphdrawing.org/xmlns">
  <key id="d0" for="node" attr.name="y" attr.type="string"/>
  <key id="d1" for="node" attr.name="x" attr.type="string"/>
  <key id="d2" for="edge" attr.name="length" attr.type="string"/>
  <graph edgedefault="directed">
    <node id="1"><data key="d1">%g</data><data key="d0">%g</data></node>
    <node id="2"><data key="d1">%g</data><data key="d0">%g</data></node>
    <edge source="1" target="2"><data key="d2">1000</data></edge>
  </graph>
</graphml>`, minLon, minLat, maxLon, maxLat)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuild_IndexesRegions(t *testing.T) {
	dir := t.TempDir()
	writeRegion(t, dir, "accra.graphml", -0.3, 5.5, -0.1, 5.7)
	writeRegion(t, dir, "kumasi.graphml", -1.7, 6.6, -1.5, 6.8)

	idx, err := Build(context.Background(), dir, filepath.Join(dir, "index.json"), false)
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	regions := idx.Regions()
	assert.Equal(t, "accra.graphml", regions[0].Name)
	assert.Equal(t, orb.Point{-0.3, 5.5}, regions[0].BBox.Min)
	assert.Equal(t, orb.Point{-0.1, 5.7}, regions[0].BBox.Max)
	assert.Equal(t, "kumasi.graphml", regions[1].Name)
}

func TestBuild_ExcludesUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	writeRegion(t, dir, "good.graphml", -0.3, 5.5, -0.1, 5.7)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.graphml"), []byte("<broken"), 0o644))

	idx, err := Build(context.Background(), dir, filepath.Join(dir, "index.json"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestBuild_ReusesPersistedIndex(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.json")
	writeRegion(t, dir, "accra.graphml", -0.3, 5.5, -0.1, 5.7)

	ctx := context.Background()
	idx, err := Build(ctx, dir, indexPath, false)
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())

	// A new region file is invisible until a forced rebuild.
	writeRegion(t, dir, "kumasi.graphml", -1.7, 6.6, -1.5, 6.8)

	reused, err := Build(ctx, dir, indexPath, false)
	require.NoError(t, err)
	assert.Equal(t, 1, reused.Len())

	rebuilt, err := Build(ctx, dir, indexPath, true)
	require.NoError(t, err)
	assert.Equal(t, 2, rebuilt.Len())
}

func TestBuild_RebuildsOnCorruptPersistedIndex(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.json")
	writeRegion(t, dir, "accra.graphml", -0.3, 5.5, -0.1, 5.7)
	require.NoError(t, os.WriteFile(indexPath, []byte("{broken"), 0o644))

	idx, err := Build(context.Background(), dir, indexPath, false)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestBuild_EmptyDataDir(t *testing.T) {
	dir := t.TempDir()
	idx, err := Build(context.Background(), dir, filepath.Join(dir, "index.json"), false)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}
