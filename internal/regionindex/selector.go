package regionindex

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/sankofa/delivery-geo/pkg/geo"
)

// RegionsForPoints returns the minimal region-file set covering the given
// lon/lat points. Containment is bounds-inclusive. When no region contains
// any point, each point falls back to the region with the nearest bbox
// center (great-circle distance); equidistant candidates resolve to the
// lexicographically smallest name so selection stays deterministic. The
// result is sorted by file path and deduplicated.
func (idx *Index) RegionsForPoints(points []orb.Point) []Region {
	matched := make(map[string]Region)
	for _, p := range points {
		for _, r := range idx.containing(p) {
			matched[r.Name] = r
		}
	}

	if len(matched) == 0 {
		for _, p := range points {
			if r, ok := idx.nearest(p); ok {
				matched[r.Name] = r
			}
		}
	}

	out := make([]Region, 0, len(matched))
	for _, r := range matched {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// PathsForPoints is RegionsForPoints flattened to file paths.
func (idx *Index) PathsForPoints(points []orb.Point) []string {
	regions := idx.RegionsForPoints(points)
	paths := make([]string, 0, len(regions))
	for _, r := range regions {
		paths = append(paths, r.Path)
	}
	return paths
}

// containing returns every region whose bbox contains the point. The R-tree
// narrows the candidate set; exact inclusive containment is re-checked on
// the orb.Bound because tree rectangles carry the epsilon padding.
func (idx *Index) containing(p orb.Point) []Region {
	if idx.tree == nil {
		return nil
	}
	probe := rtreego.Point{p[0], p[1]}.ToRect(rectEpsilon)
	var out []Region
	for _, spatial := range idx.tree.SearchIntersect(probe) {
		entry, ok := spatial.(*treeEntry)
		if !ok {
			continue
		}
		if entry.region.BBox.Contains(p) {
			out = append(out, entry.region)
		}
	}
	return out
}

// nearest picks the region whose bbox center is closest by great-circle
// distance; degree deltas would overweigh longitude away from the equator.
// Regions are scanned in name order, so ties keep the first (smallest) name.
func (idx *Index) nearest(p orb.Point) (Region, bool) {
	best := Region{}
	bestDist := math.Inf(1)
	found := false
	for _, r := range idx.regions {
		center := r.BBox.Center()
		d := geo.Haversine(p[1], p[0], center[1], center[0])
		if d < bestDist {
			bestDist = d
			best = r
			found = true
		}
	}
	return best, found
}
