package regionindex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/sankofa/delivery-geo/internal/roadgraph"
	"github.com/sankofa/delivery-geo/pkg/logger"
	"go.uber.org/zap"
)

// rectEpsilon pads degenerate bounding boxes so they remain valid R-tree
// rectangles; containment is re-checked exactly against the orb.Bound.
const rectEpsilon = 1e-9

// Region describes one indexed road-network fragment.
type Region struct {
	Name string
	Path string
	BBox orb.Bound
}

// persistedRegion is the on-disk JSON shape: {"path": ..., "bbox": [minLon,
// minLat, maxLon, maxLat]}, keyed by file name.
type persistedRegion struct {
	Path string     `json:"path"`
	BBox [4]float64 `json:"bbox"`
}

// Index maps region files to their geographic bounding boxes. Built once by
// streaming node coordinates; immutable afterwards, so lookups need no lock.
type Index struct {
	regions []Region // sorted by name
	tree    *rtreego.Rtree
}

type treeEntry struct {
	region Region
	rect   rtreego.Rect
}

func (e *treeEntry) Bounds() rtreego.Rect {
	return e.rect
}

// Build creates the region index for a data directory, reusing a persisted
// index file unless force is set or the file is missing or unreadable.
// Files whose coordinates cannot be scanned are logged and excluded, which
// narrows the routable area but never fails the build.
func Build(ctx context.Context, dataDir, indexPath string, force bool) (*Index, error) {
	if !force {
		if idx, err := loadPersisted(indexPath); err == nil {
			logger.InfoContext(ctx, "Loaded region index",
				zap.String("path", indexPath),
				zap.Int("regions", idx.Len()),
			)
			return idx, nil
		} else if !os.IsNotExist(err) {
			logger.WarnContext(ctx, "Could not reuse region index, rebuilding",
				zap.String("path", indexPath),
				zap.Error(err),
			)
		}
	}

	files, err := filepath.Glob(filepath.Join(dataDir, "*.graphml"))
	if err != nil {
		return nil, fmt.Errorf("scan region dir %s: %w", dataDir, err)
	}
	sort.Strings(files)

	var regions []Region
	for _, file := range files {
		bound, err := roadgraph.ScanBounds(file)
		if err != nil {
			logger.WarnContext(ctx, "Excluding region file from index",
				zap.String("path", file),
				zap.Error(err),
			)
			continue
		}
		regions = append(regions, Region{
			Name: filepath.Base(file),
			Path: file,
			BBox: bound,
		})
		logger.InfoContext(ctx, "Indexed region file",
			zap.String("name", filepath.Base(file)),
			zap.Float64s("bbox", []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}),
		)
	}

	idx := newIndex(regions)
	if err := idx.persist(indexPath); err != nil {
		logger.WarnContext(ctx, "Could not persist region index",
			zap.String("path", indexPath),
			zap.Error(err),
		)
	}
	return idx, nil
}

func newIndex(regions []Region) *Index {
	sort.Slice(regions, func(i, j int) bool { return regions[i].Name < regions[j].Name })

	tree := rtreego.NewTree(2, 2, 16)
	for _, r := range regions {
		width := r.BBox.Max[0] - r.BBox.Min[0]
		height := r.BBox.Max[1] - r.BBox.Min[1]
		if width < rectEpsilon {
			width = rectEpsilon
		}
		if height < rectEpsilon {
			height = rectEpsilon
		}
		rect, err := rtreego.NewRect(
			rtreego.Point{r.BBox.Min[0], r.BBox.Min[1]},
			[]float64{width, height},
		)
		if err != nil {
			continue
		}
		tree.Insert(&treeEntry{region: r, rect: rect})
	}
	return &Index{regions: regions, tree: tree}
}

func loadPersisted(indexPath string) (*Index, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, err
	}
	var raw map[string]persistedRegion
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	regions := make([]Region, 0, len(raw))
	for name, pr := range raw {
		regions = append(regions, Region{
			Name: name,
			Path: pr.Path,
			BBox: orb.Bound{
				Min: orb.Point{pr.BBox[0], pr.BBox[1]},
				Max: orb.Point{pr.BBox[2], pr.BBox[3]},
			},
		})
	}
	return newIndex(regions), nil
}

func (idx *Index) persist(indexPath string) error {
	raw := make(map[string]persistedRegion, len(idx.regions))
	for _, r := range idx.regions {
		raw[r.Name] = persistedRegion{
			Path: r.Path,
			BBox: [4]float64{r.BBox.Min[0], r.BBox.Min[1], r.BBox.Max[0], r.BBox.Max[1]},
		}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(indexPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(indexPath, data, 0o644)
}

// Len returns the number of indexed regions.
func (idx *Index) Len() int {
	return len(idx.regions)
}

// Regions returns the indexed regions sorted by name.
func (idx *Index) Regions() []Region {
	out := make([]Region, len(idx.regions))
	copy(out, idx.regions)
	return out
}
