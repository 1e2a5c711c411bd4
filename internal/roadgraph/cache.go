package roadgraph

import (
	"context"
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sankofa/delivery-geo/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoGraphs signals that none of the requested region files could be
// loaded; the caller is expected to fall back to a straight-line route.
var ErrNoGraphs = errors.New("no region graphs could be loaded")

var (
	graphCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_cache_lookups_total",
			Help: "Composed graph cache lookups by outcome (memory, disk, compose).",
		},
		[]string{"outcome"},
	)
	graphCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graph_cache_evictions_total",
			Help: "Composed graph bundles evicted from the in-memory cache.",
		},
	)
)

// Bundle is one cache entry's payload: the composed multigraph, its planar
// view and its simplified search view. The three live and die together.
type Bundle struct {
	Graph      *Graph
	Projected  *Projected
	Simplified *Simplified
}

type cacheEntry struct {
	bundle     *Bundle
	lastAccess time.Time
}

// Cache holds composed region graph bundles, bounded by capacity with
// oldest-access-first eviction, backed by a best-effort gob disk cache.
// Concurrent loads for one key are coalesced so a composition runs once.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	capacity int
	cacheDir string
	group    singleflight.Group
	now      func() time.Time
}

// NewCache creates a graph cache. A capacity below one falls back to the
// service default of two bundles.
func NewCache(cacheDir string, capacity int) *Cache {
	if capacity < 1 {
		capacity = 2
	}
	return &Cache{
		entries:  make(map[string]*cacheEntry),
		capacity: capacity,
		cacheDir: cacheDir,
		now:      time.Now,
	}
}

// CacheKey builds the deterministic fingerprint for a region file set. The
// key doubles as the persisted cache file stem, so path separators and other
// unsafe characters are flattened.
func CacheKey(paths []string) string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)
	key := strings.Join(sorted, "|")
	replacer := strings.NewReplacer(string(os.PathSeparator), "_", "/", "_", ":", "_", " ", "_")
	return replacer.Replace(key)
}

// Load returns the composed bundle for a set of region file paths, composing
// and caching it on first use. Returns ErrNoGraphs when not a single region
// file could be loaded.
func (c *Cache) Load(ctx context.Context, paths []string) (*Bundle, error) {
	if len(paths) == 0 {
		return nil, ErrNoGraphs
	}
	key := CacheKey(paths)

	if bundle, ok := c.lookup(key); ok {
		graphCacheHits.WithLabelValues("memory").Inc()
		return bundle, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent caller may have populated the entry while this
		// call waited on the flight group.
		if bundle, ok := c.lookup(key); ok {
			graphCacheHits.WithLabelValues("memory").Inc()
			return bundle, nil
		}

		if bundle := c.loadPersisted(ctx, key); bundle != nil {
			graphCacheHits.WithLabelValues("disk").Inc()
			c.insert(key, bundle)
			return bundle, nil
		}

		bundle, err := c.compose(ctx, paths)
		if err != nil {
			return nil, err
		}
		graphCacheHits.WithLabelValues("compose").Inc()
		c.persist(ctx, key, bundle)
		c.insert(key, bundle)
		return bundle, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Bundle), nil
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (*Bundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry.lastAccess = c.now()
	return entry.bundle, true
}

func (c *Cache) insert(key string, bundle *Bundle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{bundle: bundle, lastAccess: c.now()}
	for len(c.entries) > c.capacity {
		oldestKey := ""
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.lastAccess.Before(oldest) {
				oldestKey = k
				oldest = e.lastAccess
			}
		}
		delete(c.entries, oldestKey)
		graphCacheEvictions.Inc()
		logger.Info("Evicted composed graph bundle", zap.String("key", oldestKey))
	}
}

// compose loads each region file, unions the results, projects the merged
// graph and derives the simplified search view. Individual file failures are
// logged and skipped so one corrupt region never takes down a request.
func (c *Cache) compose(ctx context.Context, paths []string) (*Bundle, error) {
	merged := NewGraph()
	loaded := 0
	for _, path := range paths {
		g, err := LoadFile(path)
		if err != nil {
			logger.WarnContext(ctx, "Skipping unreadable region file",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		merged.Merge(g)
		loaded++
	}
	if loaded == 0 {
		return nil, ErrNoGraphs
	}

	return &Bundle{
		Graph:      merged,
		Projected:  Project(merged),
		Simplified: Simplify(merged),
	}, nil
}

func (c *Cache) persistedPath(key string) string {
	return filepath.Join(c.cacheDir, key+".gob")
}

// persist writes the composed multigraph to disk. Failure is non-fatal; the
// bundle simply gets recomposed after the next eviction or restart.
func (c *Cache) persist(ctx context.Context, key string, bundle *Bundle) {
	if c.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		logger.WarnContext(ctx, "Could not create graph cache dir", zap.Error(err))
		return
	}
	f, err := os.Create(c.persistedPath(key))
	if err != nil {
		logger.WarnContext(ctx, "Could not persist composed graph", zap.Error(err))
		return
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(bundle.Graph); err != nil {
		logger.WarnContext(ctx, "Could not encode composed graph", zap.Error(err))
		return
	}
	logger.DebugContext(ctx, "Persisted composed graph", zap.String("key", key))
}

// loadPersisted reloads a composed multigraph from disk and re-derives the
// projected and simplified views, which are cheap compared to recomposition.
func (c *Cache) loadPersisted(ctx context.Context, key string) *Bundle {
	if c.cacheDir == "" {
		return nil
	}
	f, err := os.Open(c.persistedPath(key))
	if err != nil {
		return nil
	}
	defer f.Close()

	graph := NewGraph()
	if err := gob.NewDecoder(f).Decode(graph); err != nil {
		logger.WarnContext(ctx, "Discarding unreadable persisted graph",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil
	}
	if graph.NodeCount() == 0 {
		return nil
	}
	return &Bundle{
		Graph:      graph,
		Projected:  Project(graph),
		Simplified: Simplify(graph),
	}
}
