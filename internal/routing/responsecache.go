package routing

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routeCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_cache_lookups_total",
			Help: "Route response cache lookups by outcome (hit, miss, expired).",
		},
		[]string{"outcome"},
	)
	routeCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "route_cache_evictions_total",
			Help: "Route responses evicted to make room for new entries.",
		},
	)
)

type cachedRoute struct {
	route      *Route
	storedAt   time.Time
	lastAccess time.Time
}

// ResponseCache memoizes computed routes keyed by rounded endpoints plus the
// alternatives count. Entries expire after a TTL; overflowing the maximum
// evicts the least recently accessed tenth in one sweep.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*cachedRoute
	ttl     time.Duration
	max     int
	now     func() time.Time
}

// NewResponseCache creates a route response cache.
func NewResponseCache(ttl time.Duration, max int) *ResponseCache {
	if max < 1 {
		max = 2000
	}
	return &ResponseCache{
		entries: make(map[string]*cachedRoute),
		ttl:     ttl,
		max:     max,
		now:     time.Now,
	}
}

// ResponseKey derives the cache key for a route request. Coordinates are
// rounded to seven decimals (about a centimetre) so jittery GPS inputs for
// the same journey collapse onto one entry.
func ResponseKey(pickupLat, pickupLng, dropoffLat, dropoffLng float64, alternatives int) string {
	parts := []string{
		roundCoord(pickupLat),
		roundCoord(pickupLng),
		roundCoord(dropoffLat),
		roundCoord(dropoffLng),
		strconv.Itoa(alternatives),
	}
	return strings.Join(parts, "|")
}

func roundCoord(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e7)/1e7, 'f', 7, 64)
}

// Get returns the cached route for a key, expiring stale entries on contact.
func (c *ResponseCache) Get(key string) (*Route, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		routeCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		routeCacheLookups.WithLabelValues("expired").Inc()
		return nil, false
	}
	entry.lastAccess = c.now()
	routeCacheLookups.WithLabelValues("hit").Inc()
	return entry.route, true
}

// Set stores a route, evicting the oldest tenth of entries when full.
func (c *ResponseCache) Set(key string, route *Route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		entry.route = route
		entry.storedAt = c.now()
		entry.lastAccess = entry.storedAt
		return
	}
	if len(c.entries) >= c.max {
		c.evictLocked()
	}
	now := c.now()
	c.entries[key] = &cachedRoute{route: route, storedAt: now, lastAccess: now}
}

// Len returns the number of cached responses.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops the least recently accessed 10% of entries, at least one.
func (c *ResponseCache) evictLocked() {
	count := c.max / 10
	if count < 1 {
		count = 1
	}
	type keyed struct {
		key        string
		lastAccess time.Time
	}
	all := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, keyed{key: k, lastAccess: e.lastAccess})
	}
	for i := 0; i < count && len(all) > 0; i++ {
		oldest := 0
		for j := 1; j < len(all); j++ {
			if all[j].lastAccess.Before(all[oldest].lastAccess) {
				oldest = j
			}
		}
		delete(c.entries, all[oldest].key)
		routeCacheEvictions.Inc()
		all[oldest] = all[len(all)-1]
		all = all[:len(all)-1]
	}
}
