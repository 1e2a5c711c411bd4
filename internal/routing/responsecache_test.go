package routing

import (
	"fmt"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoute(id float64) *Route {
	return &Route{Coords: []orb.Point{{id, 0}, {id, 1}}, Alternates: [][]orb.Point{}}
}

func TestResponseKey_RoundsCoordinates(t *testing.T) {
	// Sub-centimetre jitter collapses onto one key.
	a := ResponseKey(5.60370000004, -0.18700000004, 6.6666, -1.6163, 1)
	b := ResponseKey(5.6037, -0.187, 6.6666, -1.6163, 1)
	assert.Equal(t, a, b)

	// The alternatives count is part of the identity.
	c := ResponseKey(5.6037, -0.187, 6.6666, -1.6163, 3)
	assert.NotEqual(t, a, c)

	// A move beyond the rounding grain is a different request.
	d := ResponseKey(5.6038, -0.187, 6.6666, -1.6163, 1)
	assert.NotEqual(t, a, d)
}

func TestResponseCache_GetSet(t *testing.T) {
	c := NewResponseCache(time.Hour, 10)

	_, ok := c.Get("k")
	assert.False(t, ok)

	route := testRoute(1)
	c.Set("k", route)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, route, got)
	assert.Equal(t, 1, c.Len())
}

func TestResponseCache_TTLExpiry(t *testing.T) {
	c := NewResponseCache(time.Hour, 10)
	clock := time.Unix(1000, 0)
	c.now = func() time.Time { return clock }

	c.Set("k", testRoute(1))

	clock = clock.Add(59 * time.Minute)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock = clock.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestResponseCache_SetRefreshesExisting(t *testing.T) {
	c := NewResponseCache(time.Hour, 10)
	clock := time.Unix(1000, 0)
	c.now = func() time.Time { return clock }

	c.Set("k", testRoute(1))
	clock = clock.Add(50 * time.Minute)
	newer := testRoute(2)
	c.Set("k", newer)

	// The rewrite restarted the TTL clock.
	clock = clock.Add(50 * time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, newer, got)
	assert.Equal(t, 1, c.Len())
}

func TestResponseCache_EvictsOldestTenth(t *testing.T) {
	c := NewResponseCache(time.Hour, 20)
	clock := time.Unix(1000, 0)
	c.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("k%02d", i), testRoute(float64(i)))
	}
	require.Equal(t, 20, c.Len())

	// Refresh the two oldest so they survive the sweep.
	_, ok := c.Get("k00")
	require.True(t, ok)
	_, ok = c.Get("k01")
	require.True(t, ok)

	c.Set("overflow", testRoute(99))

	// max/10 = 2 evicted, one slot consumed by the new entry.
	assert.Equal(t, 19, c.Len())
	_, ok = c.Get("k00")
	assert.True(t, ok)
	_, ok = c.Get("k01")
	assert.True(t, ok)
	_, ok = c.Get("k02")
	assert.False(t, ok)
	_, ok = c.Get("k03")
	assert.False(t, ok)
	_, ok = c.Get("overflow")
	assert.True(t, ok)
}

func TestResponseCache_EvictsAtLeastOne(t *testing.T) {
	c := NewResponseCache(time.Hour, 5)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), testRoute(float64(i)))
	}
	c.Set("extra", testRoute(9))
	assert.Equal(t, 5, c.Len())
}
