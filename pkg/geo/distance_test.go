package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	// Accra to Kumasi is roughly 200 km.
	d := Haversine(5.6037, -0.1870, 6.6666, -1.6163)
	assert.InDelta(t, 198, d, 5)

	assert.Zero(t, Haversine(5.6037, -0.1870, 5.6037, -0.1870))
}

func TestSquaredEuclidean(t *testing.T) {
	assert.Equal(t, 25.0, SquaredEuclidean(orb.Point{0, 0}, orb.Point{3, 4}))
	assert.Zero(t, SquaredEuclidean(orb.Point{1, 1}, orb.Point{1, 1}))
}

func TestToMercator(t *testing.T) {
	origin := ToMercator(orb.Point{0, 0})
	assert.InDelta(t, 0, origin[0], 1e-9)
	assert.InDelta(t, 0, origin[1], 1e-9)

	// The antimeridian projects to half the equatorial circumference.
	edge := ToMercator(orb.Point{180, 0})
	assert.InDelta(t, 20037508.342789244, edge[0], 1e-6)
}

func TestToMercator_ClampsPolarLatitudes(t *testing.T) {
	top := ToMercator(orb.Point{0, 89.9})
	clamped := ToMercator(orb.Point{0, 85.05112878})
	assert.Equal(t, clamped[1], top[1])
}
