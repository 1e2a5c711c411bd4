package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const webMercatorRadius = 6378137.0

// ToMercator projects a WGS84 lon/lat point to planar web-mercator metres.
func ToMercator(p orb.Point) orb.Point {
	x := webMercatorRadius * p[0] * pi180
	lat := p[1]
	// clamp to the web-mercator latitude domain
	if lat > 85.05112878 {
		lat = 85.05112878
	} else if lat < -85.05112878 {
		lat = -85.05112878
	}
	y := webMercatorRadius * math.Log(math.Tan(math.Pi/4+lat*pi180/2))
	return orb.Point{x, y}
}
