package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	earthRadiusKm = 6371.0
	pi180         = math.Pi / 180.0
)

// Haversine calculates the great-circle distance in kilometres between two
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * pi180
	dLon := (lon2 - lon1) * pi180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*pi180)*math.Cos(lat2*pi180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// SquaredEuclidean returns the squared planar distance between two points
// (Lon == X, Lat == Y). Cheap ordering metric for nearest-candidate scans.
func SquaredEuclidean(p, q orb.Point) float64 {
	dx := p[0] - q[0]
	dy := p[1] - q[1]
	return dx*dx + dy*dy
}
