package match

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadius is the sphere radius used for every distance comparison, in meters.
// orb/geo uses the WGS84 semi-major axis instead, so distances are computed here.
const EarthRadius = 6372800.0

// Haversine returns the great-circle distance in meters between two (lon, lat) points
func Haversine(a, b orb.Point) float64 {
	lat1 := deg2rad(a.Lat())
	lat2 := deg2rad(b.Lat())
	dLat := lat2 - lat1
	dLon := deg2rad(b.Lon() - a.Lon())

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	// Rounding can push h just above 1 for antipodal points
	h = math.Min(1, h)
	return 2 * EarthRadius * math.Asin(math.Sqrt(h))
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180.0
}
