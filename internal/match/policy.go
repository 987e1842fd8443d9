package match

import (
	"math"

	"pairsona/pkg/types"
)

// earthHalfKm normalizes distances: no two points are farther apart
// than half the equatorial circumference.
const earthHalfKm = 20038.0

// Proximity scores how geographically close two coarse locations are,
// in [0, 1]. Any unknown side scores a neutral 0.5 so the location-aware
// policies degrade to arrival order when data is missing.
func Proximity(a, b types.LocationRecord) float64 {
	if a.IsUnknown() || b.IsUnknown() {
		return 0.5
	}
	if a.HasCoordinates() && b.HasCoordinates() {
		return 1 - math.Min(distanceKm(a, b), earthHalfKm)/earthHalfKm
	}
	if a.CountryCode != "" && a.CountryCode == b.CountryCode {
		return 0.9
	}
	return 0.1
}

// distanceKm is an equirectangular approximation, plenty for
// country/city-granular records.
func distanceKm(a, b types.LocationRecord) float64 {
	const kmPerDegree = 111.195
	latA := a.Latitude * math.Pi / 180
	latB := b.Latitude * math.Pi / 180
	x := (b.Longitude - a.Longitude) * math.Cos((latA+latB)/2)
	y := b.Latitude - a.Latitude
	return math.Sqrt(x*x+y*y) * kmPerDegree
}
