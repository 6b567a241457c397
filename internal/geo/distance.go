// Package geo holds coordinate math and address resolution.
package geo

import (
	"math"

	"github.com/shopspring/decimal"
)

const earthRadiusKm = 6371.0

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Unresolved is what a Resolver returns when an address could not be geocoded.
// It is never a real location.
var Unresolved = Coordinate{}

// IsResolved reports whether c is anything other than the (0,0) sentinel.
func (c Coordinate) IsResolved() bool {
	return c != Unresolved
}

// FromPointers builds a Coordinate from nullable columns. ok is false when either
// side is missing or the pair is the sentinel.
func FromPointers(lat, lng *float64) (Coordinate, bool) {
	if lat == nil || lng == nil {
		return Coordinate{}, false
	}
	c := Coordinate{Latitude: *lat, Longitude: *lng}
	return c, c.IsResolved()
}

// DistanceKm returns the great-circle distance between a and b using the
// haversine formula, rounded half-up to two decimals. Callers must filter
// unresolved coordinates first.
func DistanceKm(a, b Coordinate) decimal.Decimal {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return decimal.NewFromFloat(earthRadiusKm * c).Round(2)
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
