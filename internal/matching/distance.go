package matching

import (
	"errors"
	"math"

	"github.com/tidwall/geodesic"
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Valid reports whether c is a finite position inside the WGS84 ranges.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// GeodesicKm is the length in kilometres of the shortest path between a and
// b on the WGS84 ellipsoid.
func GeodesicKm(a, b Coordinates) (float64, error) {
	if !a.Valid() || !b.Valid() {
		return 0, ErrInvalidCoordinates
	}
	var meters float64
	geodesic.WGS84.Inverse(a.Latitude, a.Longitude, b.Latitude, b.Longitude, &meters, nil, nil)
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters < 0 {
		return 0, ErrInvalidCoordinates
	}
	return meters / 1000, nil
}

// distanceOrPenalty never fails: unusable coordinates put the donor
// penaltyKm away so the rest of the pool can still be ranked.
func distanceOrPenalty(a, b Coordinates, penaltyKm float64) (float64, bool) {
	km, err := GeodesicKm(a, b)
	if err != nil {
		return penaltyKm, false
	}
	return km, true
}
