// internal/common/validation/fields.go
package validation

import "lifelink-workers/internal/matching"

// ValidateBloodGroup reports whether s names one of the eight ABO/Rh groups.
func ValidateBloodGroup(s string) bool {
	_, err := matching.ParseBloodGroup(s)
	return err == nil
}

// ValidateCoordinates checks WGS84 ranges.
func ValidateCoordinates(lat, lon float64) bool {
	return matching.Coordinates{Latitude: lat, Longitude: lon}.Valid()
}
