package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrLatitudeOutOfRange is returned when latitude is outside [-90, 90].
var ErrLatitudeOutOfRange = errors.New("latitude out of range")

// ErrLongitudeOutOfRange is returned when longitude is outside [-180, 180].
var ErrLongitudeOutOfRange = errors.New("longitude out of range")

// ErrCoordinateNotFinite is returned for NaN or infinite coordinates.
var ErrCoordinateNotFinite = errors.New("coordinate is not a finite number")

// ErrTimezoneEmpty is returned when a timezone name is empty after trim.
var ErrTimezoneEmpty = errors.New("timezone is required")

// ErrTimezoneUnknown is returned when the zone database has no such zone.
var ErrTimezoneUnknown = errors.New("unknown timezone")

// ValidateCoordinates checks that lat/lon describe a point on the globe.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return ErrCoordinateNotFinite
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: %v", ErrLatitudeOutOfRange, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %v", ErrLongitudeOutOfRange, lon)
	}
	return nil
}

// ValidateTimezone trims name and checks it loads from the zone database.
// Returns the trimmed name.
func ValidateTimezone(name string) (string, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return "", ErrTimezoneEmpty
	}
	if _, err := time.LoadLocation(s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrTimezoneUnknown, s)
	}
	return s, nil
}
