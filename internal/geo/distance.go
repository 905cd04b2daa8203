// Package geo provides great-circle distance math and address geocoding.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6_371_000.0

// ErrInvalidCoordinate is returned for NaN or infinite coordinates.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point is a geographic position in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that both coordinates are finite and within range.
func (p Point) Validate() error {
	if !finite(p.Latitude) || !finite(p.Longitude) {
		return ErrInvalidCoordinate
	}
	if math.Abs(p.Latitude) > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, p.Latitude)
	}
	if math.Abs(p.Longitude) > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, p.Longitude)
	}
	return nil
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b Point) (float64, error) {
	for _, v := range []float64{a.Latitude, a.Longitude, b.Latitude, b.Longitude} {
		if !finite(v) {
			return 0, ErrInvalidCoordinate
		}
	}

	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// Rounding can push h a hair past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c, nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
