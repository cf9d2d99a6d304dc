package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate returns ErrInvalidPoint when the coordinate is not finite or
// falls outside lat [-90,90] / lng [-180,180].
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("%w: coordinates must be finite", ErrInvalidPoint)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %g out of range [-90, 90]", ErrInvalidPoint, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %g out of range [-180, 180]", ErrInvalidPoint, p.Lng)
	}
	return nil
}

// String formats the point as "lat, lng" with 4 decimals.
func (p GeoPoint) String() string {
	return fmt.Sprintf("%.4f, %.4f", p.Lat, p.Lng)
}

// ParseLatLng parses free text of the form "lat, lng" (a comma, semicolon or
// whitespace may separate the two numbers).
func ParseLatLng(text string) (GeoPoint, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(text), func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return GeoPoint{}, fmt.Errorf("%w: expected \"lat, lng\", got %q", ErrInvalidPoint, text)
	}

	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("%w: latitude %q is not a number", ErrInvalidPoint, fields[0])
	}
	lng, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("%w: longitude %q is not a number", ErrInvalidPoint, fields[1])
	}

	p := GeoPoint{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}
