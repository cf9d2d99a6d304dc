package geospatial

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/georisk/georisk/internal/core/domain"
)

// CircleSteps is the fixed number of distinct vertices in every circle ring.
// The returned ring has CircleSteps+1 points because it is closed.
const CircleSteps = 64

// Circle returns a closed ring of [lng, lat] points approximating a circle of
// radiusMeters around center. Vertices are geodesic destinations walked
// counter-clockwise from due north, so the shape is the same at any radius.
func Circle(center domain.GeoPoint, radiusMeters float64) (orb.Ring, error) {
	if err := center.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidGeometry, err)
	}
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: radius must be a positive number of meters, got %g", domain.ErrInvalidGeometry, radiusMeters)
	}

	origin := orb.Point{center.Lng, center.Lat}
	ring := make(orb.Ring, 0, CircleSteps+1)
	for i := 0; i < CircleSteps; i++ {
		bearing := -360 * float64(i) / CircleSteps
		ring = append(ring, geo.PointAtBearingAndDistance(origin, bearing, radiusMeters))
	}
	ring = append(ring, ring[0])

	return ring, nil
}

// ValidateRing checks the polygon constraint of the risk backend: at least
// four finite points and first == last.
func ValidateRing(ring orb.Ring) error {
	if len(ring) < 4 {
		return fmt.Errorf("%w: ring needs at least 4 points, got %d", domain.ErrInvalidGeometry, len(ring))
	}
	if !ring.Closed() {
		return fmt.Errorf("%w: ring is not closed", domain.ErrInvalidGeometry)
	}
	for _, p := range ring {
		if math.IsNaN(p.X()) || math.IsNaN(p.Y()) || math.IsInf(p.X(), 0) || math.IsInf(p.Y(), 0) {
			return fmt.Errorf("%w: ring has a non-finite point", domain.ErrInvalidGeometry)
		}
	}
	return nil
}
