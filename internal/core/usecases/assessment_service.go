package usecases

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/core/ports"
	"github.com/georisk/georisk/internal/pkg/geospatial"
)

// AreaAssessment is the outcome of a one-shot assessment.
type AreaAssessment struct {
	Center       domain.GeoPoint
	RadiusMeters float64
	Ring         orb.Ring
	Result       *domain.RiskResult
	Overlay      domain.Overlay
}

// AssessmentService runs stateless area assessments for the REST and
// GraphQL endpoints. It has no generation tracking: each call is independent.
type AssessmentService struct {
	querier   ports.RiskQuerier
	minRadius float64
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(querier ports.RiskQuerier, minRadius float64) *AssessmentService {
	if minRadius <= 0 {
		minRadius = 1
	}
	return &AssessmentService{querier: querier, minRadius: minRadius}
}

// Area returns the analysis polygon for a point and radius.
func (s *AssessmentService) Area(center domain.GeoPoint, radiusMeters float64) (orb.Ring, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkRadius(radiusMeters); err != nil {
		return nil, err
	}
	return geospatial.Circle(center, radiusMeters)
}

// Assess builds the area polygon and queries the risk backend once.
func (s *AssessmentService) Assess(ctx context.Context, center domain.GeoPoint, radiusMeters float64) (*AreaAssessment, error) {
	ring, err := s.Area(center, radiusMeters)
	if err != nil {
		return nil, err
	}

	result, err := s.querier.Query(ctx, ring)
	if err != nil {
		return nil, fmt.Errorf("assess area: %w", err)
	}

	state := domain.SessionState{
		Point:  &center,
		Radius: radiusMeters,
		Phase:  domain.PhaseSucceeded,
		Result: result,
	}
	return &AreaAssessment{
		Center:       center,
		RadiusMeters: radiusMeters,
		Ring:         ring,
		Result:       result,
		Overlay:      Present(state),
	}, nil
}

func (s *AssessmentService) checkRadius(m float64) error {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return fmt.Errorf("%w: radius must be a finite number", domain.ErrInvalidRadius)
	}
	if m < s.minRadius {
		return fmt.Errorf("%w: radius %g is below the minimum of %g m", domain.ErrInvalidRadius, m, s.minRadius)
	}
	return nil
}
