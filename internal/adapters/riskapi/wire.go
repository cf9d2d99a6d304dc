package riskapi

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/georisk/georisk/internal/core/domain"
)

// riskRequest is the POST body: {"polygon": <GeoJSON Polygon>}.
type riskRequest struct {
	Polygon *geojson.Geometry `json:"polygon"`
}

func newRiskRequest(ring orb.Ring) riskRequest {
	return riskRequest{Polygon: geojson.NewGeometry(orb.Polygon{ring})}
}

// riskResponse mirrors the backend body. Pointers tell missing from zero.
type riskResponse struct {
	NearestRiver    *string  `json:"rio_mais_proximo"`
	DistanceToRiver *float64 `json:"distancia_rio_m"`
	RelativeDrop    *float64 `json:"queda_relativa_m"`
	Narrative       *string  `json:"resposta_ia"`
	RiskLevel       *string  `json:"risk_level"`
}

func (r riskResponse) toDomain() (*domain.RiskResult, error) {
	var missing []string
	if r.NearestRiver == nil {
		missing = append(missing, "rio_mais_proximo")
	}
	if r.DistanceToRiver == nil {
		missing = append(missing, "distancia_rio_m")
	}
	if r.Narrative == nil {
		missing = append(missing, "resposta_ia")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrMalformedResponse, strings.Join(missing, ", "))
	}

	dist := *r.DistanceToRiver
	if math.IsNaN(dist) || math.IsInf(dist, 0) || dist < 0 {
		return nil, fmt.Errorf("%w: distancia_rio_m must be a non-negative number, got %g", domain.ErrMalformedResponse, dist)
	}

	level, ok := deriveLevel(r.RiskLevel, *r.Narrative)
	if !ok {
		return nil, fmt.Errorf("%w: no risk level in response", domain.ErrMalformedResponse)
	}

	res := &domain.RiskResult{
		Level:                 level,
		NearestWaterBody:      *r.NearestRiver,
		DistanceToWaterMeters: dist,
		Narrative:             *r.Narrative,
	}
	if r.RelativeDrop != nil {
		drop := *r.RelativeDrop
		res.RelativeDropMeters = &drop
	}
	return res, nil
}
