package http

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/core/usecases"
	"github.com/georisk/georisk/internal/pkg/geospatial"
)

// overlayView is the wire form of domain.Overlay.
type overlayView struct {
	Generation  uint64            `json:"generation"`
	Phase       domain.Phase      `json:"phase"`
	Polygon     *geojson.Geometry `json:"polygon,omitempty"`
	FillColor   string            `json:"fill_color"`
	FillOpacity float64           `json:"fill_opacity"`
	Panel       domain.Panel      `json:"panel"`
}

func toOverlayView(ov domain.Overlay) overlayView {
	v := overlayView{
		Generation:  ov.Generation,
		Phase:       ov.Phase,
		FillColor:   ov.FillColor,
		FillOpacity: ov.FillOpacity,
		Panel:       ov.Panel,
	}
	if ov.Ring != nil {
		v.Polygon = geojson.NewGeometry(orb.Polygon{ov.Ring})
	}
	return v
}

// areaFeature wraps an analysis ring as a GeoJSON Feature with a bbox.
func areaFeature(center domain.GeoPoint, radiusMeters float64, ring orb.Ring) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{ring})
	f.BBox = geojson.NewBBox(ring.Bound())
	f.Properties["center"] = center
	f.Properties["radius_m"] = radiusMeters
	f.Properties["vertices"] = geospatial.CircleSteps
	return f
}

// assessResponse is the body of POST /v1/risk.
type assessResponse struct {
	Center       domain.GeoPoint    `json:"center"`
	RadiusMeters float64            `json:"radius_m"`
	Area         *geojson.Feature   `json:"area"`
	Result       *domain.RiskResult `json:"result"`
	Overlay      overlayView        `json:"overlay"`
}

func toAssessResponse(a *usecases.AreaAssessment) assessResponse {
	return assessResponse{
		Center:       a.Center,
		RadiusMeters: a.RadiusMeters,
		Area:         areaFeature(a.Center, a.RadiusMeters, a.Ring),
		Result:       a.Result,
		Overlay:      toOverlayView(a.Overlay),
	}
}
