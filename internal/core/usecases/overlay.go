package usecases

import (
	"errors"
	"fmt"

	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/pkg/geospatial"
)

// Overlay fill colours.
const (
	ColorLow     = "#22c55e"
	ColorMedium  = "#f97316"
	ColorHigh    = "#ef4444"
	ColorNeutral = "#0080ff"

	FillOpacity = 0.25
)

const (
	msgEmpty   = "Clique no mapa, busque um endereço ou informe coordenadas para analisar a área."
	msgLoading = "Analisando..."
)

// LevelColor maps a risk level to its fill colour.
func LevelColor(l domain.RiskLevel) string {
	switch l {
	case domain.RiskLow:
		return ColorLow
	case domain.RiskMedium:
		return ColorMedium
	case domain.RiskHigh:
		return ColorHigh
	}
	return ColorNeutral
}

// Present projects a session state onto its overlay. It has no side effects.
func Present(s domain.SessionState) domain.Overlay {
	ov := domain.Overlay{
		Generation:  s.Generation,
		Phase:       s.Phase,
		FillColor:   ColorNeutral,
		FillOpacity: FillOpacity,
	}
	if s.Point != nil {
		if ring, err := geospatial.Circle(*s.Point, s.Radius); err == nil {
			ov.Ring = ring
		}
	}

	switch s.Phase {
	case domain.PhaseQuerying:
		ov.Panel = domain.Panel{Kind: domain.PanelLoading, Message: msgLoading}
		if s.Point != nil {
			ov.Panel.Coordinates = s.Point.String()
		}
	case domain.PhaseSucceeded:
		if s.Result == nil || s.Point == nil {
			ov.Panel = domain.Panel{Kind: domain.PanelEmpty, Message: msgEmpty}
			break
		}
		ov.FillColor = LevelColor(s.Result.Level)
		ov.Panel = ResultPanel(*s.Point, s.Result)
	case domain.PhaseFailed:
		ov.Panel = domain.Panel{Kind: domain.PanelError, Message: FailureMessage(s.Err)}
		if s.Point != nil {
			ov.Panel.Coordinates = s.Point.String()
		}
	default:
		ov.Panel = domain.Panel{Kind: domain.PanelEmpty, Message: msgEmpty}
	}
	return ov
}

// ResultPanel formats a successful assessment for display.
func ResultPanel(center domain.GeoPoint, r *domain.RiskResult) domain.Panel {
	drop := "N/A"
	if r.RelativeDropMeters != nil {
		drop = fmt.Sprintf("%.1f m", *r.RelativeDropMeters)
	}
	return domain.Panel{
		Kind:             domain.PanelResult,
		Coordinates:      center.String(),
		NearestWaterBody: r.NearestWaterBody,
		Distance:         fmt.Sprintf("%.1f m", r.DistanceToWaterMeters),
		RelativeDrop:     drop,
		Level:            r.Level,
		LevelLabel:       r.Level.Label(),
		Description:      r.Level.Description(),
		Narrative:        r.Narrative,
	}
}

// FailureMessage is the user-facing text for a failed assessment.
func FailureMessage(err error) string {
	switch {
	case err == nil:
		return "Erro desconhecido na análise."
	case errors.Is(err, domain.ErrNotConfigured):
		return "Serviço de análise de risco não configurado."
	case errors.Is(err, domain.ErrInvalidGeometry):
		return "Área de análise inválida: " + err.Error()
	case errors.Is(err, domain.ErrMalformedResponse):
		return "Resposta inválida do serviço de risco. Tente novamente."
	default:
		return "Erro ao consultar o serviço de risco: " + err.Error()
	}
}
