package domain

import (
	"strings"
	"time"
)

// RiskLevel is the three-valued backend assessment.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseRiskLevel accepts the backend's Portuguese values (baixo, medio, alto)
// and their English equivalents, case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "baixo", "low":
		return RiskLow, true
	case "medio", "médio", "medium":
		return RiskMedium, true
	case "alto", "high":
		return RiskHigh, true
	}
	return "", false
}

// Label is the short user-facing name of the level.
func (l RiskLevel) Label() string {
	switch l {
	case RiskLow:
		return "Baixo Risco"
	case RiskMedium:
		return "Risco Médio"
	case RiskHigh:
		return "Alto Risco"
	}
	return ""
}

// Description is the one-line guidance shown under the label.
func (l RiskLevel) Description() string {
	switch l {
	case RiskLow:
		return "Área com baixa probabilidade de alagamento ou deslizamento."
	case RiskMedium:
		return "Área com moderada probabilidade de risco. Atenção recomendada."
	case RiskHigh:
		return "Área com alta probabilidade de risco. Evacuação recomendada."
	}
	return ""
}

// RiskResult is a complete backend assessment. It is never partially filled.
type RiskResult struct {
	Level                 RiskLevel `json:"risk_level"`
	NearestWaterBody      string    `json:"nearest_water_body"`
	DistanceToWaterMeters float64   `json:"distance_to_water_m"`
	RelativeDropMeters    *float64  `json:"relative_drop_m"`
	Narrative             string    `json:"narrative"`
}

// Assessment outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Assessment is the event emitted when a session query settles.
type Assessment struct {
	ID           string      `json:"id"`
	SessionID    string      `json:"session_id"`
	Generation   uint64      `json:"generation"`
	Center       GeoPoint    `json:"center"`
	RadiusMeters float64     `json:"radius_m"`
	Outcome      string      `json:"outcome"`
	Result       *RiskResult `json:"result,omitempty"`
	ErrorKind    string      `json:"error_kind,omitempty"`
	Error        string      `json:"error,omitempty"`
	SettledAt    time.Time   `json:"settled_at"`
}
