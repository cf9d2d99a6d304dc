package domain

import "github.com/paulmach/orb"

// Phase is the coordinator's position in its state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseQuerying  Phase = "querying"
	PhaseSucceeded Phase = "settled_success"
	PhaseFailed    Phase = "settled_failed"
)

// SessionState is the tuple owned by a coordinator.
// Point, PendingRadius and Result are replaced, never mutated in place.
type SessionState struct {
	Point         *GeoPoint
	Radius        float64
	PendingRadius *float64 // radius edit waiting for the debounce window
	Generation    uint64
	Phase         Phase
	Result        *RiskResult
	Err           error
}

// InputSource identifies where an input event came from.
type InputSource string

const (
	SourceClick  InputSource = "click"
	SourceSearch InputSource = "search_result"
	SourceManual InputSource = "coordinates"
	SourceRadius InputSource = "radius"
)

// InputEvent is a normalized "set point" or "set radius" event.
type InputEvent struct {
	Source InputSource
	Point  GeoPoint
	Radius float64
}

// PanelKind selects which text panel is visible. Exactly one is shown.
type PanelKind string

const (
	PanelEmpty   PanelKind = "empty"
	PanelLoading PanelKind = "loading"
	PanelResult  PanelKind = "result"
	PanelError   PanelKind = "error"
)

// Panel is the structured text shown next to the map.
type Panel struct {
	Kind             PanelKind `json:"kind"`
	Coordinates      string    `json:"coordinates,omitempty"`
	NearestWaterBody string    `json:"nearest_water_body,omitempty"`
	Distance         string    `json:"distance,omitempty"`
	RelativeDrop     string    `json:"relative_drop,omitempty"`
	Level            RiskLevel `json:"level,omitempty"`
	LevelLabel       string    `json:"level_label,omitempty"`
	Description      string    `json:"description,omitempty"`
	Narrative        string    `json:"narrative,omitempty"`
	Message          string    `json:"message,omitempty"`
}

// Overlay is the render description for the map collaborator.
type Overlay struct {
	Generation  uint64
	Phase       Phase
	Ring        orb.Ring // nil until a point exists
	FillColor   string
	FillOpacity float64
	Panel       Panel
}
