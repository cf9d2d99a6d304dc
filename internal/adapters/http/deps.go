package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/core/ports"
	"github.com/georisk/georisk/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Assessments *usecases.AssessmentService
	Risk        ports.RiskQuerier    // shared by every session coordinator
	Publisher   ports.EventPublisher // optional
	Session     SessionConfig
	NATS        *nats.Conn
	Storage     fiber.Storage // rate limiter storage; in-memory when nil
	Version     string
}

// SessionConfig is what a new map session starts with.
type SessionConfig struct {
	Coordinator   usecases.CoordinatorConfig
	Center        domain.GeoPoint
	InitialZoom   float64
	RiskTimeout   time.Duration // upper bound for one-shot assessment requests
	PingInterval  time.Duration
	WriteDeadline time.Duration
}

// DefaultSessionConfig centers new sessions on Curitiba.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Coordinator:   usecases.DefaultCoordinatorConfig(),
		Center:        domain.GeoPoint{Lat: -25.43, Lng: -49.27},
		InitialZoom:   12,
		RiskTimeout:   35 * time.Second,
		PingInterval:  30 * time.Second,
		WriteDeadline: 10 * time.Second,
	}
}

// configurable is implemented by risk clients that know whether a backend
// address was provided.
type configurable interface {
	Configured() bool
}
