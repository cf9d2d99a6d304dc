package ports

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/georisk/georisk/internal/core/domain"
)

// RiskQuerier performs one risk backend round trip for a closed ring.
type RiskQuerier interface {
	Query(ctx context.Context, ring orb.Ring) (*domain.RiskResult, error)
}

// MapSink receives camera and overlay commands for the map collaborator.
type MapSink interface {
	Recenter(ctx context.Context, center domain.GeoPoint, zoom float64) error
	Render(ctx context.Context, overlay domain.Overlay) error
}

// InputSource emits normalized user input events. The returned function
// detaches the handler.
type InputSource interface {
	Subscribe(handler func(domain.InputEvent) error) (unsubscribe func())
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishAssessment(ctx context.Context, a *domain.Assessment) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeAssessments(ctx context.Context, handler func(ctx context.Context, a *domain.Assessment) error) error
}
