package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/georisk/georisk/internal/core/domain"
)

const (
	// AssessmentStream holds settled assessment events until the auditor acks them.
	AssessmentStream = "GEORISK_ASSESSMENTS"
	// AssessmentSubjects matches every assessment event.
	AssessmentSubjects = "georisk.assessment.>"
)

// assessmentSubject is georisk.assessment.<outcome>.
func assessmentSubject(a *domain.Assessment) string {
	outcome := a.Outcome
	if outcome == "" {
		outcome = "unknown"
	}
	return "georisk.assessment." + outcome
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS, enables JetStream and ensures the
// assessment stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStream(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	cfg := nats.StreamConfig{
		Name:       AssessmentStream,
		Subjects:   []string{AssessmentSubjects},
		Retention:  nats.WorkQueuePolicy,
		MaxAge:     7 * 24 * time.Hour,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// PublishAssessment publishes a settled assessment. The event ID doubles as
// the JetStream message ID so retries are deduplicated.
func (p *Publisher) PublishAssessment(ctx context.Context, a *domain.Assessment) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode assessment: %w", err)
	}
	if _, err := p.js.Publish(assessmentSubject(a), data, nats.Context(ctx), nats.MsgId(a.ID)); err != nil {
		return fmt.Errorf("publish assessment %s: %w", a.ID, err)
	}
	return nil
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
