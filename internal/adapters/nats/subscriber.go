package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/georisk/georisk/internal/core/domain"
)

// errPoison marks a message that can never be processed.
var errPoison = errors.New("undecodable message")

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber connects to NATS. durable names the JetStream consumer so
// that several auditor replicas share the work.
func NewSubscriber(url, durable string) (*Subscriber, error) {
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
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

// deliver decodes one message and runs handler on it.
func deliver(ctx context.Context, data []byte, handler func(ctx context.Context, a *domain.Assessment) error) error {
	var a domain.Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("%w: %v", errPoison, err)
	}
	return handler(ctx, &a)
}

// SubscribeAssessments delivers every assessment event to handler. Failed
// handlers are redelivered up to three times; undecodable messages are
// terminated.
func (s *Subscriber) SubscribeAssessments(ctx context.Context, handler func(ctx context.Context, a *domain.Assessment) error) error {
	sub, err := s.js.Subscribe(AssessmentSubjects, func(msg *nats.Msg) {
		if err := deliver(ctx, msg.Data, handler); err != nil {
			if errors.Is(err, errPoison) {
				_ = msg.Term()
				return
			}
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(s.durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", AssessmentSubjects, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Conn exposes the underlying connection for health checks.
func (s *Subscriber) Conn() *nats.Conn {
	return s.conn
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
