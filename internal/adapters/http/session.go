package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/core/usecases"
	"github.com/georisk/georisk/internal/pkg/metrics"
)

// Client -> server messages:
//
//	{"type":"click","lat":-25.43,"lng":-49.27}
//	{"type":"search_result","lat":-25.43,"lng":-49.27,"place_name":"Curitiba"}
//	{"type":"coordinates","text":"-25.43, -49.27"}
//	{"type":"radius","meters":900}
type inboundEnvelope struct {
	Type string `json:"type" validate:"required,oneof=click search_result coordinates radius"`
}

type pointInput struct {
	Lat       *float64 `json:"lat" validate:"required,latitude"`
	Lng       *float64 `json:"lng" validate:"required,longitude"`
	PlaceName string   `json:"place_name" validate:"max=512"`
}

type coordinatesInput struct {
	Text string `json:"text" validate:"required,max=64"`
}

type radiusInput struct {
	Meters *float64 `json:"meters" validate:"required,gt=0"`
}

// Server -> client messages.
type sessionMessage struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Center     domain.GeoPoint `json:"center"`
	Zoom       float64         `json:"zoom"`
	Radius     float64         `json:"radius"`
	MinRadius  float64         `json:"min_radius"`
	DebounceMS int64           `json:"debounce_ms"`
}

type cameraMessage struct {
	Type   string          `json:"type"`
	Center domain.GeoPoint `json:"center"`
	Zoom   float64         `json:"zoom"`
}

type overlayMessage struct {
	Type string `json:"type"`
	overlayView
}

type validationErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var errInvalidMessage = errors.New("invalid message")

// parseInput validates one client message and normalizes it into an input
// event. Invalid input never reaches the coordinator.
func parseInput(data []byte) (domain.InputEvent, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.InputEvent{}, fmt.Errorf("%w: not valid JSON", errInvalidMessage)
	}
	if err := validate.Struct(env); err != nil {
		return domain.InputEvent{}, fmt.Errorf("%w: %s", errInvalidMessage, validationMessage(err))
	}

	switch domain.InputSource(env.Type) {
	case domain.SourceClick, domain.SourceSearch:
		var in pointInput
		if err := json.Unmarshal(data, &in); err != nil {
			return domain.InputEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidPoint, err)
		}
		if err := validate.Struct(in); err != nil {
			return domain.InputEvent{}, fmt.Errorf("%w: %s", domain.ErrInvalidPoint, validationMessage(err))
		}
		return domain.InputEvent{
			Source: domain.InputSource(env.Type),
			Point:  domain.GeoPoint{Lat: *in.Lat, Lng: *in.Lng},
		}, nil

	case domain.SourceManual:
		var in coordinatesInput
		if err := json.Unmarshal(data, &in); err != nil {
			return domain.InputEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidPoint, err)
		}
		if err := validate.Struct(in); err != nil {
			return domain.InputEvent{}, fmt.Errorf("%w: %s", domain.ErrInvalidPoint, validationMessage(err))
		}
		p, err := domain.ParseLatLng(in.Text)
		if err != nil {
			return domain.InputEvent{}, err
		}
		return domain.InputEvent{Source: domain.SourceManual, Point: p}, nil

	default:
		var in radiusInput
		if err := json.Unmarshal(data, &in); err != nil {
			return domain.InputEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidRadius, err)
		}
		if err := validate.Struct(in); err != nil {
			return domain.InputEvent{}, fmt.Errorf("%w: %s", domain.ErrInvalidRadius, validationMessage(err))
		}
		return domain.InputEvent{Source: domain.SourceRadius, Radius: *in.Meters}, nil
	}
}

// wsConn is the part of *websocket.Conn a session needs.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

// Session is one open map view. It is the coordinator's input source and
// its map sink.
type Session struct {
	id     string
	conn   wsConn
	cfg    SessionConfig
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	handler func(domain.InputEvent) error
}

func newSession(conn wsConn, cfg SessionConfig, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("session_id", id),
	}
}

// Subscribe implements ports.InputSource.
func (s *Session) Subscribe(handler func(domain.InputEvent) error) func() {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.handler = nil
		s.mu.Unlock()
	}
}

// Recenter implements ports.MapSink.
func (s *Session) Recenter(ctx context.Context, center domain.GeoPoint, zoom float64) error {
	return s.send(cameraMessage{Type: "camera", Center: center, Zoom: zoom})
}

// Render implements ports.MapSink.
func (s *Session) Render(ctx context.Context, ov domain.Overlay) error {
	return s.send(overlayMessage{Type: "overlay", overlayView: toOverlayView(ov)})
}

func (s *Session) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.cfg.WriteDeadline > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteDeadline))
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.cfg.WriteDeadline > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteDeadline))
	}
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// handleMessage parses one client message and hands it to the subscriber.
// Validation problems are reported back to the client only.
func (s *Session) handleMessage(data []byte) {
	ev, err := parseInput(data)
	if err == nil {
		s.mu.Lock()
		h := s.handler
		s.mu.Unlock()
		if h == nil {
			return
		}
		err = h(ev)
	}
	if err == nil || errors.Is(err, domain.ErrSessionClosed) {
		return
	}

	s.logger.Debug("input rejected", "error", err)
	_ = s.send(validationErrorMessage{Type: "validation_error", Message: err.Error()})
}

// serve runs the session until the client disconnects.
func (s *Session) serve(deps *Dependencies) {
	cfg := s.cfg

	opts := []usecases.CoordinatorOption{
		usecases.WithSessionID(s.id),
		usecases.WithConfig(cfg.Coordinator),
		usecases.WithLogger(s.logger),
	}
	if deps.Publisher != nil {
		opts = append(opts, usecases.WithPublisher(deps.Publisher))
	}
	coord := usecases.NewCoordinator(deps.Risk, s, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()
	s.logger.Info("map session opened")

	if err := s.send(sessionMessage{
		Type:       "session",
		ID:         coord.SessionID(),
		Center:     cfg.Center,
		Zoom:       cfg.InitialZoom,
		Radius:     cfg.Coordinator.DefaultRadius,
		MinRadius:  cfg.Coordinator.MinRadius,
		DebounceMS: cfg.Coordinator.Debounce.Milliseconds(),
	}); err != nil {
		s.logger.Warn("session greeting failed", "error", err)
		return
	}

	if err := coord.Start(ctx); err != nil {
		s.logger.Error("coordinator start failed", "error", err)
		return
	}
	defer coord.Close()
	if err := coord.Attach(s); err != nil {
		return
	}

	// Keep-alive ping
	done := make(chan struct{})
	defer close(done)
	if cfg.PingInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.PingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := s.ping(); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()
	}

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleMessage(msg)
	}

	stats := coord.Stats()
	s.logger.Info("map session closed", "queries", stats.Issued, "superseded", stats.Discarded)
}

// SessionHandler upgrades to a WebSocket map session. Each connection gets
// its own coordinator.
func SessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		newSession(c, deps.Session, slog.Default()).serve(deps)
	}
}
