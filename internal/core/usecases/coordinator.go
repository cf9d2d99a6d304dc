package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/core/ports"
	"github.com/georisk/georisk/internal/pkg/geospatial"
	"github.com/georisk/georisk/internal/pkg/metrics"
	"github.com/georisk/georisk/internal/pkg/telemetry"
)

var errNotStarted = errors.New("coordinator not started")

// CoordinatorConfig tunes a session coordinator.
type CoordinatorConfig struct {
	Debounce      time.Duration // quiet period after the last radius edit
	DefaultRadius float64       // meters
	MinRadius     float64       // meters
	Zoom          float64       // camera zoom used when recentering
}

// DefaultCoordinatorConfig mirrors the map view defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Debounce:      400 * time.Millisecond,
		DefaultRadius: 1000,
		MinRadius:     1,
		Zoom:          14,
	}
}

// CoordinatorStats counts started and superseded queries.
type CoordinatorStats struct {
	Issued    uint64
	Discarded uint64
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clk clock.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clk }
}

// WithPublisher emits an assessment event for every settled query.
func WithPublisher(p ports.EventPublisher) CoordinatorOption {
	return func(c *Coordinator) { c.publisher = p }
}

// WithLogger sets the base logger. The session ID is added to it.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// WithSessionID fixes the session ID instead of generating one.
func WithSessionID(id string) CoordinatorOption {
	return func(c *Coordinator) { c.sessionID = id }
}

// WithConfig overrides DefaultCoordinatorConfig.
func WithConfig(cfg CoordinatorConfig) CoordinatorOption {
	return func(c *Coordinator) { c.cfg = cfg }
}

// Coordinator turns point and radius input into an ordered sequence of risk
// queries for one map session. All session state is owned by a single loop
// goroutine; public methods hand events to the loop and wait for them to be
// handled. A response is applied only if its generation is still current.
type Coordinator struct {
	querier   ports.RiskQuerier
	sink      ports.MapSink
	publisher ports.EventPublisher
	clock     clock.Clock
	cfg       CoordinatorConfig
	logger    *slog.Logger
	tracer    trace.Tracer
	sessionID string

	// loop-owned
	ctx                 context.Context
	state               domain.SessionState
	timer               *clock.Timer
	timerSeq            uint64
	notConfigured       error
	notConfiguredLogged bool
	stats               CoordinatorStats

	mu       sync.Mutex
	detached bool
	detach   []func()

	events    chan envelope
	done      chan struct{}
	stopped   chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
}

type envelope struct {
	ev  any
	ack chan error
}

type (
	pointChanged struct {
		point  domain.GeoPoint
		source domain.InputSource
	}
	radiusChanged struct{ meters float64 }
	radiusSettled struct{ seq uint64 }
	querySettled  struct {
		gen    uint64
		result *domain.RiskResult
		err    error
	}
	inspect func()
)

// NewCoordinator creates an idle coordinator. Call Start before sending input.
func NewCoordinator(querier ports.RiskQuerier, sink ports.MapSink, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		querier: querier,
		sink:    sink,
		clock:   clock.New(),
		cfg:     DefaultCoordinatorConfig(),
		tracer:  otel.Tracer(telemetry.TracerCoordinator),
		events:  make(chan envelope),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessionID == "" {
		c.sessionID = uuid.NewString()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("session_id", c.sessionID)
	c.state = domain.SessionState{Radius: c.cfg.DefaultRadius, Phase: domain.PhaseIdle}
	return c
}

// SessionID identifies the session in logs and assessment events.
func (c *Coordinator) SessionID() string { return c.sessionID }

// Start launches the event loop and renders the idle overlay. Cancelling ctx
// tears the session down like Close.
func (c *Coordinator) Start(ctx context.Context) error {
	select {
	case <-c.done:
		return domain.ErrSessionClosed
	default:
	}
	c.startOnce.Do(func() {
		c.ctx = ctx
		c.started.Store(true)
		go c.loop(ctx)
	})
	return nil
}

// SetPoint replaces the point of interest and starts a query immediately.
// Search results and typed coordinates also recenter the camera.
func (c *Coordinator) SetPoint(p domain.GeoPoint, source domain.InputSource) error {
	if err := p.Validate(); err != nil {
		return err
	}
	switch source {
	case domain.SourceClick, domain.SourceSearch, domain.SourceManual:
	default:
		return fmt.Errorf("%w: unknown point source %q", domain.ErrInvalidPoint, source)
	}
	return c.dispatch(pointChanged{point: p, source: source})
}

// SetRadius records a radius edit. The query runs once no further edit has
// arrived for the debounce period.
func (c *Coordinator) SetRadius(meters float64) error {
	if math.IsNaN(meters) || math.IsInf(meters, 0) {
		return fmt.Errorf("%w: radius must be a finite number", domain.ErrInvalidRadius)
	}
	if meters < c.cfg.MinRadius {
		return fmt.Errorf("%w: radius %g is below the minimum of %g m", domain.ErrInvalidRadius, meters, c.cfg.MinRadius)
	}
	return c.dispatch(radiusChanged{meters: meters})
}

// HandleInput routes a normalized input event. It is the handler given to
// attached input sources.
func (c *Coordinator) HandleInput(ev domain.InputEvent) error {
	if ev.Source == domain.SourceRadius {
		return c.SetRadius(ev.Radius)
	}
	return c.SetPoint(ev.Point, ev.Source)
}

// Attach subscribes the coordinator to an input source until Close.
func (c *Coordinator) Attach(src ports.InputSource) error {
	unsubscribe := src.Subscribe(c.HandleInput)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		unsubscribe()
		return domain.ErrSessionClosed
	}
	c.detach = append(c.detach, unsubscribe)
	return nil
}

// Snapshot returns a copy of the session state.
func (c *Coordinator) Snapshot() domain.SessionState {
	var s domain.SessionState
	if err := c.dispatch(inspect(func() { s = c.state })); err != nil {
		c.waitStopped()
		return c.state
	}
	return s
}

// Stats returns the issued and discarded query counters.
func (c *Coordinator) Stats() CoordinatorStats {
	var s CoordinatorStats
	if err := c.dispatch(inspect(func() { s = c.stats })); err != nil {
		c.waitStopped()
		return c.stats
	}
	return s
}

// Close cancels a pending radius timer, detaches every input source and stops
// the loop. Queries still in flight finish but their results are dropped.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	if c.started.Load() {
		<-c.stopped
	} else {
		c.teardown()
	}
	return nil
}

func (c *Coordinator) waitStopped() {
	if c.started.Load() {
		<-c.stopped
	}
}

func (c *Coordinator) dispatch(ev any) error {
	if !c.started.Load() {
		select {
		case <-c.done:
			return domain.ErrSessionClosed
		default:
			return errNotStarted
		}
	}

	env := envelope{ev: ev, ack: make(chan error, 1)}
	select {
	case c.events <- env:
	case <-c.done:
		return domain.ErrSessionClosed
	case <-c.stopped:
		return domain.ErrSessionClosed
	}

	select {
	case err := <-env.ack:
		return err
	case <-c.stopped:
		return domain.ErrSessionClosed
	}
}

func (c *Coordinator) loop(ctx context.Context) {
	defer close(c.stopped)
	defer c.teardown()

	c.render()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case env := <-c.events:
			select {
			case <-c.done:
				env.ack <- domain.ErrSessionClosed
				return
			default:
			}
			env.ack <- c.handle(env.ev)
		}
	}
}

func (c *Coordinator) handle(ev any) error {
	switch e := ev.(type) {
	case pointChanged:
		c.onPoint(e)
	case radiusChanged:
		c.onRadius(e)
	case radiusSettled:
		c.onRadiusSettled(e)
	case querySettled:
		c.onQuerySettled(e)
	case inspect:
		e()
	default:
		return fmt.Errorf("unknown coordinator event %T", ev)
	}
	return nil
}

func (c *Coordinator) onPoint(e pointChanged) {
	c.cancelDebounce()
	if c.state.PendingRadius != nil {
		c.state.Radius = *c.state.PendingRadius
		c.state.PendingRadius = nil
	}

	p := e.point
	c.state.Point = &p

	if e.source == domain.SourceSearch || e.source == domain.SourceManual {
		if err := c.sink.Recenter(c.ctx, p, c.cfg.Zoom); err != nil {
			c.logger.Warn("recenter failed", "error", err)
		}
	}

	c.startQuery("point")
}

func (c *Coordinator) onRadius(e radiusChanged) {
	r := e.meters
	c.state.PendingRadius = &r

	if c.timer != nil {
		c.timer.Stop()
		metrics.DebounceRestarts.Inc()
	}
	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.clock.AfterFunc(c.cfg.Debounce, func() {
		_ = c.dispatch(radiusSettled{seq: seq})
	})
}

func (c *Coordinator) onRadiusSettled(e radiusSettled) {
	if c.timer == nil || e.seq != c.timerSeq {
		return
	}
	c.timer = nil
	if c.state.PendingRadius == nil {
		return
	}
	c.state.Radius = *c.state.PendingRadius
	c.state.PendingRadius = nil

	if c.state.Point == nil {
		c.logger.Debug("radius adopted without a point", "radius_m", c.state.Radius)
		return
	}
	c.startQuery("radius")
}

func (c *Coordinator) cancelDebounce() {
	if c.timer == nil {
		return
	}
	c.timer.Stop()
	c.timer = nil
	c.timerSeq++
}

func (c *Coordinator) startQuery(trigger string) {
	c.state.Generation++
	gen := c.state.Generation

	if c.notConfigured != nil {
		c.settleFailed(gen, c.notConfigured)
		return
	}

	ring, err := geospatial.Circle(*c.state.Point, c.state.Radius)
	if err != nil {
		c.settleFailed(gen, err)
		return
	}

	c.state.Phase = domain.PhaseQuerying
	c.state.Result = nil
	c.state.Err = nil
	c.stats.Issued++
	metrics.QueriesIssued.WithLabelValues(trigger).Inc()
	c.logger.Debug("query started", "generation", gen, "trigger", trigger, "radius_m", c.state.Radius)
	c.render()

	go c.runQuery(gen, ring)
}

func (c *Coordinator) runQuery(gen uint64, ring orb.Ring) {
	ctx, span := c.tracer.Start(context.WithoutCancel(c.ctx), "coordinator.query",
		trace.WithAttributes(
			attribute.String("session.id", c.sessionID),
			attribute.Int64("query.generation", int64(gen)),
		))
	res, err := c.querier.Query(ctx, ring)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	_ = c.dispatch(querySettled{gen: gen, result: res, err: err})
}

func (c *Coordinator) onQuerySettled(e querySettled) {
	if e.gen != c.state.Generation {
		c.stats.Discarded++
		metrics.SupersededResponses.Inc()
		c.logger.Debug("superseded response dropped", "generation", e.gen, "current", c.state.Generation)
		return
	}

	if e.err == nil && e.result == nil {
		e.err = fmt.Errorf("%w: empty result", domain.ErrMalformedResponse)
	}
	if e.err != nil {
		if errors.Is(e.err, domain.ErrNotConfigured) {
			c.notConfigured = e.err
		}
		c.settleFailed(e.gen, e.err)
		return
	}

	c.state.Phase = domain.PhaseSucceeded
	c.state.Result = e.result
	c.state.Err = nil
	c.logger.Info("assessment settled", "generation", e.gen, "risk_level", e.result.Level)
	c.render()
	c.publish(domain.OutcomeSuccess)
}

func (c *Coordinator) settleFailed(gen uint64, err error) {
	c.state.Phase = domain.PhaseFailed
	c.state.Result = nil
	c.state.Err = err

	kind := domain.ErrorKind(err)
	metrics.SettledFailures.WithLabelValues(kind).Inc()
	switch kind {
	case "not_configured":
		if !c.notConfiguredLogged {
			c.logger.Error("risk backend not configured", "generation", gen, "error", err)
			c.notConfiguredLogged = true
		}
	case "malformed":
		c.logger.Error("malformed risk response", "generation", gen, "kind", kind, "error", err)
	default:
		c.logger.Warn("assessment failed", "generation", gen, "kind", kind, "error", err)
	}

	c.render()
	c.publish(domain.OutcomeFailed)
}

func (c *Coordinator) render() {
	if err := c.sink.Render(c.ctx, Present(c.state)); err != nil {
		c.logger.Warn("render failed", "generation", c.state.Generation, "error", err)
	}
}

func (c *Coordinator) publish(outcome string) {
	if c.publisher == nil || c.state.Point == nil {
		return
	}
	a := &domain.Assessment{
		ID:           uuid.NewString(),
		SessionID:    c.sessionID,
		Generation:   c.state.Generation,
		Center:       *c.state.Point,
		RadiusMeters: c.state.Radius,
		Outcome:      outcome,
		Result:       c.state.Result,
		ErrorKind:    domain.ErrorKind(c.state.Err),
		SettledAt:    c.clock.Now().UTC(),
	}
	if c.state.Err != nil {
		a.Error = c.state.Err.Error()
	}

	ctx := context.WithoutCancel(c.ctx)
	go func() {
		if err := c.publisher.PublishAssessment(ctx, a); err != nil {
			c.logger.Warn("publish assessment failed", "id", a.ID, "error", err)
		}
	}()
}

func (c *Coordinator) teardown() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.timerSeq++
	}

	c.mu.Lock()
	detach := c.detach
	c.detach = nil
	c.detached = true
	c.mu.Unlock()

	for _, unsubscribe := range detach {
		unsubscribe()
	}
}
