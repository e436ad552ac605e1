package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/pixelbridge/pkg/display"
	"github.com/vango-dev/pixelbridge/pkg/metrics"
	"github.com/vango-dev/pixelbridge/pkg/protocol"
	"github.com/vango-dev/pixelbridge/pkg/session"
)

const tracerName = "github.com/vango-dev/pixelbridge/pkg/supervisor"

// ErrDial is matched by errors from failed TCP connects.
var ErrDial = errors.New("supervisor: dial failed")

// Dialer opens the TCP stream to the pattern source. *net.Dialer
// satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config holds configuration for the reconnect supervisor.
type Config struct {
	// Endpoint

	// Address is the host:port of the pattern source.
	// Default: "192.168.4.1:81".
	Address string

	// Origin is sent in the upgrade request.
	// Default: "http://192.168.4.1".
	Origin string

	// Path is the upgrade request path.
	// Default: "/".
	Path string

	// Timeouts

	// ReconnectBackoff is the fixed delay between attempts.
	// Default: 5 seconds.
	ReconnectBackoff time.Duration

	// DialTimeout bounds the TCP connect.
	// Default: 10 seconds.
	DialTimeout time.Duration

	// HandshakeTimeout bounds the upgrade exchange.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// MaxPayload bounds incoming frames.
	// Default: protocol.DefaultMaxPayload.
	MaxPayload int64

	// Session configures each streaming session.
	Session *session.Config
}

// DefaultConfig returns a Config pointing at the pattern source's access
// point address.
func DefaultConfig() *Config {
	return &Config{
		Address:          "192.168.4.1:81",
		Origin:           "http://192.168.4.1",
		Path:             "/",
		ReconnectBackoff: 5 * time.Second,
		DialTimeout:      10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxPayload:       protocol.DefaultMaxPayload,
		Session:          session.DefaultConfig(),
	}
}

// State is the supervisor's current phase.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateBackoff    State = "backoff"
	StateStopped    State = "stopped"
)

// Status is a snapshot of the supervisor for health reporting.
type Status struct {
	State       State          `json:"state"`
	Address     string         `json:"address"`
	Attempts    uint64         `json:"attempts"`
	Sessions    uint64         `json:"sessions"`
	SessionID   string         `json:"session_id,omitempty"`
	Since       time.Time      `json:"since"`
	LastError   string         `json:"last_error,omitempty"`
	LastErrorAt *time.Time     `json:"last_error_at,omitempty"`
	Stats       *session.Stats `json:"stats,omitempty"`
}

// Supervisor keeps a session to the pattern source running, reconnecting
// after every failure.
type Supervisor struct {
	config  *Config
	dialer  Dialer
	queue   *session.ControlQueue
	sink    display.Sink
	base    *slog.Logger
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	rand    io.Reader

	mu          sync.RWMutex
	state       State
	since       time.Time
	attempts    uint64
	sessions    uint64
	current     *session.Session
	lastStats   *session.Stats
	lastErr     error
	lastErrTime time.Time
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger for the supervisor and its sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.base = logger
	}
}

// WithMetrics records attempts and sessions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithTracerProvider traces attempts with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Supervisor) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// WithRand sets the source of handshake nonces and mask keys.
func WithRand(r io.Reader) Option {
	return func(s *Supervisor) {
		s.rand = r
	}
}

// New creates a supervisor. queue and sink are shared by all sessions it
// starts.
func New(cfg *Config, dialer Dialer, queue *session.ControlQueue, sink display.Sink, opts ...Option) *Supervisor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	s := &Supervisor{
		config: cfg,
		dialer: dialer,
		queue:  queue,
		sink:   sink,
		base:   slog.Default(),
		tracer: otel.Tracer(tracerName),
		state:  StateIdle,
		since:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.base.With("component", "supervisor")
	return s
}

// Run connects, streams and reconnects until ctx is canceled. It returns
// ctx.Err(); every other failure is logged and retried after the backoff.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("supervisor started", "address", s.config.Address, "backoff", s.config.ReconnectBackoff)

	for {
		err := s.attempt(ctx)
		if ctx.Err() != nil {
			s.setState(StateStopped)
			s.logger.Info("supervisor stopped")
			return ctx.Err()
		}

		s.recordError(err)
		if session.IsClean(err) {
			s.logger.Info("session closed, reconnecting", "backoff", s.config.ReconnectBackoff)
		} else {
			s.logger.Warn("connection lost, reconnecting", "error", err, "backoff", s.config.ReconnectBackoff)
		}

		s.setState(StateBackoff)
		if !sleep(ctx, s.config.ReconnectBackoff) {
			s.setState(StateStopped)
			s.logger.Info("supervisor stopped")
			return ctx.Err()
		}
	}
}

// attempt performs one dial, handshake and session.
func (s *Supervisor) attempt(ctx context.Context) (err error) {
	s.mu.Lock()
	s.attempts++
	n := s.attempts
	s.mu.Unlock()
	s.setState(StateConnecting)

	ctx, span := s.tracer.Start(ctx, "pixelbridge.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("pixelbridge.address", s.config.Address),
			attribute.Int64("pixelbridge.attempt", int64(n)),
		),
	)
	defer func() {
		if session.IsClean(err) {
			span.SetStatus(codes.Ok, "")
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	conn, err := s.connect(ctx)
	if err != nil {
		s.metrics.ConnectAttempt(resultOf(err))
		return err
	}
	s.metrics.ConnectAttempt("ok")

	sess := session.New(conn, s.queue, s.sink, s.config.Session,
		session.WithLogger(s.base.With("component", "session")),
		session.WithMetrics(s.metrics))
	span.AddEvent("connected", trace.WithAttributes(attribute.String("pixelbridge.session_id", sess.ID())))

	s.mu.Lock()
	s.current = sess
	s.sessions++
	s.mu.Unlock()
	s.setState(StateConnected)
	s.metrics.SessionStarted()

	err = sess.Run(ctx)

	stats := sess.Stats()
	s.mu.Lock()
	s.current = nil
	s.lastStats = &stats
	s.mu.Unlock()
	s.metrics.SessionEnded(resultOf(err), time.Since(sess.StartedAt()))
	span.SetAttributes(
		attribute.Int64("pixelbridge.frames_received", int64(stats.Received)),
		attribute.Int64("pixelbridge.frames_dropped", int64(stats.Dropped)),
	)
	return err
}

// connect dials the source and upgrades the connection.
func (s *Supervisor) connect(ctx context.Context) (*protocol.Conn, error) {
	dialCtx := ctx
	if s.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.config.DialTimeout)
		defer cancel()
	}

	raw, err := s.dialer.DialContext(dialCtx, "tcp", s.config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDial, s.config.Address, err)
	}

	conn, err := protocol.Handshake(raw, protocol.HandshakeOptions{
		Host:       s.config.Address,
		Origin:     s.config.Origin,
		Path:       s.config.Path,
		Rand:       s.rand,
		Timeout:    s.config.HandshakeTimeout,
		MaxPayload: s.config.MaxPayload,
	})
	if err != nil {
		raw.Close()
		return nil, err
	}

	s.logger.Info("connected", "address", s.config.Address, "remote", conn.RemoteAddr())
	return conn, nil
}

// Status returns a snapshot of the supervisor.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:    s.state,
		Address:  s.config.Address,
		Attempts: s.attempts,
		Sessions: s.sessions,
		Since:    s.since,
		Stats:    s.lastStats,
	}
	if s.current != nil {
		stats := s.current.Stats()
		st.SessionID = s.current.ID()
		st.Stats = &stats
	}
	if s.lastErr != nil {
		at := s.lastErrTime
		st.LastError = s.lastErr.Error()
		st.LastErrorAt = &at
	}
	return st
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != state {
		s.state = state
		s.since = time.Now()
	}
}

func (s *Supervisor) recordError(err error) {
	if session.IsClean(err) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.lastErrTime = time.Now()
}

// resultOf maps an attempt error to a bounded metrics label.
func resultOf(err error) string {
	switch {
	case err == nil, errors.Is(err, session.ErrConnectionClosing):
		return "closed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrDial):
		return "dial"
	case errors.Is(err, protocol.ErrHandshakeRejected):
		return "handshake"
	case errors.Is(err, session.ErrTransport):
		return "transport"
	case errors.Is(err, protocol.ErrProtocol):
		return "protocol"
	default:
		return "error"
	}
}

// sleep waits for d or ctx, reporting false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
