package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/pixelbridge/pkg/display"
	"github.com/vango-dev/pixelbridge/pkg/metrics"
	"github.com/vango-dev/pixelbridge/pkg/protocol"
)

// FrameConn is the upgraded connection a session runs on.
// *protocol.Conn satisfies it.
type FrameConn interface {
	ReadFrame() (*protocol.Frame, error)
	WriteFrame(op protocol.Opcode, payload []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Stats is a snapshot of the session counters.
type Stats struct {
	Received          uint64 `json:"received"`           // Preview frames accepted by the sink
	Dropped           uint64 `json:"dropped"`            // Preview frames discarded on a full sink
	InvalidPreviews   uint64 `json:"invalid_previews"`   // Preview payloads that failed to decode
	Pongs             uint64 `json:"pongs"`              // Pong frames observed
	Texts             uint64 `json:"texts"`              // Text frames observed
	CommandsSent      uint64 `json:"commands_sent"`      // Control frames written
	SubscribeRequests uint64 `json:"subscribe_requests"` // Subscribe commands queued by the monitor
}

type counters struct {
	decoded    atomic.Uint64
	received   atomic.Uint64
	dropped    atomic.Uint64
	invalid    atomic.Uint64
	pongs      atomic.Uint64
	texts      atomic.Uint64
	sent       atomic.Uint64
	subscribes atomic.Uint64
}

// Session runs one streaming connection: the send, receive and monitor
// loops over a single FrameConn.
type Session struct {
	id      string
	conn    FrameConn
	queue   *ControlQueue
	sink    display.Sink
	config  *Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	stats     counters
	startedAt time.Time

	// newTicker is replaced in tests.
	newTicker func(time.Duration) (<-chan time.Time, func())
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The session adds its ID to every record.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics records session activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// New creates a session. The session takes ownership of conn and closes it
// when Run returns.
func New(conn FrameConn, queue *ControlQueue, sink display.Sink, cfg *Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Session{
		id:        uuid.NewString(),
		conn:      conn,
		queue:     queue,
		sink:      sink,
		config:    cfg.normalized(),
		logger:    slog.Default().With("component", "session"),
		startedAt: time.Now(),
		newTicker: realTicker,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Received:          s.stats.received.Load(),
		Dropped:           s.stats.dropped.Load(),
		InvalidPreviews:   s.stats.invalid.Load(),
		Pongs:             s.stats.pongs.Load(),
		Texts:             s.stats.texts.Load(),
		CommandsSent:      s.stats.sent.Load(),
		SubscribeRequests: s.stats.subscribes.Load(),
	}
}

type loopResult struct {
	loop string
	err  error
}

// Run starts the three session loops and blocks until the first of them
// returns. It then tears the session down, waits for the remaining loops and
// returns the first loop's result:
//
//   - ErrConnectionClosing after a Close command was written
//   - *TransportError or *protocol.ProtocolError on failure
//   - ctx.Err() when ctx is canceled
func (s *Session) Run(ctx context.Context) error {
	// Commands left over from a previous session must not reach this
	// connection.
	if n := s.queue.Drain(); n > 0 {
		s.logger.Debug("discarded stale control commands", "count", n)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loops := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"send", s.sendLoop},
		{"receive", s.receiveLoop},
		{"monitor", s.monitorLoop},
	}

	results := make(chan loopResult, len(loops))
	for _, l := range loops {
		go func(name string, fn func(context.Context) error) {
			results <- loopResult{loop: name, err: fn(ctx)}
		}(l.name, l.fn)
	}

	s.logger.Info("session started")

	first := <-results

	// Unblock the others: the context stops queue waits and the ticker,
	// closing the connection stops a pending read.
	cancel()
	s.conn.Close()
	for i := 1; i < len(loops); i++ {
		<-results
	}

	stats := s.Stats()
	attrs := []any{
		"loop", first.loop,
		"duration", time.Since(s.startedAt).Round(time.Millisecond),
		"received", stats.Received,
		"dropped", stats.Dropped,
	}
	if IsClean(first.err) {
		s.logger.Info("session ended", attrs...)
	} else {
		s.logger.Warn("session failed", append(attrs, "error", first.err)...)
	}
	return first.err
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
