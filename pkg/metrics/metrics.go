package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the pipeline collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "pixelbridge").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for paint and session durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the pipeline collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "pixelbridge",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors for one bridge process. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	framesReceived   prometheus.Counter
	framesDropped    prometheus.Counter
	invalidPreviews  prometheus.Counter
	messagesTotal    *prometheus.CounterVec
	commandsSent     *prometheus.CounterVec
	intervalReceived prometheus.Gauge
	intervalDropped  prometheus.Gauge
	sessionsTotal    *prometheus.CounterVec
	sessionDuration  prometheus.Histogram
	connected        prometheus.Gauge
	attemptsTotal    *prometheus.CounterVec
	paintDuration    prometheus.Histogram
	paintErrors      prometheus.Counter
}

// New creates and registers the pipeline collectors.
//
// Metrics collected:
//   - pixelbridge_frames_received_total: Preview frames accepted by the display sink
//   - pixelbridge_frames_dropped_total: Preview frames discarded because the sink was full
//   - pixelbridge_invalid_previews_total: Preview payloads that failed to decode
//   - pixelbridge_messages_total: Inbound frames by kind
//   - pixelbridge_commands_sent_total: Control commands written by command
//   - pixelbridge_interval_frames_received / _dropped: Deltas of the last monitor interval
//   - pixelbridge_sessions_total: Finished sessions by result
//   - pixelbridge_session_duration_seconds: Session lifetimes
//   - pixelbridge_connected: 1 while a session is running
//   - pixelbridge_connect_attempts_total: Supervisor attempts by result
//   - pixelbridge_paint_duration_seconds: Actuator paint latency
//   - pixelbridge_paint_errors_total: Actuator failures
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(metrics.WithRegistry(reg))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_received_total",
			Help:        "Preview frames accepted by the display sink",
			ConstLabels: config.ConstLabels,
		}),

		framesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_dropped_total",
			Help:        "Preview frames discarded because the display sink was full",
			ConstLabels: config.ConstLabels,
		}),

		invalidPreviews: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "invalid_previews_total",
			Help:        "Preview payloads that failed to decode",
			ConstLabels: config.ConstLabels,
		}),

		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_total",
			Help:        "Inbound WebSocket frames by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		commandsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commands_sent_total",
			Help:        "Control commands written to the pattern source",
			ConstLabels: config.ConstLabels,
		}, []string{"command"}),

		intervalReceived: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "interval_frames_received",
			Help:        "Frames received during the last monitor interval",
			ConstLabels: config.ConstLabels,
		}),

		intervalDropped: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "interval_frames_dropped",
			Help:        "Frames dropped during the last monitor interval",
			ConstLabels: config.ConstLabels,
		}),

		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sessions_total",
			Help:        "Finished streaming sessions by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "session_duration_seconds",
			Help:        "Lifetime of streaming sessions in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 10, 60, 300, 1800, 3600, 21600}, // 1s to 6h
		}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connected",
			Help:        "1 while a streaming session is running",
			ConstLabels: config.ConstLabels,
		}),

		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connect_attempts_total",
			Help:        "Connection attempts by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		paintDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "paint_duration_seconds",
			Help:        "Time spent painting one frame onto the actuator",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		paintErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "paint_errors_total",
			Help:        "Actuator paint failures",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// =============================================================================
// Recording Functions
// =============================================================================

// FrameReceived records a preview frame accepted by the display sink.
func (m *Metrics) FrameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

// FrameDropped records a preview frame discarded on a full sink.
func (m *Metrics) FrameDropped() {
	if m != nil {
		m.framesDropped.Inc()
	}
}

// InvalidPreview records a preview payload that failed to decode.
func (m *Metrics) InvalidPreview() {
	if m != nil {
		m.invalidPreviews.Inc()
	}
}

// MessageReceived records one inbound frame. kind is an opcode or vendor
// message name and must come from a fixed set.
func (m *Metrics) MessageReceived(kind string) {
	if m != nil {
		m.messagesTotal.WithLabelValues(kind).Inc()
	}
}

// CommandSent records a control command written to the wire.
func (m *Metrics) CommandSent(command string) {
	if m != nil {
		m.commandsSent.WithLabelValues(command).Inc()
	}
}

// ObserveInterval publishes the deltas of one monitor interval.
func (m *Metrics) ObserveInterval(received, dropped uint64) {
	if m != nil {
		m.intervalReceived.Set(float64(received))
		m.intervalDropped.Set(float64(dropped))
	}
}

// SessionStarted marks a session as running.
func (m *Metrics) SessionStarted() {
	if m != nil {
		m.connected.Set(1)
	}
}

// SessionEnded records a finished session.
func (m *Metrics) SessionEnded(result string, lifetime time.Duration) {
	if m != nil {
		m.connected.Set(0)
		m.sessionsTotal.WithLabelValues(result).Inc()
		m.sessionDuration.Observe(lifetime.Seconds())
	}
}

// ConnectAttempt records one supervisor attempt.
func (m *Metrics) ConnectAttempt(result string) {
	if m != nil {
		m.attemptsTotal.WithLabelValues(result).Inc()
	}
}

// ObservePaint records one actuator paint.
func (m *Metrics) ObservePaint(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.paintDuration.Observe(d.Seconds())
	if err != nil {
		m.paintErrors.Inc()
	}
}
