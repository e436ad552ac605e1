package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/pixelbridge/internal/errors"
	"github.com/vango-dev/pixelbridge/internal/logging"
	"github.com/vango-dev/pixelbridge/pkg/display"
	"github.com/vango-dev/pixelbridge/pkg/protocol"
	"github.com/vango-dev/pixelbridge/pkg/session"
	"github.com/vango-dev/pixelbridge/pkg/supervisor"
)

const (
	// ConfigFileName is the name of the configuration file looked up in the
	// working directory.
	ConfigFileName = "pixelbridge.yaml"

	// DefaultMetricsAddress is where the HTTP observability endpoint listens.
	DefaultMetricsAddress = ":9090"
)

// Actuator names.
const (
	ActuatorLog      = "log"
	ActuatorTerminal = "terminal"
	ActuatorNone     = "none"
)

// Config is the complete pixelbridge.yaml configuration.
type Config struct {
	// Source is the pattern source endpoint.
	Source SourceConfig `yaml:"source"`

	// Grid describes the physical LED grid.
	Grid GridConfig `yaml:"grid"`

	// Session tunes each streaming session.
	Session SessionConfig `yaml:"session"`

	// Supervisor tunes reconnection.
	Supervisor SupervisorConfig `yaml:"supervisor"`

	// Display selects and tunes the actuator.
	Display DisplayConfig `yaml:"display"`

	// Metrics configures the HTTP observability endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SourceConfig is the pattern source endpoint.
type SourceConfig struct {
	// Address is host:port of the pattern source.
	Address string `yaml:"address"`

	// Origin is sent with the WebSocket upgrade.
	Origin string `yaml:"origin"`

	// Path is the upgrade request path.
	Path string `yaml:"path"`

	// MaxPayload bounds incoming WebSocket frames, in bytes.
	MaxPayload int64 `yaml:"maxPayload"`
}

// GridConfig describes the LED grid.
type GridConfig struct {
	Pixels  int `yaml:"pixels"`
	Columns int `yaml:"columns"`
}

// SessionConfig mirrors session.Config.
type SessionConfig struct {
	ControlQueueDepth    int      `yaml:"controlQueueDepth"`
	MonitorInterval      Duration `yaml:"monitorInterval"`
	MinFramesPerInterval uint64   `yaml:"minFramesPerInterval"`
	SampleEvery          uint64   `yaml:"sampleEvery"`
	ReadIdleTimeout      Duration `yaml:"readIdleTimeout"`
	WriteTimeout         Duration `yaml:"writeTimeout"`
}

// SupervisorConfig holds reconnection timing.
type SupervisorConfig struct {
	ReconnectBackoff Duration `yaml:"reconnectBackoff"`
	DialTimeout      Duration `yaml:"dialTimeout"`
	HandshakeTimeout Duration `yaml:"handshakeTimeout"`
}

// DisplayConfig selects the actuator.
type DisplayConfig struct {
	// QueueDepth is the capacity of the display sink. With one slot an
	// undelivered frame stays put and newer frames are dropped until the
	// actuator takes it.
	QueueDepth int `yaml:"queueDepth"`

	// Actuator is one of log, terminal or none.
	Actuator string `yaml:"actuator"`

	// RestartDelay is the pause after a failed paint.
	RestartDelay Duration `yaml:"restartDelay"`
}

// MetricsConfig configures the HTTP endpoint. An empty address disables it.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// New creates a new Config with default values.
func New() *Config {
	sup := supervisor.DefaultConfig()
	sess := session.DefaultConfig()
	return &Config{
		Source: SourceConfig{
			Address:    sup.Address,
			Origin:     sup.Origin,
			Path:       sup.Path,
			MaxPayload: sup.MaxPayload,
		},
		Grid: GridConfig{
			Pixels:  sess.GridPixels,
			Columns: display.DefaultColumns,
		},
		Session: SessionConfig{
			ControlQueueDepth:    sess.ControlQueueDepth,
			MonitorInterval:      Duration(sess.MonitorInterval),
			MinFramesPerInterval: sess.MinFramesPerInterval,
			SampleEvery:          sess.SampleEvery,
			ReadIdleTimeout:      Duration(sess.ReadIdleTimeout),
			WriteTimeout:         Duration(sess.WriteTimeout),
		},
		Supervisor: SupervisorConfig{
			ReconnectBackoff: Duration(sup.ReconnectBackoff),
			DialTimeout:      Duration(sup.DialTimeout),
			HandshakeTimeout: Duration(sup.HandshakeTimeout),
		},
		Display: DisplayConfig{
			QueueDepth:   display.DefaultQueueDepth,
			Actuator:     ActuatorLog,
			RestartDelay: Duration(display.DefaultRestartDelay),
		},
		Metrics: MetricsConfig{
			Address: DefaultMetricsAddress,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// Load reads pixelbridge.yaml from dir. A missing file is not an error;
// the defaults are returned instead.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// LoadFile reads configuration from the specified file path. Keys left out
// of the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No file at " + path + ".")
		}
		return nil, errors.New(errors.CodeConfigParse).Wrap(err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected. When the
// file sets source.address but not source.origin, the origin follows the
// address host.
func Parse(data []byte) (*Config, error) {
	cfg := New()
	cfg.Source.Origin = ""
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.New(errors.CodeConfigParse).Wrap(err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

// SetSource points the bridge at addr and derives the upgrade origin from
// its host.
func (c *Config) SetSource(addr string) {
	c.Source.Address = addr
	c.Source.Origin = ""
	c.applyDefaults()
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in values that an explicit empty key would otherwise
// leave unusable.
func (c *Config) applyDefaults() {
	if c.Source.Origin == "" && c.Source.Address != "" {
		host, _, err := net.SplitHostPort(c.Source.Address)
		if err == nil {
			c.Source.Origin = "http://" + host
		}
	}
	if c.Source.Path == "" {
		c.Source.Path = "/"
	}
	if c.Source.MaxPayload == 0 {
		c.Source.MaxPayload = protocol.DefaultMaxPayload
	}
	if c.Display.Actuator == "" {
		c.Display.Actuator = ActuatorLog
	}
	c.Display.Actuator = strings.ToLower(c.Display.Actuator)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = logging.FormatText
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validateHostPort(c.Source.Address); err != nil {
		return errors.New(errors.CodeInvalidAddress).WithField("source.address").Wrap(err)
	}
	if !strings.HasPrefix(c.Source.Path, "/") {
		return errors.New(errors.CodeInvalidAddress).WithField("source.path").
			WithDetail("The upgrade path must start with a slash.")
	}

	if c.Grid.Pixels < 1 || c.Grid.Columns < 1 || c.Grid.Pixels%c.Grid.Columns != 0 {
		return errors.New(errors.CodeInvalidGrid).WithField("grid").
			WithDetail(fmt.Sprintf("Got %d pixels in %d columns. The pixel count must be a positive multiple of the column count.",
				c.Grid.Pixels, c.Grid.Columns))
	}

	// A preview frame for the whole grid is one tag byte plus three bytes
	// per pixel.
	if need := int64(1 + 3*c.Grid.Pixels); c.Source.MaxPayload < need {
		return errors.New(errors.CodeInvalidPayload).WithField("source.maxPayload").
			WithDetail(fmt.Sprintf("A %d pixel grid needs at least %d bytes.", c.Grid.Pixels, need))
	}

	for _, q := range []struct {
		field string
		depth int
	}{
		{"session.controlQueueDepth", c.Session.ControlQueueDepth},
		{"display.queueDepth", c.Display.QueueDepth},
	} {
		if q.depth < 1 {
			return errors.New(errors.CodeInvalidQueue).WithField(q.field)
		}
	}

	positive := []struct {
		field string
		d     Duration
	}{
		{"session.monitorInterval", c.Session.MonitorInterval},
		{"supervisor.reconnectBackoff", c.Supervisor.ReconnectBackoff},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return errors.New(errors.CodeInvalidDuration).WithField(p.field).
				WithDetail("Must be greater than zero, got " + p.d.String() + ".")
		}
	}
	nonNegative := []struct {
		field string
		d     Duration
	}{
		{"session.readIdleTimeout", c.Session.ReadIdleTimeout},
		{"session.writeTimeout", c.Session.WriteTimeout},
		{"supervisor.dialTimeout", c.Supervisor.DialTimeout},
		{"supervisor.handshakeTimeout", c.Supervisor.HandshakeTimeout},
		{"display.restartDelay", c.Display.RestartDelay},
	}
	for _, n := range nonNegative {
		if n.d < 0 {
			return errors.New(errors.CodeInvalidDuration).WithField(n.field).
				WithDetail("Must not be negative, got " + n.d.String() + ".")
		}
	}

	switch c.Display.Actuator {
	case ActuatorLog, ActuatorTerminal, ActuatorNone:
	default:
		return errors.New(errors.CodeUnknownActuator).WithField("display.actuator").
			WithDetail(fmt.Sprintf("Got %q.", c.Display.Actuator))
	}

	if c.Metrics.Address != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
			return errors.New(errors.CodeInvalidAddress).WithField("metrics.address").Wrap(err).
				WithDetail("The metrics address must be host:port or :port, for example :9090.").
				WithSuggestion("Set metrics.address or pass --metrics-addr; an empty value disables the endpoint")
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.FromError(err, errors.CodeInvalidLogLevel).WithField("log.level")
	}
	if !logging.ValidFormat(c.Log.Format) {
		return errors.New(errors.CodeInvalidLogFormat).WithField("log.format").
			WithDetail(fmt.Sprintf("Got %q.", c.Log.Format))
	}
	return nil
}

// validateHostPort requires a non-empty host and a numeric port.
func validateHostPort(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "" {
		return fmt.Errorf("missing host in %q", addr)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

// SessionConfig converts the session section for the session package.
func (c *Config) SessionConfig() *session.Config {
	return &session.Config{
		GridPixels:           c.Grid.Pixels,
		ControlQueueDepth:    c.Session.ControlQueueDepth,
		MonitorInterval:      c.Session.MonitorInterval.Std(),
		MinFramesPerInterval: c.Session.MinFramesPerInterval,
		SampleEvery:          c.Session.SampleEvery,
		ReadIdleTimeout:      c.Session.ReadIdleTimeout.Std(),
		WriteTimeout:         c.Session.WriteTimeout.Std(),
	}
}

// SupervisorConfig converts the source and supervisor sections.
func (c *Config) SupervisorConfig() *supervisor.Config {
	return &supervisor.Config{
		Address:          c.Source.Address,
		Origin:           c.Source.Origin,
		Path:             c.Source.Path,
		ReconnectBackoff: c.Supervisor.ReconnectBackoff.Std(),
		DialTimeout:      c.Supervisor.DialTimeout.Std(),
		HandshakeTimeout: c.Supervisor.HandshakeTimeout.Std(),
		MaxPayload:       c.Source.MaxPayload,
		Session:          c.SessionConfig(),
	}
}

// RestartDelay returns the display restart delay.
func (c *Config) RestartDelay() time.Duration {
	return c.Display.RestartDelay.Std()
}
