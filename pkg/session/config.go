package session

import (
	"time"

	"github.com/vango-dev/pixelbridge/pkg/protocol"
)

// Config holds configuration for a streaming session.
type Config struct {
	// Grid

	// GridPixels is the capacity of decoded pixel frames. Extra pixels sent
	// by the pattern source are dropped.
	// Default: 16.
	GridPixels int

	// Queues

	// ControlQueueDepth is the capacity of the control command queue.
	// Default: 32.
	ControlQueueDepth int

	// Monitoring

	// MonitorInterval is the period of the throughput monitor.
	// Default: 1 second.
	MonitorInterval time.Duration

	// MinFramesPerInterval is the number of frames per interval below which
	// the monitor asks the pattern source to send updates.
	// Default: 1.
	MinFramesPerInterval uint64

	// SampleEvery logs every n-th accepted preview frame. Zero disables
	// sampling.
	// Default: 200.
	SampleEvery uint64

	// Timeouts

	// ReadIdleTimeout fails the session if no frame arrives for this long.
	// Zero waits forever.
	// Default: 0.
	ReadIdleTimeout time.Duration

	// WriteTimeout bounds each outgoing frame write. Zero disables it.
	// Default: 10 seconds.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with the defaults of the reference bridge.
func DefaultConfig() *Config {
	return &Config{
		GridPixels:           protocol.DefaultGridPixels,
		ControlQueueDepth:    32,
		MonitorInterval:      time.Second,
		MinFramesPerInterval: 1,
		SampleEvery:          200,
		ReadIdleTimeout:      0,
		WriteTimeout:         10 * time.Second,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// normalized fills zero values that would stall the session.
func (c *Config) normalized() *Config {
	n := c.Clone()
	if n == nil {
		return DefaultConfig()
	}
	if n.GridPixels <= 0 {
		n.GridPixels = protocol.DefaultGridPixels
	}
	if n.MonitorInterval <= 0 {
		n.MonitorInterval = time.Second
	}
	return n
}
