package display

import (
	"time"

	"github.com/vango-dev/pixelbridge/pkg/protocol"
)

// DefaultQueueDepth is the depth of the sink between the receive loop and
// the driver. With one slot the newest frame is dropped while the actuator
// is still busy.
const DefaultQueueDepth = 1

// Frame is a decoded preview frame on its way to the actuator.
type Frame struct {
	Pixels    protocol.PixelFrame
	Seq       uint64 // Per-session sequence of decoded frames, starting at 1; dropped frames leave gaps
	SessionID string
	DecodedAt time.Time
}

// Sink accepts decoded frames without ever blocking the producer.
type Sink interface {
	// TryEnqueue hands the frame to the sink. It returns false if the sink
	// is full; the frame is then discarded by the caller.
	TryEnqueue(Frame) bool
}

// Channel is a bounded Sink backed by a buffered channel.
type Channel struct {
	ch chan Frame
}

// NewChannel creates a sink holding at most depth frames. depth < 1 is
// treated as DefaultQueueDepth.
func NewChannel(depth int) *Channel {
	if depth < 1 {
		depth = DefaultQueueDepth
	}
	return &Channel{ch: make(chan Frame, depth)}
}

// TryEnqueue implements Sink.
func (c *Channel) TryEnqueue(f Frame) bool {
	select {
	case c.ch <- f:
		return true
	default:
		return false
	}
}

// Frames returns the consumer side of the sink.
func (c *Channel) Frames() <-chan Frame {
	return c.ch
}

// Len returns the number of queued frames.
func (c *Channel) Len() int {
	return len(c.ch)
}

// Cap returns the sink depth.
func (c *Channel) Cap() int {
	return cap(c.ch)
}
