package display

import (
	"context"
	"log/slog"
	"time"

	"github.com/vango-dev/pixelbridge/pkg/protocol"
)

// DefaultRestartDelay is how long the driver pauses after an actuator error.
const DefaultRestartDelay = 2 * time.Second

// Actuator paints one frame onto a physical or simulated grid.
type Actuator interface {
	Paint(ctx context.Context, f Frame) error
}

// PaintObserver receives paint timings. *metrics.Metrics satisfies it.
type PaintObserver interface {
	ObservePaint(d time.Duration, err error)
}

// Driver consumes frames from a sink and paints them in order.
type Driver struct {
	frames       <-chan Frame
	actuator     Actuator
	gridSize     int
	restartDelay time.Duration
	observer     PaintObserver
	logger       *slog.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithGridSize sets the pixel count frames are padded to.
// Default: protocol.DefaultGridPixels.
func WithGridSize(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.gridSize = n
		}
	}
}

// WithRestartDelay sets the pause after an actuator error.
func WithRestartDelay(delay time.Duration) DriverOption {
	return func(d *Driver) {
		d.restartDelay = delay
	}
}

// WithPaintObserver reports each paint to o.
func WithPaintObserver(o PaintObserver) DriverOption {
	return func(d *Driver) {
		d.observer = o
	}
}

// WithDriverLogger sets the logger.
func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = logger
	}
}

// NewDriver creates a driver reading from frames.
func NewDriver(frames <-chan Frame, actuator Actuator, opts ...DriverOption) *Driver {
	d := &Driver{
		frames:       frames,
		actuator:     actuator,
		gridSize:     protocol.DefaultGridPixels,
		restartDelay: DefaultRestartDelay,
		logger:       slog.Default().With("component", "display"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run paints frames until ctx is canceled or the frame channel is closed.
// Actuator errors never stop the driver; it logs them and resumes after the
// restart delay.
func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f, ok := <-d.frames:
			if !ok {
				return nil
			}
			f.Pixels = Pad(f.Pixels, d.gridSize)

			start := time.Now()
			err := d.actuator.Paint(ctx, f)
			if d.observer != nil {
				d.observer.ObservePaint(time.Since(start), err)
			}
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			d.logger.Error("actuator failed, restarting",
				"error", err,
				"seq", f.Seq,
				"delay", d.restartDelay)
			if !sleep(ctx, d.restartDelay) {
				return ctx.Err()
			}
		}
	}
}

// Pad returns pixels extended with black up to n entries. Frames that are
// already long enough are returned unchanged.
func Pad(pixels protocol.PixelFrame, n int) protocol.PixelFrame {
	if len(pixels) >= n {
		return pixels
	}
	padded := make(protocol.PixelFrame, n)
	copy(padded, pixels)
	return padded
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
