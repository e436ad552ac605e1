package session

import (
	"context"

	"github.com/vango-dev/pixelbridge/pkg/protocol"
)

// ControlQueue is the FIFO of control commands shared by the producers
// (receive and monitor loops) and the single consumer (send loop). It
// outlives individual sessions; leftovers are drained when a new session
// starts.
type ControlQueue struct {
	ch chan protocol.Command
}

// NewControlQueue creates a queue holding up to depth commands.
func NewControlQueue(depth int) *ControlQueue {
	if depth < 1 {
		depth = 1
	}
	return &ControlQueue{ch: make(chan protocol.Command, depth)}
}

// Push enqueues cmd, waiting for space until ctx is done.
func (q *ControlQueue) Push(ctx context.Context, cmd protocol.Command) error {
	select {
	case q.ch <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues cmd if there is space and reports whether it did.
func (q *ControlQueue) TryPush(cmd protocol.Command) bool {
	select {
	case q.ch <- cmd:
		return true
	default:
		return false
	}
}

// Pop dequeues the oldest command, waiting until one is available or ctx is
// done.
func (q *ControlQueue) Pop(ctx context.Context) (protocol.Command, error) {
	select {
	case cmd := <-q.ch:
		return cmd, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Drain discards every queued command and returns how many were dropped.
func (q *ControlQueue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

// Len returns the number of queued commands.
func (q *ControlQueue) Len() int {
	return len(q.ch)
}
