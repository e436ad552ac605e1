package session

import (
	"context"

	"github.com/vango-dev/pixelbridge/pkg/protocol"
)

// monitorLoop requests the source configuration once, then watches
// throughput and asks for updates whenever an interval passes with too few
// frames. It never ends the session on its own.
func (s *Session) monitorLoop(ctx context.Context) error {
	if err := s.queue.Push(ctx, protocol.CommandGetConfig); err != nil {
		return err
	}

	ticks, stop := s.newTicker(s.config.MonitorInterval)
	defer stop()

	var lastReceived, lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticks:
			received, dropped := s.stats.received.Load(), s.stats.dropped.Load()
			dr, dd := received-lastReceived, dropped-lastDropped
			lastReceived, lastDropped = received, dropped

			s.logger.Debug("throughput", "received", dr, "dropped", dd)
			s.metrics.ObserveInterval(dr, dd)

			if dr >= s.config.MinFramesPerInterval {
				continue
			}
			if s.queue.TryPush(protocol.CommandSubscribe) {
				s.stats.subscribes.Add(1)
			} else {
				s.logger.Debug("control queue full, skipping subscribe")
			}
		}
	}
}
