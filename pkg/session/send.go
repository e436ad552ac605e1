package session

import (
	"context"
	"time"

	"github.com/vango-dev/pixelbridge/pkg/protocol"
)

// sendLoop is the only writer of the connection. It executes queued
// commands in order until a Close is sent or a write fails.
func (s *Session) sendLoop(ctx context.Context) error {
	for {
		cmd, err := s.queue.Pop(ctx)
		if err != nil {
			return err
		}

		if err := s.send(cmd); err != nil {
			return err
		}

		if cmd == protocol.CommandClose {
			return ErrConnectionClosing
		}
	}
}

// send writes the frame for one command.
func (s *Session) send(cmd protocol.Command) error {
	op, payload := cmd.Wire()
	if op == 0 {
		s.logger.Warn("unknown control command", "command", uint8(cmd))
		return nil
	}

	if s.config.WriteTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	if err := s.conn.WriteFrame(op, payload); err != nil {
		return &TransportError{Op: "write", Err: err}
	}

	s.stats.sent.Add(1)
	s.metrics.CommandSent(cmd.String())
	s.logger.Debug("sent command", "command", cmd)
	return nil
}
