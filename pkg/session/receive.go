package session

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/vango-dev/pixelbridge/pkg/display"
	"github.com/vango-dev/pixelbridge/pkg/protocol"
)

// receiveLoop reads frames until the connection fails or the peer closes
// it. Preview frames go to the display sink; pings and closes become
// control commands for the send loop.
func (s *Session) receiveLoop(ctx context.Context) error {
	for {
		if s.config.ReadIdleTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.config.ReadIdleTimeout))
		}

		f, err := s.conn.ReadFrame()
		if err != nil {
			if errors.Is(err, protocol.ErrProtocol) {
				return err
			}
			return &TransportError{Op: "read", Err: err}
		}

		if !f.Final && f.Opcode != protocol.OpContinuation {
			s.logger.Warn("unexpected fragmented frame", "opcode", f.Opcode, "bytes", len(f.Payload))
		}

		switch f.Opcode {
		case protocol.OpText:
			s.handleText(f.Payload)

		case protocol.OpBinary:
			s.handleBinary(f.Payload)

		case protocol.OpPing:
			s.metrics.MessageReceived("Ping")
			if err := s.queue.Push(ctx, protocol.CommandSendPong); err != nil {
				return err
			}

		case protocol.OpPong:
			s.metrics.MessageReceived("Pong")
			s.stats.pongs.Add(1)

		case protocol.OpClose:
			s.metrics.MessageReceived("Close")
			s.logger.Info("peer closed connection")
			if err := s.queue.Push(ctx, protocol.CommandClose); err != nil {
				return err
			}
			// The send loop ends the session once the reply is on the wire.
			<-ctx.Done()
			return nil

		case protocol.OpContinuation:
			s.logger.Warn("ignoring continuation frame", "bytes", len(f.Payload))
		}
	}
}

func (s *Session) handleText(payload []byte) {
	s.stats.texts.Add(1)
	s.metrics.MessageReceived("Text")

	if utf8.Valid(payload) {
		s.logger.Info("text message", "text", string(payload))
	} else {
		s.logger.Info("text message with invalid UTF-8", "raw", payload)
	}
}

func (s *Session) handleBinary(payload []byte) {
	if len(payload) == 0 {
		s.logger.Debug("empty binary frame")
		return
	}

	mt := protocol.MessageTypeOf(payload[0])
	if mt.IsKnown() {
		s.metrics.MessageReceived(mt.String())
	} else {
		s.metrics.MessageReceived("Unknown")
	}

	if mt != protocol.MsgPreviewFrame {
		s.logger.Debug("ignoring message", "type", mt, "bytes", len(payload))
		return
	}

	pixels, err := protocol.DecodePreviewFrame(payload, s.config.GridPixels)
	if err != nil {
		s.stats.invalid.Add(1)
		s.metrics.InvalidPreview()
		s.logger.Warn("invalid preview frame", "error", err, "bytes", len(payload))
		return
	}

	f := display.Frame{
		Pixels:    pixels,
		Seq:       s.stats.decoded.Add(1),
		SessionID: s.id,
		DecodedAt: time.Now(),
	}
	if !s.sink.TryEnqueue(f) {
		s.stats.dropped.Add(1)
		s.metrics.FrameDropped()
		return
	}

	n := s.stats.received.Add(1)
	s.metrics.FrameReceived()
	if every := s.config.SampleEvery; every > 0 && n%every == 0 {
		s.logger.Info("sample frame", "received", n, "pixels", pixels.String())
	}
}
