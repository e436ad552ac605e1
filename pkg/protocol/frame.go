package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame constants.
const (
	// MaxControlPayload is the largest payload a control frame may carry.
	MaxControlPayload = 125

	// DefaultMaxPayload bounds a single incoming frame payload.
	DefaultMaxPayload = 16 * 1024

	// maxHeaderSize is 2 fixed bytes + 8 extended length + 4 mask key.
	maxHeaderSize = 14
)

// Opcode identifies the type of WebSocket frame.
type Opcode uint8

const (
	OpContinuation Opcode = 0x0 // Continuation of a fragmented message
	OpText         Opcode = 0x1 // UTF-8 text message
	OpBinary       Opcode = 0x2 // Binary message
	OpClose        Opcode = 0x8 // Connection close
	OpPing         Opcode = 0x9 // Ping
	OpPong         Opcode = 0xA // Pong
)

// String returns the string representation of the opcode.
func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "Continuation"
	case OpText:
		return "Text"
	case OpBinary:
		return "Binary"
	case OpClose:
		return "Close"
	case OpPing:
		return "Ping"
	case OpPong:
		return "Pong"
	default:
		return fmt.Sprintf("Reserved(0x%x)", uint8(op))
	}
}

// IsControl reports whether the opcode is a control opcode (0x8-0xF).
func (op Opcode) IsControl() bool {
	return op&0x8 != 0
}

func (op Opcode) isKnown() bool {
	switch op {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	}
	return false
}

// Header bit masks.
const (
	finBit     = 0x80
	rsvBits    = 0x70
	opcodeBits = 0x0F
	maskBit    = 0x80
	lenBits    = 0x7F
)

// Header is a decoded WebSocket frame header.
//
// Wire format (RFC 6455 section 5.2):
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
//	|N|V|V|V|       |S|             |   (if payload len==126/127)   |
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|                 Masking-key (if MASK set, 4 bytes)            |
//	+---------------------------------------------------------------+
//	|                          Payload Data                         |
//	+---------------------------------------------------------------+
type Header struct {
	Final   bool
	Opcode  Opcode
	Masked  bool
	MaskKey [4]byte
	Length  int64
}

// Frame is a single WebSocket frame with its payload already unmasked.
type Frame struct {
	Header
	Payload []byte
}

// MaskSource supplies fresh mask keys for outgoing frames.
// crypto/rand.Reader satisfies it.
type MaskSource = io.Reader

// Frame errors.
var (
	ErrFrameTooLarge = errors.New("protocol: frame payload too large")
	ErrNoMaskSource  = errors.New("protocol: no mask source for client frame")
)

// AppendHeader encodes h onto buf and returns the extended slice.
func AppendHeader(buf []byte, h Header) []byte {
	b0 := byte(h.Opcode) & opcodeBits
	if h.Final {
		b0 |= finBit
	}
	var b1 byte
	if h.Masked {
		b1 = maskBit
	}

	switch {
	case h.Length <= 125:
		buf = append(buf, b0, b1|byte(h.Length))
	case h.Length <= 0xFFFF:
		buf = append(buf, b0, b1|126)
		buf = binary.BigEndian.AppendUint16(buf, uint16(h.Length))
	default:
		buf = append(buf, b0, b1|127)
		buf = binary.BigEndian.AppendUint64(buf, uint64(h.Length))
	}

	if h.Masked {
		buf = append(buf, h.MaskKey[:]...)
	}
	return buf
}

// ReadHeader reads and validates a frame header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	var fixed [2]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return h, err
	}

	if fixed[0]&rsvBits != 0 {
		return h, NewProtocolError("read header", "reserved bits set without negotiated extension")
	}

	h.Final = fixed[0]&finBit != 0
	h.Opcode = Opcode(fixed[0] & opcodeBits)
	h.Masked = fixed[1]&maskBit != 0
	length := int64(fixed[1] & lenBits)

	if !h.Opcode.isKnown() {
		return h, NewProtocolError("read header", "reserved opcode "+h.Opcode.String())
	}

	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return h, err
		}
		length = int64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return h, err
		}
		v := binary.BigEndian.Uint64(ext[:])
		if v&(1<<63) != 0 {
			return h, NewProtocolError("read header", "payload length has most significant bit set")
		}
		length = int64(v)
	}
	h.Length = length

	if h.Opcode.IsControl() {
		if !h.Final {
			return h, NewProtocolError("read header", "fragmented control frame")
		}
		if h.Length > MaxControlPayload {
			return h, NewProtocolError("read header", "control frame payload exceeds 125 bytes")
		}
	}

	if h.Masked {
		if _, err := io.ReadFull(r, h.MaskKey[:]); err != nil {
			return h, err
		}
	}

	return h, nil
}

// ReadFrame reads a complete frame from r. Payloads larger than maxPayload
// are rejected before any payload byte is read. A maxPayload <= 0 selects
// DefaultMaxPayload.
//
// Non-final and continuation frames are returned as they arrive; no
// reassembly of fragmented messages takes place.
func ReadFrame(r io.Reader, maxPayload int64) (*Frame, error) {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}

	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if h.Length > maxPayload {
		return nil, &ProtocolError{
			Op:      "read frame",
			Message: fmt.Sprintf("payload of %d bytes exceeds limit of %d", h.Length, maxPayload),
			Err:     ErrFrameTooLarge,
		}
	}

	payload := make([]byte, h.Length)
	if h.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	// Servers do not mask, but a masked frame is still decoded correctly.
	if h.Masked {
		MaskBytes(h.MaskKey, payload)
	}

	return &Frame{Header: h, Payload: payload}, nil
}

// WriteFrame writes a single final frame from client to server. The payload is
// masked with a fresh key read from mask; payload itself is not modified.
func WriteFrame(w io.Writer, op Opcode, payload []byte, mask MaskSource) error {
	if mask == nil {
		return ErrNoMaskSource
	}
	if op.IsControl() && len(payload) > MaxControlPayload {
		return ErrFrameTooLarge
	}

	h := Header{
		Final:  true,
		Opcode: op,
		Masked: true,
		Length: int64(len(payload)),
	}
	if _, err := io.ReadFull(mask, h.MaskKey[:]); err != nil {
		return fmt.Errorf("protocol: generating mask key: %w", err)
	}

	buf := make([]byte, 0, maxHeaderSize+len(payload))
	buf = AppendHeader(buf, h)
	start := len(buf)
	buf = append(buf, payload...)
	MaskBytes(h.MaskKey, buf[start:])

	_, err := w.Write(buf)
	return err
}

// MaskBytes applies the WebSocket XOR mask to b in place. Applying it twice
// restores the original bytes.
func MaskBytes(key [4]byte, b []byte) {
	for i := range b {
		b[i] ^= key[i&3]
	}
}
