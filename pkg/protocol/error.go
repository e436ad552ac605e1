package protocol

import (
	"errors"
	"fmt"
)

// Error classes. Use errors.Is to classify a returned error.
var (
	// ErrHandshakeRejected is matched by every *HandshakeError.
	ErrHandshakeRejected = errors.New("protocol: websocket upgrade rejected")

	// ErrProtocol is matched by every *ProtocolError.
	ErrProtocol = errors.New("protocol: frame violation")

	// ErrInvalidPreview is returned for malformed preview-frame payloads.
	ErrInvalidPreview = errors.New("protocol: invalid preview frame")
)

// HandshakeError describes why an upgrade attempt failed.
type HandshakeError struct {
	Reason string
	Err    error // Underlying I/O error, if any
}

// Error returns the error message.
func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: websocket upgrade rejected: %s: %v", e.Reason, e.Err)
	}
	return "protocol: websocket upgrade rejected: " + e.Reason
}

// Is reports ErrHandshakeRejected as a match.
func (e *HandshakeError) Is(target error) bool {
	return target == ErrHandshakeRejected
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ProtocolError represents a frame-level violation by the peer.
type ProtocolError struct {
	Op      string
	Message string
	Err     error
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(op, message string) *ProtocolError {
	return &ProtocolError{Op: op, Message: message}
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: %s", e.Op, e.Message)
}

// Is reports ErrProtocol as a match.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}
