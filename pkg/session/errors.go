package session

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for session termination.
var (
	// ErrConnectionClosing is returned when the session ended because a
	// Close command was sent. It is a clean termination.
	ErrConnectionClosing = errors.New("session: connection closing")

	// ErrTransport is matched by every *TransportError.
	ErrTransport = errors.New("session: transport failure")
)

// TransportError wraps a socket read or write failure.
type TransportError struct {
	Op  string // "read" or "write"
	Err error  // Underlying error
}

// Error returns the error message.
func (e *TransportError) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

// Is reports ErrTransport as a match.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsClean reports whether err is a controlled session end: nil, a sent
// Close, or cancellation by the caller.
func IsClean(err error) bool {
	return err == nil ||
		errors.Is(err, ErrConnectionClosing) ||
		errors.Is(err, context.Canceled)
}
