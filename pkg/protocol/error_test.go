package protocol

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestHandshakeErrorClassification(t *testing.T) {
	err := error(&HandshakeError{Reason: "read response", Err: io.ErrUnexpectedEOF})

	if !errors.Is(err, ErrHandshakeRejected) {
		t.Error("HandshakeError does not match ErrHandshakeRejected")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("HandshakeError does not unwrap to its cause")
	}
	if errors.Is(err, ErrProtocol) {
		t.Error("HandshakeError matches ErrProtocol")
	}
	if !strings.Contains(err.Error(), "read response") {
		t.Errorf("Error() = %q, missing reason", err.Error())
	}
}

func TestProtocolErrorClassification(t *testing.T) {
	err := error(&ProtocolError{Op: "read header", Message: "too large", Err: ErrFrameTooLarge})

	if !errors.Is(err, ErrProtocol) {
		t.Error("ProtocolError does not match ErrProtocol")
	}
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Error("ProtocolError does not unwrap to its cause")
	}
	if errors.Is(err, ErrHandshakeRejected) {
		t.Error("ProtocolError matches ErrHandshakeRejected")
	}
	if got, want := err.Error(), "protocol: read header: too large"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if NewProtocolError("op", "msg").Unwrap() != nil {
		t.Error("NewProtocolError() carries a cause")
	}
}
