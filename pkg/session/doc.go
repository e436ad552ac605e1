// Package session runs one streaming connection to the pattern source.
//
// A Session owns three goroutines sharing one connection:
//
//	                ┌──────────────┐
//	  wire ───────> │ receive loop │ ──TryEnqueue──> display.Sink
//	                └──────┬───────┘
//	                       │ SendPong, Close
//	                       v
//	                ┌──────────────┐        ┌──────────────┐
//	                │ ControlQueue │ <───── │ monitor loop │ GetConfig, Subscribe
//	                └──────┬───────┘        └──────────────┘
//	                       v
//	                ┌──────────────┐
//	  wire <─────── │  send loop   │
//	                └──────────────┘
//
// The first loop to return ends the session. Run cancels the others,
// closes the connection to release a blocked read, waits for all loops and
// returns the first result. ErrConnectionClosing and context cancellation
// are clean ends; *TransportError and *protocol.ProtocolError are failures
// the caller is expected to retry.
//
// Backpressure: the display sink never blocks the receive loop. A frame
// that does not fit is counted as dropped. Subscribe requests from the
// monitor are skipped when the control queue is full.
package session
