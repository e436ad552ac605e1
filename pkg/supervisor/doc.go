// Package supervisor keeps the bridge connected to the pattern source.
//
// Each attempt dials the source, performs the WebSocket upgrade with a fresh
// nonce and runs a session until it ends. Whatever the outcome (dial error,
// rejected upgrade, transport or protocol failure, or a clean close) the
// supervisor waits a fixed backoff and tries again. There is no retry limit
// and no exponential growth; the only way out of Run is cancellation of its
// context.
//
//	┌────────────┐   ┌───────────┐   ┌─────────────┐   ┌─────────┐
//	│ connecting │──>│ handshake │──>│  connected  │──>│ backoff │──┐
//	└────────────┘   └───────────┘   └─────────────┘   └─────────┘  │
//	      ^                                                         │
//	      └─────────────────────────────────────────────────────────┘
//
// Attempts are traced as "pixelbridge.connect" spans on the global
// OpenTelemetry tracer provider unless WithTracerProvider is given, and
// counted in the pixelbridge_connect_attempts_total metric.
package supervisor
