// Package metrics provides the Prometheus collectors for the bridge pipeline.
//
// Collectors are created per process with New and registered on the
// configured registry. Every recording method is safe on a nil *Metrics, so
// components can run without metrics in tests.
//
// Result labels come from a small fixed set ("closed", "transport",
// "protocol", "handshake", "dial", "canceled", "error") to keep cardinality
// bounded.
package metrics
