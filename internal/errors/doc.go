// Package errors provides coded, user-facing errors for the pixelbridge
// command line.
//
// Every configuration or startup problem the CLI reports carries a stable
// code (B001, B002, ...) registered with a short message, an optional
// explanation and a hint:
//
//	ERROR B003: Invalid pattern source address
//
//	  source.address
//
//	  The source address must be host:port, for example 192.168.4.1:81.
//
//	  Hint: Set source.address or pass --source host:port
//
// Runtime failures of the streaming pipeline are not reported through this
// package; the supervisor logs and retries them.
package errors
