// Package protocol implements the client side of the pattern source wire
// protocol: the WebSocket upgrade, the RFC 6455 frame codec, and the vendor's
// binary message format carried inside binary frames.
//
// # Design Goals
//
//   - Client role only: outgoing frames are always masked, one connection
//   - No hidden buffering: frames are handed to the caller one by one,
//     fragments and continuation frames included
//   - Strict validation: malformed headers surface as *ProtocolError,
//     malformed preview payloads as ErrInvalidPreview
//
// # Handshake
//
//	Client                                   Pattern source
//	  │                                            │
//	  │── GET / (Upgrade, Sec-WebSocket-Key) ─────>│
//	  │                                            │
//	  │<── 101 Switching Protocols ────────────────│
//	  │    (Sec-WebSocket-Accept)                  │
//	  │                                            │
//
// The accept value must equal base64(SHA1(key + GUID)); anything else is a
// *HandshakeError matching ErrHandshakeRejected.
//
// # Vendor Messages
//
// Binary frames carry a one-byte tag followed by a type-specific body. Only
// PreviewFrame (0x05) is decoded:
//
//	┌────────────┬───────┬───────┬───────┬─────
//	│ Tag (0x05) │ R G B │ R G B │ R G B │ ...
//	└────────────┴───────┴───────┴───────┴─────
//
// Outgoing commands are short JSON text frames such as {"sendUpdates":true}.
//
// # File Structure
//
//   - frame.go: Opcodes, header encode/decode, ReadFrame/WriteFrame
//   - handshake.go: HTTP Upgrade request and accept-key verification
//   - conn.go: Upgraded connection
//   - message.go: Vendor message tags
//   - preview.go: Preview-frame decoding
//   - control.go: Session control commands and their wire form
//   - error.go: Error classes
package protocol
