package protocol

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// NonceSize is the size of the Sec-WebSocket-Key nonce before base64 encoding.
const NonceSize = 16

// acceptGUID is the fixed GUID appended to the key by RFC 6455.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// HandshakeOptions configures a client upgrade request.
type HandshakeOptions struct {
	// Host is sent as the Host header. Defaults to the remote address.
	Host string

	// Origin is sent as the Origin header when non-empty.
	Origin string

	// Path is the request URI. Defaults to "/".
	Path string

	// Nonce is the raw key material. When nil a fresh nonce is read from Rand.
	Nonce []byte

	// Rand supplies nonces and frame mask keys. Defaults to crypto/rand.Reader.
	Rand io.Reader

	// Timeout bounds the whole exchange. Zero means no deadline.
	Timeout time.Duration

	// MaxPayload bounds incoming frames on the returned Conn.
	// Default: DefaultMaxPayload.
	MaxPayload int64
}

// ComputeAcceptKey derives the Sec-WebSocket-Accept value for a
// Sec-WebSocket-Key.
func ComputeAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// NewNonce reads a fresh handshake nonce from r.
func NewNonce(r io.Reader) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}

// Handshake performs the HTTP Upgrade exchange on an already connected
// stream. On success the returned Conn carries WebSocket frames only; any
// bytes the server sent directly after its 101 response stay buffered in it.
//
// Handshake does not retry and does not close conn on failure.
func Handshake(conn net.Conn, opts HandshakeOptions) (*Conn, error) {
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.Host == "" && conn.RemoteAddr() != nil {
		opts.Host = conn.RemoteAddr().String()
	}

	nonce := opts.Nonce
	if nonce == nil {
		var err error
		if nonce, err = NewNonce(opts.Rand); err != nil {
			return nil, &HandshakeError{Reason: "generating nonce", Err: err}
		}
	}
	key := base64.StdEncoding.EncodeToString(nonce)

	if opts.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(opts.Timeout))
	}

	if err := writeUpgradeRequest(conn, opts, key); err != nil {
		return nil, &HandshakeError{Reason: "writing upgrade request", Err: err}
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, &http.Request{Method: http.MethodGet})
	if err != nil {
		return nil, &HandshakeError{Reason: "reading upgrade response", Err: err}
	}
	resp.Body.Close()

	if err := verifyUpgradeResponse(resp, key); err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		conn.SetDeadline(time.Time{})
	}

	return &Conn{
		conn:       conn,
		br:         br,
		mask:       opts.Rand,
		maxPayload: opts.MaxPayload,
	}, nil
}

func writeUpgradeRequest(w io.Writer, opts HandshakeOptions, key string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", opts.Path)
	fmt.Fprintf(&b, "Host: %s\r\n", opts.Host)
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Sec-WebSocket-Key: %s\r\n", key)
	b.WriteString("Sec-WebSocket-Version: 13\r\n")
	if opts.Origin != "" {
		fmt.Fprintf(&b, "Origin: %s\r\n", opts.Origin)
	}
	b.WriteString("\r\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func verifyUpgradeResponse(resp *http.Response, key string) error {
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return &HandshakeError{Reason: fmt.Sprintf("unexpected status %q", resp.Status)}
	}
	if !strings.EqualFold(strings.TrimSpace(resp.Header.Get("Upgrade")), "websocket") {
		return &HandshakeError{Reason: "missing or invalid Upgrade header"}
	}
	if !headerHasToken(resp.Header, "Connection", "upgrade") {
		return &HandshakeError{Reason: "missing or invalid Connection header"}
	}

	accept := resp.Header.Get("Sec-WebSocket-Accept")
	if accept == "" {
		return &HandshakeError{Reason: "missing Sec-WebSocket-Accept header"}
	}
	if strings.TrimSpace(accept) != ComputeAcceptKey(key) {
		return &HandshakeError{Reason: "Sec-WebSocket-Accept does not match key"}
	}
	return nil
}

// headerHasToken reports whether a comma separated header contains token.
func headerHasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
