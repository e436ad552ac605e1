package protocol

import (
	"bufio"
	"net"
	"sync"
	"time"
)

// Conn is an upgraded client connection that reads and writes raw frames.
// Reads must come from a single goroutine; writes are serialized.
type Conn struct {
	conn       net.Conn
	br         *bufio.Reader
	mask       MaskSource
	maxPayload int64

	wmu sync.Mutex
}

// ReadFrame reads the next frame from the peer.
func (c *Conn) ReadFrame() (*Frame, error) {
	return ReadFrame(c.br, c.maxPayload)
}

// WriteFrame writes one masked, final frame to the peer.
func (c *Conn) WriteFrame(op Opcode, payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return WriteFrame(c.conn, op, payload, c.mask)
}

// SetReadDeadline sets the deadline for the next ReadFrame.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline sets the deadline for the next WriteFrame.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection. A blocked ReadFrame returns
// with an error.
func (c *Conn) Close() error {
	return c.conn.Close()
}
