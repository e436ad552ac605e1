package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/pixelbridge/pkg/display"
	"github.com/vango-dev/pixelbridge/pkg/protocol"
)

// =============================================================================
// Test helpers
// =============================================================================

type sentFrame struct {
	op      protocol.Opcode
	payload []byte
}

// fakeConn is an in-memory FrameConn. Items sent on in are either
// *protocol.Frame or error values returned from ReadFrame.
type fakeConn struct {
	in        chan any
	out       chan sentFrame
	closed    chan struct{}
	closeOnce sync.Once
	writeErr  error

	readDeadlines atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan any, 16),
		out:    make(chan sentFrame, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() (*protocol.Frame, error) {
	select {
	case item := <-c.in:
		switch v := item.(type) {
		case *protocol.Frame:
			return v, nil
		case error:
			return nil, v
		}
		return nil, io.EOF
	case <-c.closed:
		return nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteFrame(op protocol.Opcode, payload []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case c.out <- sentFrame{op: op, payload: append([]byte(nil), payload...)}:
		return nil
	case <-c.closed:
		return net.ErrClosed
	}
}

func (c *fakeConn) SetReadDeadline(time.Time) error {
	c.readDeadlines.Add(1)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func frame(op protocol.Opcode, payload []byte) *protocol.Frame {
	return &protocol.Frame{
		Header:  protocol.Header{Final: true, Opcode: op, Length: int64(len(payload))},
		Payload: payload,
	}
}

func preview(pixels ...protocol.Pixel) *protocol.Frame {
	return frame(protocol.OpBinary, protocol.EncodePreviewFrame(pixels))
}

// collectSink accepts every frame.
type collectSink struct {
	mu     sync.Mutex
	frames []display.Frame
}

func (s *collectSink) TryEnqueue(f display.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return true
}

func (s *collectSink) snapshot() []display.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]display.Frame(nil), s.frames...)
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// manualTicker makes the monitor tick only when the test sends on the
// returned channel. The channel is unbuffered, so a send returns only after
// the monitor finished handling the previous tick.
func manualTicker(s *Session) chan time.Time {
	ch := make(chan time.Time)
	s.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return ch, func() {}
	}
	return ch
}

// runner runs a session in the background. done is closed once Run
// returned; err is valid after that.
type runner struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func start(t *testing.T, s *Session) *runner {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{cancel: cancel, done: make(chan struct{})}
	go func() {
		r.err = s.Run(ctx)
		close(r.done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Error("session did not stop on cleanup")
		}
	})
	return r
}

func (r *runner) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-r.done:
		return r.err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
		return nil
	}
}

func nextSent(t *testing.T, c *fakeConn) sentFrame {
	t.Helper()
	select {
	case f := <-c.out:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame written")
		return sentFrame{}
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.MonitorInterval = time.Hour
	return cfg
}

// =============================================================================
// Control queue
// =============================================================================

func TestControlQueue_FIFO(t *testing.T) {
	q := NewControlQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, protocol.CommandGetConfig))
	require.True(t, q.TryPush(protocol.CommandSubscribe))
	require.NoError(t, q.Push(ctx, protocol.CommandSendPong))

	for _, want := range []protocol.Command{protocol.CommandGetConfig, protocol.CommandSubscribe, protocol.CommandSendPong} {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestControlQueue_TryPushFull(t *testing.T) {
	q := NewControlQueue(1)
	assert.True(t, q.TryPush(protocol.CommandSubscribe))
	assert.False(t, q.TryPush(protocol.CommandSubscribe))
	assert.Equal(t, 1, q.Len())
}

func TestControlQueue_PushAbortsOnCancel(t *testing.T) {
	q := NewControlQueue(1)
	q.TryPush(protocol.CommandSubscribe)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Push(ctx, protocol.CommandClose), context.DeadlineExceeded)
}

func TestControlQueue_PopAbortsOnCancel(t *testing.T) {
	q := NewControlQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestControlQueue_Drain(t *testing.T) {
	q := NewControlQueue(8)
	q.TryPush(protocol.CommandClose)
	q.TryPush(protocol.CommandSubscribe)
	q.TryPush(protocol.CommandSendPong)

	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Drain())
}

// =============================================================================
// Session loops
// =============================================================================

func TestSession_PingThenPreview(t *testing.T) {
	conn := newFakeConn()
	sink := &collectSink{}
	s := New(conn, NewControlQueue(32), sink, testConfig(), WithLogger(quietLogger()))
	manualTicker(s)
	r := start(t, s)

	conn.in <- frame(protocol.OpPing, nil)
	conn.in <- frame(protocol.OpBinary, []byte{0x05, 0x0A, 0x00, 0x00, 0x00, 0x0A, 0x00})

	// GetConfig from the monitor and the Pong reply, in either order.
	ops := map[protocol.Opcode][]byte{}
	for i := 0; i < 2; i++ {
		f := nextSent(t, conn)
		ops[f.op] = f.payload
	}
	require.Contains(t, ops, protocol.OpPong)
	assert.Empty(t, ops[protocol.OpPong])
	assert.Equal(t, protocol.TextGetConfig, string(ops[protocol.OpText]))

	require.Eventually(t, func() bool { return s.Stats().Received == 1 }, time.Second, 5*time.Millisecond)

	frames := sink.snapshot()
	require.Len(t, frames, 1)
	assert.Equal(t, protocol.PixelFrame{{R: 10}, {G: 10}}, frames[0].Pixels)
	assert.Equal(t, uint64(1), frames[0].Seq)
	assert.Equal(t, s.ID(), frames[0].SessionID)
	assert.False(t, frames[0].DecodedAt.IsZero())

	// One ping gets exactly one pong: nothing beyond GetConfig and the Pong
	// reaches the wire.
	require.Eventually(t, func() bool { return s.Stats().CommandsSent == 2 }, time.Second, 5*time.Millisecond)
	select {
	case extra := <-conn.out:
		t.Fatalf("unexpected extra frame %v %q", extra.op, extra.payload)
	case <-time.After(50 * time.Millisecond):
	}

	r.cancel()
	assert.ErrorIs(t, r.wait(t), context.Canceled)
	assert.True(t, conn.isClosed())
}

func TestSession_MonitorSubscribesOncePerIdleInterval(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, NewControlQueue(32), &collectSink{}, testConfig(), WithLogger(quietLogger()))
	ticks := manualTicker(s)
	start(t, s)

	first := nextSent(t, conn)
	assert.Equal(t, protocol.TextGetConfig, string(first.payload))

	// Three silent intervals: one subscribe each.
	for i := 0; i < 3; i++ {
		ticks <- time.Now()
		f := nextSent(t, conn)
		assert.Equal(t, protocol.OpText, f.op)
		assert.Equal(t, protocol.TextSendUpdates, string(f.payload))
	}
	require.Eventually(t, func() bool { return s.Stats().SubscribeRequests == 3 }, time.Second, 5*time.Millisecond)

	// An interval with traffic does not subscribe.
	conn.in <- preview(protocol.Pixel{R: 1})
	require.Eventually(t, func() bool { return s.Stats().Received == 1 }, time.Second, 5*time.Millisecond)
	ticks <- time.Now()
	ticks <- time.Now() // silent again

	f := nextSent(t, conn)
	assert.Equal(t, protocol.TextSendUpdates, string(f.payload))
	require.Eventually(t, func() bool { return s.Stats().SubscribeRequests == 4 }, time.Second, 5*time.Millisecond)

	select {
	case extra := <-conn.out:
		t.Fatalf("unexpected extra frame %v %q", extra.op, extra.payload)
	case <-time.After(50 * time.Millisecond):
	}
}

// stuckWriter blocks every write until the connection is closed.
type stuckWriter struct {
	*fakeConn
	entered chan protocol.Opcode
}

func (c *stuckWriter) WriteFrame(op protocol.Opcode, _ []byte) error {
	c.entered <- op
	<-c.closed
	return net.ErrClosed
}

func TestSession_MonitorSkipsSubscribeWhenQueueFull(t *testing.T) {
	conn := &stuckWriter{fakeConn: newFakeConn(), entered: make(chan protocol.Opcode, 1)}
	s := New(conn, NewControlQueue(1), &collectSink{}, testConfig(), WithLogger(quietLogger()))
	ticks := manualTicker(s)
	start(t, s)

	// The send loop holds GetConfig and the queue is empty.
	<-conn.entered

	// First tick fills the single slot; the next two find it full. The
	// fourth send returns only after the third tick was handled.
	for i := 0; i < 4; i++ {
		ticks <- time.Now()
	}
	assert.Equal(t, uint64(1), s.Stats().SubscribeRequests)
}

func TestSession_PeerCloseEndsWithConnectionClosing(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, NewControlQueue(32), &collectSink{}, testConfig(), WithLogger(quietLogger()))
	manualTicker(s)
	r := start(t, s)

	conn.in <- frame(protocol.OpClose, nil)

	err := r.wait(t)
	assert.ErrorIs(t, err, ErrConnectionClosing)
	assert.True(t, IsClean(err))
	assert.True(t, conn.isClosed())

	var sawClose bool
	for len(conn.out) > 0 {
		if f := <-conn.out; f.op == protocol.OpClose {
			sawClose = true
			assert.Empty(t, f.payload)
		}
	}
	assert.True(t, sawClose, "Close reply not written")
}

func TestSession_ReadErrorWins(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, NewControlQueue(32), &collectSink{}, testConfig(), WithLogger(quietLogger()))
	manualTicker(s)
	r := start(t, s)

	conn.in <- io.ErrUnexpectedEOF

	err := r.wait(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.False(t, IsClean(err))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "read", te.Op)
	assert.True(t, conn.isClosed(), "connection not closed on teardown")
}

func TestSession_ProtocolErrorPassesThrough(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, NewControlQueue(32), &collectSink{}, testConfig(), WithLogger(quietLogger()))
	manualTicker(s)
	r := start(t, s)

	conn.in <- protocol.NewProtocolError("read header", "reserved opcode 0x3")

	err := r.wait(t)
	assert.ErrorIs(t, err, protocol.ErrProtocol)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestSession_WriteErrorWins(t *testing.T) {
	conn := newFakeConn()
	conn.writeErr = errors.New("broken pipe")
	s := New(conn, NewControlQueue(32), &collectSink{}, testConfig(), WithLogger(quietLogger()))
	manualTicker(s)
	r := start(t, s)

	// The monitor's GetConfig is the first write.
	err := r.wait(t)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "write", te.Op)
	assert.True(t, conn.isClosed())
}

func TestSession_FullSinkCountsDrops(t *testing.T) {
	conn := newFakeConn()
	sink := display.NewChannel(1)
	s := New(conn, NewControlQueue(32), sink, testConfig(), WithLogger(quietLogger()))
	manualTicker(s)
	start(t, s)

	for i := 0; i < 3; i++ {
		conn.in <- preview(protocol.Pixel{R: uint8(i)})
	}

	require.Eventually(t, func() bool {
		st := s.Stats()
		return st.Received+st.Dropped == 3
	}, time.Second, 5*time.Millisecond)

	st := s.Stats()
	assert.Equal(t, uint64(1), st.Received)
	assert.Equal(t, uint64(2), st.Dropped)

	f := <-sink.Frames()
	assert.Equal(t, protocol.PixelFrame{{R: 0}}, f.Pixels, "oldest frame kept")
	assert.Equal(t, uint64(1), f.Seq)

	// Seq counts decoded frames, so the two drops show up as a gap.
	conn.in <- preview(protocol.Pixel{R: 9})
	select {
	case f = <-sink.Frames():
	case <-time.After(time.Second):
		t.Fatal("frame after drain not delivered")
	}
	assert.Equal(t, protocol.PixelFrame{{R: 9}}, f.Pixels)
	assert.Equal(t, uint64(4), f.Seq)
}

func TestSession_InvalidPreviewIsNotFatal(t *testing.T) {
	conn := newFakeConn()
	sink := &collectSink{}
	s := New(conn, NewControlQueue(32), sink, testConfig(), WithLogger(quietLogger()))
	manualTicker(s)
	r := start(t, s)

	conn.in <- frame(protocol.OpBinary, []byte{0x05, 1, 2, 3, 4})    // not a multiple of 3
	conn.in <- frame(protocol.OpBinary, nil)                         // empty
	conn.in <- frame(protocol.OpBinary, []byte{0x06, 'c', 'o', 'd'}) // other tag
	conn.in <- frame(protocol.OpBinary, []byte{0xEE})                // unknown tag
	conn.in <- frame(protocol.OpText, []byte(`{"fps":30}`))
	conn.in <- frame(protocol.OpText, []byte{0xFF, 0xFE})
	conn.in <- frame(protocol.OpPong, nil)
	conn.in <- frame(protocol.OpContinuation, []byte{1})
	conn.in <- preview(protocol.Pixel{B: 9})

	require.Eventually(t, func() bool { return s.Stats().Received == 1 }, time.Second, 5*time.Millisecond)

	st := s.Stats()
	assert.Equal(t, uint64(1), st.InvalidPreviews)
	assert.Equal(t, uint64(2), st.Texts)
	assert.Equal(t, uint64(1), st.Pongs)
	assert.Equal(t, uint64(0), st.Dropped)

	select {
	case <-r.done:
		t.Fatalf("session ended: %v", r.err)
	default:
	}
}

func TestSession_TruncatesToGridPixels(t *testing.T) {
	conn := newFakeConn()
	sink := &collectSink{}
	cfg := testConfig()
	cfg.GridPixels = 2
	s := New(conn, NewControlQueue(32), sink, cfg, WithLogger(quietLogger()))
	manualTicker(s)
	start(t, s)

	conn.in <- preview(protocol.Pixel{R: 1}, protocol.Pixel{R: 2}, protocol.Pixel{R: 3})
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, sink.snapshot()[0].Pixels, 2)
}

func TestSession_DrainsStaleCommands(t *testing.T) {
	conn := newFakeConn()
	q := NewControlQueue(32)
	q.TryPush(protocol.CommandClose)
	q.TryPush(protocol.CommandSubscribe)

	s := New(conn, q, &collectSink{}, testConfig(), WithLogger(quietLogger()))
	manualTicker(s)
	r := start(t, s)

	f := nextSent(t, conn)
	assert.Equal(t, protocol.TextGetConfig, string(f.payload), "stale commands reached the wire")

	select {
	case <-r.done:
		t.Fatalf("stale Close ended the session: %v", r.err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_ReadIdleTimeoutSetsDeadline(t *testing.T) {
	conn := newFakeConn()
	cfg := testConfig()
	cfg.ReadIdleTimeout = time.Minute
	s := New(conn, NewControlQueue(32), &collectSink{}, cfg, WithLogger(quietLogger()))
	manualTicker(s)
	start(t, s)

	conn.in <- frame(protocol.OpPong, nil)
	require.Eventually(t, func() bool { return conn.readDeadlines.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSession_NoReadDeadlineByDefault(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, NewControlQueue(32), &collectSink{}, testConfig(), WithLogger(quietLogger()))
	manualTicker(s)
	start(t, s)

	conn.in <- frame(protocol.OpPong, nil)
	require.Eventually(t, func() bool { return s.Stats().Pongs == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, conn.readDeadlines.Load())
}

func TestSession_SamplesEveryNthFrame(t *testing.T) {
	conn := newFakeConn()
	logs := &syncBuffer{}
	cfg := testConfig()
	cfg.SampleEvery = 2
	s := New(conn, NewControlQueue(32), &collectSink{}, cfg,
		WithLogger(slog.New(slog.NewTextHandler(logs, nil))),
		WithID("sample-test"))
	manualTicker(s)
	start(t, s)

	conn.in <- preview(protocol.Pixel{R: 0xAA})
	conn.in <- preview(protocol.Pixel{G: 0xBB})
	require.Eventually(t, func() bool { return s.Stats().Received == 2 }, time.Second, 5*time.Millisecond)

	out := logs.String()
	assert.Contains(t, out, "sample frame")
	assert.Contains(t, out, "#00bb00")
	assert.NotContains(t, out, "#aa0000")
	assert.Contains(t, out, "session_id=sample-test")
}

func TestSession_IDsAreUnique(t *testing.T) {
	a := New(newFakeConn(), NewControlQueue(1), &collectSink{}, nil)
	b := New(newFakeConn(), NewControlQueue(1), &collectSink{}, nil)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestConfig_CloneAndNormalize(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.GridPixels = 64
	assert.Equal(t, protocol.DefaultGridPixels, cfg.GridPixels)

	var nilCfg *Config
	assert.Nil(t, nilCfg.Clone())

	n := (&Config{}).normalized()
	assert.Equal(t, protocol.DefaultGridPixels, n.GridPixels)
	assert.Equal(t, time.Second, n.MonitorInterval)
}
