// Package patternsim serves a stand-in pattern source for development and
// integration tests. It speaks the same WebSocket dialect as the hardware:
// binary preview frames after a {"sendUpdates":true} request, a JSON
// configuration reply to {"getConfig":true}, and periodic pings.
package patternsim

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/pixelbridge/pkg/protocol"
)

// Config configures the simulator.
type Config struct {
	// Name is reported in the configuration reply.
	Name string

	// Pixels is the number of pixels per preview frame.
	// Default: 16.
	Pixels int

	// FPS is the preview frame rate.
	// Default: 30.
	FPS int

	// PingInterval is the time between server pings. Zero disables pings.
	PingInterval time.Duration

	// StreamWithoutSubscribe starts streaming right after the upgrade
	// instead of waiting for a sendUpdates request.
	StreamWithoutSubscribe bool
}

// MaxFPS bounds the preview frame rate so the frame interval stays well
// above zero.
const MaxFPS = 1000

// DefaultConfig returns the simulator defaults.
func DefaultConfig() Config {
	return Config{
		Name:         "pixelsim",
		Pixels:       protocol.DefaultGridPixels,
		FPS:          30,
		PingInterval: 5 * time.Second,
	}
}

// Server is an http.Handler that upgrades every request to a simulated
// pattern source connection.
type Server struct {
	config   Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	commands []string

	connections atomic.Int64
	framesSent  atomic.Int64
	pongs       atomic.Int64
}

// New creates a simulator.
func New(cfg Config, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Pixels <= 0 {
		cfg.Pixels = def.Pixels
	}
	if cfg.FPS <= 0 {
		cfg.FPS = def.FPS
	}
	if cfg.FPS > MaxFPS {
		cfg.FPS = MaxFPS
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The bridge sends the pattern source's own origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "patternsim"),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	s.mu.Lock()
	s.conns[ws] = struct{}{}
	s.mu.Unlock()
	s.connections.Add(1)

	s.logger.Info("client connected", "remote", r.RemoteAddr)
	s.serve(ws)

	s.mu.Lock()
	delete(s.conns, ws)
	s.mu.Unlock()
	ws.Close()
	s.logger.Info("client disconnected", "remote", r.RemoteAddr)
}

// serve runs one connection. The read side runs in its own goroutine and
// hands replies to the writer, which is the only goroutine writing data
// frames.
func (s *Server) serve(ws *websocket.Conn) {
	replies := make(chan []byte, 4)
	subscribe := make(chan struct{}, 1)
	done := make(chan struct{})

	ws.SetPongHandler(func(string) error {
		s.pongs.Add(1)
		return nil
	})

	go func() {
		defer close(done)
		for {
			mt, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			s.recordCommand(string(msg))

			switch string(msg) {
			case protocol.TextSendUpdates:
				select {
				case subscribe <- struct{}{}:
				default:
				}
			case protocol.TextGetConfig:
				select {
				case replies <- s.configReply():
				default:
				}
			}
		}
	}()

	frameTicker := time.NewTicker(time.Second / time.Duration(s.config.FPS))
	defer frameTicker.Stop()

	var pings <-chan time.Time
	if s.config.PingInterval > 0 {
		t := time.NewTicker(s.config.PingInterval)
		defer t.Stop()
		pings = t.C
	}

	streaming := s.config.StreamWithoutSubscribe
	var seq int
	for {
		select {
		case <-done:
			return

		case <-subscribe:
			streaming = true

		case msg := <-replies:
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-pings:
			deadline := time.Now().Add(time.Second)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}

		case <-frameTicker.C:
			if !streaming {
				continue
			}
			seq++
			frame := protocol.EncodePreviewFrame(Rainbow(s.config.Pixels, seq))
			if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
			s.framesSent.Add(1)
		}
	}
}

func (s *Server) configReply() []byte {
	reply, _ := json.Marshal(map[string]any{
		"name":       s.config.Name,
		"pixelCount": s.config.Pixels,
		"fps":        s.config.FPS,
		"brightness": 1,
	})
	return reply
}

func (s *Server) recordCommand(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
}

// Commands returns the text commands received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Connections returns the number of connections accepted so far.
func (s *Server) Connections() int64 {
	return s.connections.Load()
}

// FramesSent returns the number of preview frames written.
func (s *Server) FramesSent() int64 {
	return s.framesSent.Load()
}

// Pongs returns the number of pongs received.
func (s *Server) Pongs() int64 {
	return s.pongs.Load()
}

// DropAll closes every open connection without a close handshake.
func (s *Server) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ws := range s.conns {
		ws.UnderlyingConn().Close()
	}
}

// Rainbow returns n pixels of a hue wheel rotated by step.
func Rainbow(n, step int) protocol.PixelFrame {
	pixels := make(protocol.PixelFrame, n)
	for i := range pixels {
		hue := math.Mod(float64(i)*360/float64(n)+float64(step)*6, 360)
		pixels[i] = hsv(hue, 1, 1)
	}
	return pixels
}

// hsv converts a hue in degrees and saturation/value in [0,1] to RGB.
func hsv(h, s, v float64) protocol.Pixel {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return protocol.Pixel{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
	}
}
