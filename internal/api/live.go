package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/audio"
	"github.com/JakeFAU/bangla-scribe/internal/live"
	"github.com/JakeFAU/bangla-scribe/internal/metrics"
)

const (
	defaultMaxFrameBytes = 64 << 10
	defaultWriteTimeout  = 5 * time.Second
	frameBacklog         = 32
)

// Messages sent to live clients.
const (
	liveTypeTranscript = "transcript"
	liveTypeClosed     = "closed"
	liveTypeError      = "error"
)

type liveMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

type liveCommand struct {
	Type string `json:"type"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 << 10,
	WriteBufferSize: 16 << 10,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// liveSocket streams binary float32 frames from the client into a live
// recording and pushes transcript updates back over the same socket.
func (s *Server) liveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("live upgrade failed", zap.Error(err))
		return
	}
	metrics.IncLiveConnections()
	defer metrics.DecLiveConnections()

	maxFrame := int64(s.cfg.Live.MaxFrameBytes)
	if maxFrame <= 0 {
		maxFrame = defaultMaxFrameBytes
	}
	writeTimeout := time.Duration(s.cfg.Live.WriteTimeoutMs) * time.Millisecond
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	conn.SetReadLimit(maxFrame)

	out := &socketWriter{conn: conn, timeout: writeTimeout}
	defer out.close(websocket.CloseNormalClosure, "")

	capture := newSocketCapture()
	closed := make(chan struct{})
	cb := live.Callbacks{
		OnTranscript: func(text string) {
			if err := out.send(liveMessage{Type: liveTypeTranscript, Text: text}); err != nil {
				s.logger.Debug("live transcript write failed", zap.Error(err))
			}
		},
		OnClosed: func(cause error) {
			msg := liveMessage{Type: liveTypeClosed}
			if cause != nil {
				msg.Error = cause.Error()
			}
			if err := out.send(msg); err != nil {
				s.logger.Debug("live close write failed", zap.Error(err))
			}
			out.close(websocket.CloseNormalClosure, "recording stopped")
			close(closed)
		},
	}

	ctx := context.WithoutCancel(r.Context())
	if err := s.studio.StartRecording(ctx, capture, cb); err != nil {
		s.logger.Warn("live recording refused", zap.Error(err))
		_ = out.send(liveMessage{Type: liveTypeError, Error: err.Error()})
		return
	}

	s.readFrames(conn, capture)
	capture.end()

	select {
	case <-closed:
	case <-time.After(writeTimeout):
		s.logger.Warn("live recording did not report close in time")
	}
}

func (s *Server) readFrames(conn *websocket.Conn, capture *socketCapture) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				s.logger.Debug("live read ended", zap.Error(err))
			}
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			frame, err := audio.DecodeFloat32LE(data)
			if err != nil {
				metrics.ObserveLiveFrame("rejected")
				continue
			}
			if !capture.push(frame) {
				return
			}
			metrics.ObserveLiveFrame("accepted")
		case websocket.TextMessage:
			var cmd liveCommand
			if err := json.Unmarshal(data, &cmd); err == nil && cmd.Type == "stop" {
				if err := s.studio.StopRecording(); err != nil {
					s.logger.Warn("live stop incomplete", zap.Error(err))
				}
				return
			}
		}
	}
}

// socketCapture adapts frames read from a WebSocket to live.Capture. The
// read loop is the only sender and the only closer of frames.
type socketCapture struct {
	frames   chan []float32
	done     chan struct{}
	stopOnce sync.Once
	endOnce  sync.Once
}

func newSocketCapture() *socketCapture {
	return &socketCapture{
		frames: make(chan []float32, frameBacklog),
		done:   make(chan struct{}),
	}
}

func (c *socketCapture) Frames() <-chan []float32 { return c.frames }

func (c *socketCapture) Stop() error {
	c.stopOnce.Do(func() { close(c.done) })
	return nil
}

// push forwards a frame and reports false once the capture is stopped.
func (c *socketCapture) push(frame []float32) bool {
	select {
	case c.frames <- frame:
		return true
	case <-c.done:
		return false
	}
}

// end signals that the client stopped sending audio.
func (c *socketCapture) end() {
	c.endOnce.Do(func() { close(c.frames) })
}

// socketWriter serializes writes; gorilla connections allow one writer.
type socketWriter struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
	closed  bool
}

func (w *socketWriter) send(msg liveMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return err
	}
	return w.conn.WriteJSON(msg)
}

func (w *socketWriter) close(code int, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(w.timeout))
	_ = w.conn.Close()
}
