package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/config"
	"github.com/JakeFAU/bangla-scribe/internal/live"
	"github.com/JakeFAU/bangla-scribe/internal/metrics"
	"github.com/JakeFAU/bangla-scribe/internal/progress/sinks"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// Studio is the set of operations the API drives.
type Studio interface {
	Snapshot() studio.Snapshot
	Job(key studio.ContentType) (studio.ContentJob, error)
	Generate(ctx context.Context, key studio.ContentType) (studio.ContentJob, error)
	GenerateSelected(ctx context.Context, keys []studio.ContentType) ([]studio.ContentJob, error)
	Selection() []studio.ContentType
	SetSelection(keys []studio.ContentType) error
	ToggleSelection(key studio.ContentType) (bool, error)
	ReplaceTranscript(text string) studio.TranscriptState
	SubmitFile(data []byte, mimeType string) error
	SubmitObject(uri string) error
	StartRecording(ctx context.Context, capture live.Capture, cb live.Callbacks) error
	StopRecording() error
	Reset(ctx context.Context) studio.Snapshot
}

// Feed serves notifications after a sequence number.
type Feed interface {
	Since(seq int64) []sinks.Notification
	Latest() int64
}

// Server wires HTTP handlers to the studio controller.
type Server struct {
	router chi.Router
	studio Studio
	feed   Feed
	cfg    config.Config
	logger *zap.Logger
	// ready reports downstream readiness; nil means always ready.
	ready func(context.Context) error
}

// Option customizes a Server.
type Option func(*Server)

// WithReadiness installs a readiness probe used by /readyz.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) {
		s.ready = check
	}
}

// NewServer constructs a Server with middleware and routes.
func NewServer(st Studio, feed Feed, cfg config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		studio: st,
		feed:   feed,
		cfg:    cfg,
		logger: logger.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		// WebSocket upgrades cannot pass through http.TimeoutHandler.
		r.Get("/live", s.liveSocket)

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(timeout))
			r.Get("/state", s.getState)
			r.Put("/transcript", s.putTranscript)
			r.Post("/transcriptions", s.postTranscription)
			r.Post("/reset", s.postReset)
			r.Get("/notifications", s.getNotifications)

			r.Route("/content", func(r chi.Router) {
				r.Post("/generate", s.generateSelected)
				r.Route("/{content_type}", func(r chi.Router) {
					r.Get("/", s.getContent)
					r.Post("/generate", s.generateOne)
				})
			})

			r.Route("/selection", func(r chi.Router) {
				r.Get("/", s.getSelection)
				r.Put("/", s.putSelection)
				r.Post("/{content_type}/toggle", s.toggleSelection)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("request_id", requestID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		rw.status = http.StatusSwitchingProtocols
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
