// Package metrics exposes Prometheus collectors for the HTTP surface and
// live audio ingestion.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	uploadBytes                prometheus.Histogram
	liveFramesTotal            *prometheus.CounterVec
	liveConnections            prometheus.Gauge
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		uploadBytes = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scribe_upload_bytes",
				Help:    "Size of audio files submitted for transcription.",
				Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
			},
		)

		liveFramesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_live_frames_total",
				Help: "Live audio frames received over WebSocket, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		liveConnections = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribe_live_connections",
				Help: "Open live WebSocket connections.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_rate_limit_delay_seconds",
				Help:    "Time spent waiting for a provider rate limit token.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"provider"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveUpload records the size of an uploaded audio file.
func ObserveUpload(size int64) {
	uploadBytes.Observe(float64(size))
}

// ObserveLiveFrame counts one live frame; outcome is "accepted" or "rejected".
func ObserveLiveFrame(outcome string) {
	liveFramesTotal.WithLabelValues(outcome).Inc()
}

// IncLiveConnections increments the open live connections gauge.
func IncLiveConnections() {
	liveConnections.Inc()
}

// DecLiveConnections decrements the open live connections gauge.
func DecLiveConnections() {
	liveConnections.Dec()
}

// ObserveRateLimitDelay records how long a call waited for its provider's
// rate limit.
func ObserveRateLimitDelay(provider string, d time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(provider).Observe(d.Seconds())
}
