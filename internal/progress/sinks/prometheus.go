package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/bangla-scribe/internal/progress"
)

// PrometheusSink exports generation and transcription lifecycle metrics. It
// owns collectors for jobs started/completed/running per content type plus
// transcription and live-session outcomes.
type PrometheusSink struct {
	jobsStarted   *prometheus.CounterVec
	jobsCompleted *prometheus.CounterVec
	jobsRunning   *prometheus.GaugeVec
	jobRuntime    *prometheus.HistogramVec

	transcriptions     *prometheus.CounterVec
	transcribeDuration *prometheus.HistogramVec
	liveSessions       *prometheus.CounterVec
	resets             prometheus.Counter

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_generation_jobs_started_total",
			Help: "Generation jobs started partitioned by content type.",
		}, []string{"content_type"}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_generation_jobs_completed_total",
			Help: "Generation jobs settled partitioned by content type and result.",
		}, []string{"content_type", "result"}),
		jobsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scribe_generation_jobs_running",
			Help: "Generation jobs currently in flight.",
		}, []string{"content_type"}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scribe_generation_duration_seconds",
			Help:    "Remote generation latency per content type.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"content_type", "result"}),
		transcriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_transcriptions_total",
			Help: "File transcriptions settled partitioned by result.",
		}, []string{"result"}),
		transcribeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scribe_transcription_duration_seconds",
			Help:    "Remote transcription latency.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"result"}),
		liveSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_live_sessions_total",
			Help: "Live recording lifecycle events partitioned by event.",
		}, []string{"event"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scribe_resets_total",
			Help: "Studio resets.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsCompleted,
		s.jobsRunning,
		s.jobRuntime,
		s.transcriptions,
		s.transcribeDuration,
		s.liveSessions,
		s.resets,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageJobStart, progress.StageJobDone, progress.StageJobError:
		s.handleJobEvent(evt)
	case progress.StageTranscribeDone:
		s.handleTranscription(evt, "success")
	case progress.StageTranscribeError:
		s.handleTranscription(evt, "error")
	case progress.StageLiveStart:
		s.liveSessions.WithLabelValues("start").Inc()
	case progress.StageLiveStop:
		s.liveSessions.WithLabelValues("stop").Inc()
	case progress.StageLiveError:
		s.liveSessions.WithLabelValues("error").Inc()
	case progress.StageReset:
		s.resets.Inc()
	}
}

func (s *PrometheusSink) handleJobEvent(evt progress.Event) {
	key := evt.ContentType
	switch evt.Stage {
	case progress.StageJobStart:
		s.jobsStarted.WithLabelValues(key).Inc()
		if s.tracker.start(evt.RunID) {
			s.jobsRunning.WithLabelValues(key).Inc()
		}
		return
	case progress.StageJobDone:
		s.jobsCompleted.WithLabelValues(key, "success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageJobError:
		s.jobsCompleted.WithLabelValues(key, "error").Inc()
		s.observeRuntime(evt, "error")
	}
	if s.tracker.complete(evt.RunID) {
		s.jobsRunning.WithLabelValues(key).Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, result string) {
	if evt.Dur > 0 {
		s.jobRuntime.WithLabelValues(evt.ContentType, result).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleTranscription(evt progress.Event, result string) {
	s.transcriptions.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.transcribeDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[string]struct{})}
}

func (t *runTracker) start(runID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[runID]; ok {
		return false
	}
	t.running[runID] = struct{}{}
	return true
}

func (t *runTracker) complete(runID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[runID]; !ok {
		return false
	}
	delete(t.running, runID)
	return true
}
