// Package dispatcher starts generation runs and fans queued work out to a
// pool of workers.
package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/studio"
	"github.com/JakeFAU/bangla-scribe/internal/worker"
)

// TranscriptSource exposes the current transcript text.
type TranscriptSource interface {
	Text() string
}

// Dispatcher begins jobs in the registry and hands them to workers.
type Dispatcher struct {
	queue      studio.Queue
	workers    []*worker.Worker
	registry   studio.JobRegistry
	transcript TranscriptSource
	ids        studio.IDGenerator
	clock      studio.Clock
	logger     *zap.Logger
}

// New creates a Dispatcher.
func New(
	queue studio.Queue,
	workers []*worker.Worker,
	registry studio.JobRegistry,
	transcript TranscriptSource,
	ids studio.IDGenerator,
	clock studio.Clock,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:      queue,
		workers:    workers,
		registry:   registry,
		transcript: transcript,
		ids:        ids,
		clock:      clock,
		logger:     logger,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item studio.WorkItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Generate starts one generation for key against the current transcript and
// returns the job entry as begun. Input errors leave every entry untouched.
func (d *Dispatcher) Generate(ctx context.Context, key studio.ContentType) (studio.ContentJob, error) {
	if !key.Valid() {
		return studio.ContentJob{}, fmt.Errorf("%w: %q", studio.ErrUnknownContentType, key)
	}
	text, err := d.currentTranscript()
	if err != nil {
		return studio.ContentJob{}, err
	}
	return d.start(ctx, key, text)
}

// GenerateSelected starts a generation for every key concurrently. Keys are
// validated up front; after that each key succeeds or fails on its own and
// the returned error combines the individual failures.
func (d *Dispatcher) GenerateSelected(ctx context.Context, keys []studio.ContentType) ([]studio.ContentJob, error) {
	if len(keys) == 0 {
		return nil, studio.ErrNoSelection
	}
	wanted := make(map[studio.ContentType]bool, len(keys))
	for _, key := range keys {
		if !key.Valid() {
			return nil, fmt.Errorf("%w: %q", studio.ErrUnknownContentType, key)
		}
		wanted[key] = true
	}
	text, err := d.currentTranscript()
	if err != nil {
		return nil, err
	}

	ordered := make([]studio.ContentType, 0, len(wanted))
	for _, key := range studio.ContentTypes() {
		if wanted[key] {
			ordered = append(ordered, key)
		}
	}

	started := make([]studio.ContentJob, len(ordered))
	errs := make([]error, len(ordered))
	var wg sync.WaitGroup
	for i, key := range ordered {
		wg.Add(1)
		go func(i int, key studio.ContentType) {
			defer wg.Done()
			started[i], errs[i] = d.start(ctx, key, text)
		}(i, key)
	}
	wg.Wait()

	jobs := make([]studio.ContentJob, 0, len(ordered))
	for i := range ordered {
		if errs[i] == nil {
			jobs = append(jobs, started[i])
		}
	}
	return jobs, multierr.Combine(errs...)
}

func (d *Dispatcher) currentTranscript() (string, error) {
	text := d.transcript.Text()
	if strings.TrimSpace(text) == "" {
		return "", studio.ErrNoInput
	}
	return text, nil
}

func (d *Dispatcher) start(ctx context.Context, key studio.ContentType, text string) (studio.ContentJob, error) {
	runID, err := d.ids.NewID()
	if err != nil {
		return studio.ContentJob{}, fmt.Errorf("new run id: %w", err)
	}
	job, err := d.registry.Begin(key, runID)
	if err != nil {
		return studio.ContentJob{}, fmt.Errorf("begin %s: %w", key, err)
	}
	item := studio.WorkItem{Key: key, RunID: runID, Transcript: text, Submitted: d.clock.Now()}
	if err := d.Enqueue(ctx, item); err != nil {
		if failErr := d.registry.Fail(key, runID); failErr != nil {
			d.logger.Warn("roll back unqueued job", zap.String("content_type", string(key)), zap.Error(failErr))
		}
		return studio.ContentJob{}, fmt.Errorf("dispatch %s: %w", key, err)
	}
	d.logger.Debug("generation dispatched", zap.String("content_type", string(key)), zap.String("run_id", runID))
	return job, nil
}
