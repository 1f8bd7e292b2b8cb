// Package worker settles generation runs: it drives the simulated progress
// while the model call is outstanding, then commits or discards the result.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/progress"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// Defaults applied when Config fields are zero.
const (
	DefaultHoldDelay   = 300 * time.Millisecond
	DefaultCallTimeout = 120 * time.Second
)

// Config controls Worker behavior.
type Config struct {
	// HoldDelay is how long a finished job shows 100% before going idle.
	HoldDelay time.Duration
	// CallTimeout bounds each remote generation call.
	CallTimeout time.Duration
}

// Worker consumes work items and runs each one to completion.
type Worker struct {
	queue     studio.Queue
	registry  studio.JobRegistry
	generator studio.Generator
	simulator *progress.Simulator
	events    progress.Emitter
	clock     studio.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue studio.Queue,
	registry studio.JobRegistry,
	generator studio.Generator,
	simulator *progress.Simulator,
	events progress.Emitter,
	clock studio.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = progress.Discard
	}
	if simulator == nil {
		simulator = progress.NewSimulator(progress.SimulatorConfig{})
	}
	if cfg.HoldDelay <= 0 {
		cfg.HoldDelay = DefaultHoldDelay
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Worker{
		queue:     queue,
		registry:  registry,
		generator: generator,
		simulator: simulator,
		events:    events,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, studio.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued work item",
			zap.String("content_type", string(item.Key)),
			zap.String("run_id", item.RunID),
			zap.Duration("queued", w.clock.Now().Sub(item.Submitted)),
		)
		// Errors are already settled into the registry and event stream.
		_ = w.Process(ctx, item)
	}
}

// Process runs one generation. The job entry must already have been begun
// under item.RunID. On return the entry is idle again unless the run was
// superseded, in which case the entry is left to its new owner and
// studio.ErrStaleRun is returned.
func (w *Worker) Process(ctx context.Context, item studio.WorkItem) error {
	logger := w.logger.With(
		zap.String("content_type", string(item.Key)),
		zap.String("run_id", item.RunID),
	)
	prompt, err := studio.Prompt(item.Key, item.Transcript)
	if err != nil {
		w.fail(item, 0, err, logger)
		return fmt.Errorf("build prompt: %w", err)
	}

	w.emit(item, progress.StageJobStart, w.simulator.Seed(), 0, "")
	ticker := w.simulator.Start(ctx, func(p int) bool {
		if err := w.registry.Advance(item.Key, item.RunID, p); err != nil {
			return false
		}
		w.emit(item, progress.StageJobProgress, p, 0, "")
		return true
	})

	start := w.clock.Now()
	result, err := w.generate(ctx, prompt)
	ticker.Stop()
	dur := w.clock.Now().Sub(start)

	if err != nil {
		w.fail(item, dur, err, logger)
		return fmt.Errorf("generate %s: %w", item.Key, err)
	}
	if err := w.registry.Complete(item.Key, item.RunID); err != nil {
		logger.Info("discarding result of superseded run", zap.Error(err))
		return err
	}
	w.emit(item, progress.StageJobProgress, 100, 0, "")
	w.hold(ctx)
	if err := w.registry.Commit(item.Key, item.RunID, result); err != nil {
		logger.Info("discarding result of superseded run", zap.Error(err))
		return err
	}
	w.emit(item, progress.StageJobDone, 100, dur, "")
	logger.Info("generation complete", zap.Duration("dur", dur), zap.Int("chars", len([]rune(result))))
	return nil
}

func (w *Worker) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	defer cancel()
	return w.generator.Generate(callCtx, prompt)
}

// hold keeps the completed entry at 100 so clients observe the finish.
func (w *Worker) hold(ctx context.Context) {
	timer := time.NewTimer(w.cfg.HoldDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *Worker) fail(item studio.WorkItem, dur time.Duration, cause error, logger *zap.Logger) {
	if err := w.registry.Fail(item.Key, item.RunID); err != nil {
		logger.Info("failed run was already superseded", zap.Error(err), zap.NamedError("cause", cause))
		return
	}
	logger.Warn("generation failed", zap.Error(cause), zap.Duration("dur", dur))
	w.emit(item, progress.StageJobError, 0, dur, cause.Error())
}

func (w *Worker) emit(item studio.WorkItem, stage progress.Stage, pct int, dur time.Duration, note string) {
	w.events.Emit(progress.Event{
		RunID:       item.RunID,
		TS:          w.clock.Now(),
		Stage:       stage,
		ContentType: string(item.Key),
		Progress:    pct,
		Dur:         dur,
		Note:        note,
	})
}
