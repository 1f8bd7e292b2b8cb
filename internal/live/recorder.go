// Package live owns the live recording lifecycle: the capture stream, the
// PCM pump feeding the remote session, and the fragments coming back.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/audio"
	"github.com/JakeFAU/bangla-scribe/internal/progress"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// Capture is a source of mono float32 frames sampled at audio.SampleRate.
// Frames is closed when the source ends; Stop releases the source.
type Capture interface {
	Frames() <-chan []float32
	Stop() error
}

// Transcript receives live fragments.
type Transcript interface {
	Append(fragment string) string
}

// Callbacks observe one recording. Both are optional and are called from
// recorder goroutines.
type Callbacks struct {
	// OnTranscript receives the whole transcript after each fragment.
	OnTranscript func(text string)
	// OnClosed fires once when the recording ends; cause is nil for a
	// user-initiated or remote close.
	OnClosed func(cause error)
}

// Recorder runs at most one recording at a time.
type Recorder struct {
	live       studio.LiveTranscriber
	transcript Transcript
	events     progress.Emitter
	clock      studio.Clock
	logger     *zap.Logger

	mu     sync.Mutex
	active *recording
	wg     sync.WaitGroup
}

type recording struct {
	capture   Capture
	callbacks Callbacks
	started   time.Time

	// Set under Recorder.mu once the session is open.
	session      studio.LiveSession
	cancel       context.CancelFunc
	pumpDone     chan struct{}
	consumerDone chan struct{}
}

// NewRecorder constructs a Recorder.
func NewRecorder(
	live studio.LiveTranscriber,
	transcript Transcript,
	events progress.Emitter,
	clock studio.Clock,
	logger *zap.Logger,
) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = progress.Discard
	}
	return &Recorder{
		live:       live,
		transcript: transcript,
		events:     events,
		clock:      clock,
		logger:     logger,
	}
}

// Active reports whether a recording is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Start opens a live session and begins streaming capture. A nil capture
// means permission was not granted; nothing is started in that case. If the
// session cannot be opened the capture is released before returning.
func (r *Recorder) Start(ctx context.Context, capture Capture, cb Callbacks) error {
	if capture == nil {
		r.emit(progress.StageLiveError, 0, studio.ErrCapturePermission.Error())
		return studio.ErrCapturePermission
	}
	rec := &recording{capture: capture, callbacks: cb, started: r.clock.Now()}

	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return studio.ErrRecordingActive
	}
	r.active = rec
	r.mu.Unlock()

	recCtx, cancel := context.WithCancel(ctx)
	session, err := r.live.OpenLiveSession(recCtx)
	if err != nil {
		cancel()
		r.detach(rec, false)
		err = multierr.Append(fmt.Errorf("open live session: %w", err), stopErr("stop capture", capture.Stop()))
		r.logger.Warn("live session failed to open", zap.Error(err))
		r.emit(progress.StageLiveError, 0, err.Error())
		return err
	}

	r.mu.Lock()
	if r.active != rec {
		r.mu.Unlock()
		cancel()
		return multierr.Combine(
			errors.New("recording stopped while starting"),
			stopErr("close live session", session.Close()),
		)
	}
	rec.session = session
	rec.cancel = cancel
	rec.pumpDone = make(chan struct{})
	rec.consumerDone = make(chan struct{})
	r.mu.Unlock()

	go r.pump(recCtx, rec)
	go r.consume(rec)
	r.emit(progress.StageLiveStart, 0, "")
	r.logger.Info("live recording started")
	return nil
}

// Stop ends the active recording, if any. Every teardown step is attempted
// and their errors are combined. Stopping an idle recorder returns nil.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	rec := r.active
	r.active = nil
	r.mu.Unlock()
	if rec == nil {
		return nil
	}
	return r.teardown(rec, nil)
}

// Wait blocks until stops triggered by session errors or remote closes have
// finished releasing resources.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) pump(ctx context.Context, rec *recording) {
	defer close(rec.pumpDone)
	frames := rec.capture.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				r.stopAsync(rec, nil)
				return
			}
			if len(frame) == 0 {
				continue
			}
			if err := rec.session.SendAudio(ctx, audio.EncodePCM(frame)); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.stopAsync(rec, fmt.Errorf("send audio: %w", err))
				return
			}
		}
	}
}

func (r *Recorder) consume(rec *recording) {
	defer close(rec.consumerDone)
	for evt := range rec.session.Events() {
		if evt.Err != nil {
			r.stopAsync(rec, fmt.Errorf("live session: %w", evt.Err))
			return
		}
		if evt.Text == "" {
			continue
		}
		text := r.transcript.Append(evt.Text)
		if rec.callbacks.OnTranscript != nil {
			rec.callbacks.OnTranscript(text)
		}
	}
	r.stopAsync(rec, nil)
}

// stopAsync tears rec down from one of its own goroutines, which the
// teardown waits on, so the work moves to a fresh goroutine.
func (r *Recorder) stopAsync(rec *recording, cause error) {
	if !r.detach(rec, true) {
		return
	}
	go func() {
		defer r.wg.Done()
		if err := r.teardown(rec, cause); err != nil {
			r.logger.Warn("live teardown incomplete", zap.Error(err))
		}
	}()
}

// detach clears rec as the active recording. When track is set the pending
// teardown is registered with wg under the same lock, so a concurrent Stop
// that finds nothing active still waits for it in Wait.
func (r *Recorder) detach(rec *recording, track bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != rec {
		return false
	}
	r.active = nil
	if track {
		r.wg.Add(1)
	}
	return true
}

func (r *Recorder) teardown(rec *recording, cause error) error {
	var errs error
	if rec.cancel != nil {
		rec.cancel()
	}
	errs = multierr.Append(errs, stopErr("stop capture", rec.capture.Stop()))
	if rec.pumpDone != nil {
		<-rec.pumpDone
	}
	if rec.session != nil {
		errs = multierr.Append(errs, stopErr("close live session", rec.session.Close()))
		<-rec.consumerDone
	}

	dur := r.clock.Now().Sub(rec.started)
	if cause != nil {
		r.logger.Warn("live recording stopped after error", zap.Error(cause), zap.Duration("dur", dur))
		r.emit(progress.StageLiveError, dur, cause.Error())
	} else {
		r.logger.Info("live recording stopped", zap.Duration("dur", dur))
		r.emit(progress.StageLiveStop, dur, "")
	}
	if rec.callbacks.OnClosed != nil {
		rec.callbacks.OnClosed(cause)
	}
	return errs
}

func stopErr(step string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", step, err)
}

func (r *Recorder) emit(stage progress.Stage, dur time.Duration, note string) {
	r.events.Emit(progress.Event{
		TS:    r.clock.Now(),
		Stage: stage,
		Dur:   dur,
		Note:  note,
	})
}
