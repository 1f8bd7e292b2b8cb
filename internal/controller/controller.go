// Package controller composes the studio: job registry, batch dispatcher,
// transcription, live recording, and the batch selection. It is the single
// entry point the API drives.
package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/dispatcher"
	"github.com/JakeFAU/bangla-scribe/internal/live"
	"github.com/JakeFAU/bangla-scribe/internal/progress"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
	"github.com/JakeFAU/bangla-scribe/internal/transcribe"
)

// Deps bundles the collaborators of a Controller.
type Deps struct {
	Registry      studio.JobRegistry
	Dispatcher    *dispatcher.Dispatcher
	Transcription *transcribe.Service
	Recorder      *live.Recorder
	Selection     *studio.Selection
	Events        progress.Emitter
	Clock         studio.Clock
	Logger        *zap.Logger
}

// Controller exposes every studio operation.
type Controller struct {
	registry      studio.JobRegistry
	dispatcher    *dispatcher.Dispatcher
	transcription *transcribe.Service
	recorder      *live.Recorder
	selection     *studio.Selection
	events        progress.Emitter
	clock         studio.Clock
	logger        *zap.Logger
}

// New constructs a Controller.
func New(deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = progress.Discard
	}
	if deps.Selection == nil {
		deps.Selection = studio.NewSelection()
	}
	return &Controller{
		registry:      deps.Registry,
		dispatcher:    deps.Dispatcher,
		transcription: deps.Transcription,
		recorder:      deps.Recorder,
		selection:     deps.Selection,
		events:        deps.Events,
		clock:         deps.Clock,
		logger:        deps.Logger,
	}
}

// Snapshot returns a consistent copy of each part of the studio state.
func (c *Controller) Snapshot() studio.Snapshot {
	return studio.Snapshot{
		Transcript: c.transcription.Store().State(),
		Jobs:       c.registry.Snapshot(),
		Selection:  c.selection.Keys(),
		Recording:  c.recorder.Active(),
	}
}

// Job returns the entry for one content type.
func (c *Controller) Job(key studio.ContentType) (studio.ContentJob, error) {
	return c.registry.Get(key)
}

// Generate starts generation for one content type.
func (c *Controller) Generate(ctx context.Context, key studio.ContentType) (studio.ContentJob, error) {
	return c.dispatcher.Generate(ctx, key)
}

// GenerateSelected starts generation for keys, or for the current selection
// when keys is nil.
func (c *Controller) GenerateSelected(ctx context.Context, keys []studio.ContentType) ([]studio.ContentJob, error) {
	if keys == nil {
		keys = c.selection.Keys()
	}
	return c.dispatcher.GenerateSelected(ctx, keys)
}

// Selection returns the selected content types in display order.
func (c *Controller) Selection() []studio.ContentType {
	return c.selection.Keys()
}

// SetSelection replaces the selection.
func (c *Controller) SetSelection(keys []studio.ContentType) error {
	return c.selection.Set(keys)
}

// ToggleSelection flips one content type in the selection.
func (c *Controller) ToggleSelection(key studio.ContentType) (bool, error) {
	return c.selection.Toggle(key)
}

// ReplaceTranscript overwrites the transcript text.
func (c *Controller) ReplaceTranscript(text string) studio.TranscriptState {
	store := c.transcription.Store()
	store.Replace(text)
	return store.State()
}

// SubmitFile starts transcription of an uploaded file.
func (c *Controller) SubmitFile(data []byte, mimeType string) error {
	return c.transcription.SubmitFile(data, mimeType)
}

// SubmitObject starts transcription of a stored object.
func (c *Controller) SubmitObject(uri string) error {
	return c.transcription.SubmitObject(uri)
}

// StartRecording begins a live recording fed by capture.
func (c *Controller) StartRecording(ctx context.Context, capture live.Capture, cb live.Callbacks) error {
	return c.recorder.Start(ctx, capture, cb)
}

// StopRecording ends the live recording, if any.
func (c *Controller) StopRecording() error {
	return c.recorder.Stop()
}

// Reset stops live recording, clears the transcript and every result, and
// returns every job to idle. The selection is kept. Reset is idempotent; a
// failing recording teardown is logged and does not block the rest.
func (c *Controller) Reset(_ context.Context) studio.Snapshot {
	if err := c.recorder.Stop(); err != nil {
		c.logger.Warn("live teardown during reset incomplete", zap.Error(err))
	}
	c.transcription.Store().Clear()
	c.registry.Reset()
	c.events.Emit(progress.Event{TS: c.clock.Now(), Stage: progress.StageReset})
	c.logger.Info("studio reset")
	return c.Snapshot()
}

// Close stops recording and waits for background work owned by the studio.
func (c *Controller) Close() error {
	err := c.recorder.Stop()
	c.recorder.Wait()
	c.transcription.Wait()
	if err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}
	return nil
}
