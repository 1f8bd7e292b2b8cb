package studio

import "errors"

// Input-missing conditions. They are reported before any state is touched.
var (
	// ErrNoInput is returned when generation is requested without a transcript.
	ErrNoInput = errors.New("no transcript available")
	// ErrNoSelection is returned when a batch generation names no content types.
	ErrNoSelection = errors.New("no content type selected")
	// ErrUnknownContentType is returned for keys outside the fixed set.
	ErrUnknownContentType = errors.New("unknown content type")
)

// Conflict conditions.
var (
	// ErrJobRunning guards the one-in-flight-call-per-key rule.
	ErrJobRunning = errors.New("generation already running for content type")
	// ErrTranscriptionRunning is returned when a second file transcription starts.
	ErrTranscriptionRunning = errors.New("transcription already running")
	// ErrRecordingActive is returned when a live recording is already in progress.
	ErrRecordingActive = errors.New("live recording already active")
	// ErrStaleRun is returned when a run token no longer owns its job entry,
	// typically because the registry was reset while the run was in flight.
	ErrStaleRun = errors.New("run no longer owns job")
)

// ErrCapturePermission signals that no audio capture could be acquired.
var ErrCapturePermission = errors.New("audio capture unavailable")

// ErrQueueClosed is returned by queues that have been shut down.
var ErrQueueClosed = errors.New("queue closed")
