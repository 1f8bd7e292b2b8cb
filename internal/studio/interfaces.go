package studio

import (
	"context"
	"time"
)

// AudioPayload is base64-encoded audio plus its MIME type, the form the
// remote provider accepts for both batch and streaming input.
type AudioPayload struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// Generator produces text for a prompt using a hosted model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Transcriber performs one-shot batch transcription.
type Transcriber interface {
	Transcribe(ctx context.Context, audio AudioPayload) (string, error)
}

// LiveEvent is one message received on a live session: a transcript
// fragment, or a terminal error.
type LiveEvent struct {
	Text string
	Err  error
}

// LiveSession is an open streaming transcription channel. Events is closed
// when the session ends for any reason; Close is safe to call more than once.
type LiveSession interface {
	SendAudio(ctx context.Context, chunk AudioPayload) error
	Events() <-chan LiveEvent
	Close() error
}

// LiveTranscriber opens streaming transcription sessions.
type LiveTranscriber interface {
	OpenLiveSession(ctx context.Context) (LiveSession, error)
}

// JobRegistry holds the authoritative per-type job entries. Every mutation
// after Begin must present the run token Begin was given.
type JobRegistry interface {
	Begin(key ContentType, runID string) (ContentJob, error)
	Advance(key ContentType, runID string, progress int) error
	Complete(key ContentType, runID string) error
	Commit(key ContentType, runID string, result string) error
	Fail(key ContentType, runID string) error
	Get(key ContentType) (ContentJob, error)
	Snapshot() []ContentJob
	Reset()
}

// Queue provides enqueue/dequeue semantics for generation work.
type Queue interface {
	Enqueue(ctx context.Context, item WorkItem) error
	Dequeue(ctx context.Context) (WorkItem, error)
}

// Publisher pushes lifecycle notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ObjectReader loads audio stored in an object store.
type ObjectReader interface {
	ReadObject(ctx context.Context, uri string) (data []byte, contentType string, err error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
