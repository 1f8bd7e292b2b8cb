package sinks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/bangla-scribe/internal/progress"
)

// DefaultFeedSize bounds the notification history when no size is configured.
const DefaultFeedSize = 200

// Level classifies a notification for display.
type Level string

// Notification levels.
const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a sequenced, user-visible notice.
type Notification struct {
	Seq         int64          `json:"seq"`
	Timestamp   time.Time      `json:"timestamp"`
	Level       Level          `json:"level"`
	Stage       progress.Stage `json:"stage"`
	ContentType string         `json:"content_type,omitempty"`
	Message     string         `json:"message"`
}

// FeedSink turns lifecycle events into notifications and keeps the most
// recent ones for incremental reads by clients.
type FeedSink struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	items     []Notification
}

// NewFeedSink creates a bounded notification feed.
func NewFeedSink(maxEvents int) *FeedSink {
	if maxEvents <= 0 {
		maxEvents = DefaultFeedSize
	}
	return &FeedSink{
		maxEvents: maxEvents,
		items:     make([]Notification, 0, maxEvents),
	}
}

// Consume records a notification for every event a user should see.
func (f *FeedSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		n, ok := notificationFor(evt)
		if !ok {
			continue
		}
		f.publish(n)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (f *FeedSink) Close(context.Context) error {
	return nil
}

func (f *FeedSink) publish(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextSeq++
	n.Seq = f.nextSeq
	f.items = append(f.items, n)
	if len(f.items) > f.maxEvents {
		trim := len(f.items) - f.maxEvents
		f.items = append([]Notification(nil), f.items[trim:]...)
	}
}

// Since returns notifications with sequence strictly greater than seq.
func (f *FeedSink) Since(seq int64) []Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Notification, 0, len(f.items))
	for _, n := range f.items {
		if n.Seq > seq {
			out = append(out, n)
		}
	}
	return out
}

// Latest returns the highest sequence assigned so far.
func (f *FeedSink) Latest() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nextSeq
}

func notificationFor(evt progress.Event) (Notification, bool) {
	n := Notification{
		Timestamp:   evt.TS,
		Level:       LevelInfo,
		Stage:       evt.Stage,
		ContentType: evt.ContentType,
	}
	switch evt.Stage {
	case progress.StageJobDone:
		n.Message = fmt.Sprintf("%s generated", evt.ContentType)
	case progress.StageJobError:
		n.Message = fmt.Sprintf("%s generation failed", evt.ContentType)
	case progress.StageTranscribeDone:
		n.Message = "transcription complete"
	case progress.StageTranscribeError:
		n.Message = "transcription failed"
	case progress.StageLiveStart:
		n.Message = "live recording started"
	case progress.StageLiveStop:
		n.Message = "live recording stopped"
	case progress.StageLiveError:
		n.Message = "live recording stopped after an error"
	case progress.StageReset:
		n.Message = "studio reset"
	default:
		return Notification{}, false
	}
	if evt.Failure() {
		n.Level = LevelError
		if evt.Note != "" {
			n.Message += ": " + evt.Note
		}
	}
	return n, true
}
