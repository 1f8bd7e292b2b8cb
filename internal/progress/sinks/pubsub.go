package sinks

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/JakeFAU/bangla-scribe/internal/progress"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// PubSubSink publishes lifecycle milestones to a topic. Progress ticks are
// skipped; subscribers only see starts, outcomes, and resets.
type PubSubSink struct {
	publisher studio.Publisher
	topic     string
}

// NewPubSubSink builds a sink that publishes through publisher.
func NewPubSubSink(publisher studio.Publisher, topic string) *PubSubSink {
	return &PubSubSink{publisher: publisher, topic: topic}
}

// Consume publishes every non-tick event, attempting all of them and
// returning the combined error.
func (s *PubSubSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	var errs error
	for _, evt := range batch {
		if evt.Stage == progress.StageJobProgress {
			continue
		}
		if _, err := s.publisher.Publish(ctx, s.topic, evt); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish %s: %w", evt.Stage, err))
		}
	}
	return errs
}

// Close implements the Sink interface; the publisher is owned by the caller.
func (s *PubSubSink) Close(context.Context) error {
	return nil
}
