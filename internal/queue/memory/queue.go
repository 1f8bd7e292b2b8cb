// Package memory provides the in-process generation work queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// ErrClosed is returned once the queue has been closed.
var ErrClosed = studio.ErrQueueClosed

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch        chan studio.WorkItem
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch:   make(chan studio.WorkItem, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes an item into the queue or returns if the context ends or
// the queue is closed.
func (q *Queue) Enqueue(ctx context.Context, item studio.WorkItem) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, respecting context cancellation. Items still
// buffered at Close are abandoned.
func (q *Queue) Dequeue(ctx context.Context) (studio.WorkItem, error) {
	select {
	case <-ctx.Done():
		return studio.WorkItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-q.done:
		return studio.WorkItem{}, ErrClosed
	case item := <-q.ch:
		return item, nil
	}
}

// Len reports the number of buffered items.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue for shutdown. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
