// Package memory provides the in-process email work queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

// ErrClosed is returned once the queue has been closed and drained.
var ErrClosed = scraper.ErrQueueClosed

// ErrFull is returned by TryEnqueue when every slot is taken.
var ErrFull = scraper.ErrQueueFull

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan scraper.EmailWork
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch: make(chan scraper.EmailWork, capacity),
	}
}

// Enqueue pushes work into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item scraper.EmailWork) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// TryEnqueue pushes work only if a slot is free right now. It returns ErrFull instead of
// waiting for a consumer.
func (q *Queue) TryEnqueue(ctx context.Context, item scraper.EmailWork) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue pops the next item, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (scraper.EmailWork, error) {
	select {
	case <-ctx.Done():
		return scraper.EmailWork{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return scraper.EmailWork{}, ErrClosed
		}
		return item, nil
	}
}

// Len reports how many items are waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting work. Items already queued can still be dequeued.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
