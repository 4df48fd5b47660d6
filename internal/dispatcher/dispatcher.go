// Package dispatcher fans email work out to a pool of workers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
	"github.com/JakeFAU/zone-scraper/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   scraper.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue scraper.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until every worker has returned, which happens when the
// context finishes or the queue closes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item scraper.EmailWork) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

type tryEnqueuer interface {
	TryEnqueue(ctx context.Context, item scraper.EmailWork) error
}

// TryEnqueue hands work to the queue without waiting for a free slot when the queue supports
// it. Queues without a non-blocking path fall back to Enqueue.
func (d *Dispatcher) TryEnqueue(ctx context.Context, item scraper.EmailWork) error {
	q, ok := d.queue.(tryEnqueuer)
	if !ok {
		return d.Enqueue(ctx, item)
	}
	if err := q.TryEnqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
