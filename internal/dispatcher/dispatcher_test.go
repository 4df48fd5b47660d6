package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	queuemem "github.com/JakeFAU/zone-scraper/internal/queue/memory"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
	"github.com/JakeFAU/zone-scraper/internal/worker"
)

// TestDispatcherRunStartsWorkers ensures workers begin processing and stop on cancel.
func TestDispatcherRunStartsWorkers(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 2)}
	workers := []*worker.Worker{
		worker.New(queue, nil, nil, nil, nil, worker.Config{}, zap.NewNop()),
		worker.New(queue, nil, nil, nil, nil, worker.Config{}, zap.NewNop()),
	}
	dispatch := New(queue, workers)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	for range workers {
		select {
		case <-queue.started:
		case <-time.After(time.Second):
			t.Fatal("worker did not begin dequeuing")
		}
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

// TestDispatcherRunReturnsWhenQueueCloses verifies a closed queue drains the pool.
func TestDispatcherRunReturnsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	queue := &errorQueue{err: scraper.ErrQueueClosed}
	dispatch := New(queue, []*worker.Worker{worker.New(queue, nil, nil, nil, nil, worker.Config{}, nil)})

	done := make(chan struct{})
	go func() {
		dispatch.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after queue close")
	}
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	queue := &errorQueue{err: errors.New("boom")}
	dispatch := New(queue, nil)

	err := dispatch.Enqueue(context.Background(), scraper.EmailWork{JobID: "job"})
	if err == nil || err.Error() != "queue enqueue: boom" {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestDispatcherTryEnqueue(t *testing.T) {
	t.Parallel()

	full := queuemem.NewQueue(1)
	dispatch := New(full, nil)
	require.NoError(t, dispatch.TryEnqueue(context.Background(), scraper.EmailWork{JobID: "first"}))
	err := dispatch.TryEnqueue(context.Background(), scraper.EmailWork{JobID: "second"})
	require.ErrorIs(t, err, scraper.ErrQueueFull)
	require.EqualError(t, err, "queue enqueue: queue full")

	// Queues without a non-blocking path go through Enqueue.
	fallback := New(&errorQueue{err: errors.New("boom")}, nil)
	require.EqualError(t, fallback.TryEnqueue(context.Background(), scraper.EmailWork{}), "queue enqueue: boom")
}

type blockingQueue struct {
	started chan struct{}
}

func (q *blockingQueue) Enqueue(context.Context, scraper.EmailWork) error {
	return nil
}

func (q *blockingQueue) Dequeue(ctx context.Context) (scraper.EmailWork, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return scraper.EmailWork{}, fmt.Errorf("blocking dequeue canceled: %w", ctx.Err())
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, scraper.EmailWork) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (scraper.EmailWork, error) {
	return scraper.EmailWork{}, q.err
}
