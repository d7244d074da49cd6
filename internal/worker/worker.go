package worker

import (
	"context"
	"log/slog"
	"sync"
)

type ProcessFunc[T any] func(ctx context.Context, job T) error

type WorkerPool[T any] struct {
	name       string
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	wg         sync.WaitGroup
}

func NewWorkerPool[T any](name string, numWorkers int, bufferSize int, processor ProcessFunc[T]) *WorkerPool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool[T]{
		name:       name,
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

func (wp *WorkerPool[T]) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool[T]) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			if err := wp.processor(ctx, job); err != nil {
				slog.Debug("job failed", "pool", wp.name, "worker", id, "error", err)
			}
		}
	}
}

// Submit queues a job, blocking while the buffer is full. It gives up
// when ctx is done so callers never block on a pool whose workers exited.
func (wp *WorkerPool[T]) Submit(ctx context.Context, job T) error {
	select {
	case wp.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queue and waits for workers to finish.
func (wp *WorkerPool[T]) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
}
