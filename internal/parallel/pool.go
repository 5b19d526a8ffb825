// Package parallel provides a bounded worker pool used by the bundled
// branch-and-bound engine to evaluate LP relaxations of frontier nodes
// concurrently. The pool gives controlled concurrency with backpressure:
// submissions block when all workers are busy, which keeps the search
// frontier from outrunning the evaluators.
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// ErrPoolShutdown is returned when submitting tasks to a shut-down pool.
var ErrPoolShutdown = fmt.Errorf("worker pool has been shutdown")

// WorkerPool manages a fixed set of goroutines processing submitted tasks.
type WorkerPool struct {
	maxWorkers   int
	taskChan     chan func()
	workerWg     sync.WaitGroup
	shutdownChan chan struct{}
	once         sync.Once
}

// NewWorkerPool creates a pool with the given number of workers.
// If maxWorkers is 0 or negative, it defaults to the number of CPU cores.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	pool := &WorkerPool{
		maxWorkers:   maxWorkers,
		taskChan:     make(chan func(), maxWorkers),
		shutdownChan: make(chan struct{}),
	}
	for i := 0; i < maxWorkers; i++ {
		pool.workerWg.Add(1)
		go pool.worker()
	}
	return pool
}

func (wp *WorkerPool) worker() {
	defer wp.workerWg.Done()
	for {
		select {
		case task := <-wp.taskChan:
			if task != nil {
				task()
			}
		case <-wp.shutdownChan:
			return
		}
	}
}

// Submit hands a task to the pool, blocking until a worker slot frees up,
// the context is cancelled, or the pool is shut down.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case wp.taskChan <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	}
}

// Workers returns the configured worker count.
func (wp *WorkerPool) Workers() int { return wp.maxWorkers }

// Shutdown stops the pool, waiting for in-flight tasks to complete.
// It is safe to call more than once.
func (wp *WorkerPool) Shutdown() {
	wp.once.Do(func() {
		close(wp.shutdownChan)
		wp.workerWg.Wait()
	})
}
