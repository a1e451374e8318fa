// Package workerpool provides a small FIFO job queue used to hand
// completions off whatever goroutine produced them (an L2CAP socket's read
// loop, a controller callback) so that goroutine is never blocked on
// further protocol work.
package workerpool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Job is one unit of deferred work.
type Job func()

// Pool runs submitted jobs in FIFO order across a fixed number of worker
// goroutines. Unbounded concurrency is not required (spec.md §5), so a
// small fixed worker count draining one shared channel is sufficient.
type Pool struct {
	jobs chan Job

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New starts a Pool with the given number of worker goroutines. workers
// must be at least 1.
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	p := &Pool{
		jobs:   make(chan Job, 64),
		group:  group,
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		group.Go(p.runWorker)
	}

	return p
}

func (p *Pool) runWorker() error {
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case job, ok := <-p.jobs:
			if !ok {
				return nil
			}
			job()
		}
	}
}

// Submit enqueues a job. It returns an error if the pool has already been
// closed; it never blocks the caller on job execution itself, only on
// queue capacity. Safe to call concurrently with Close.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("workerpool: pool is closed")
	}
	p.jobs <- job
	return nil
}

// Close stops accepting new jobs, waits for already-queued jobs to drain,
// and reports the first worker failure (workers in this pool never return
// an error themselves, so Close returning non-nil would indicate a bug, not
// a runtime condition).
func (p *Pool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()

		err = p.group.Wait()
		p.cancel()
	})
	return err
}
