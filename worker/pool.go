// Package worker provides a bounded goroutine pool. The reaper fans
// per-server migration jobs out through it so that one slow migration
// cannot stall a whole sweep.
package worker

import (
	"sync"
)

// Pool manages a fixed number of goroutines draining a shared job queue.
//
// The goroutines are started once and reused. The queue buffers up to
// workerCount*4 pending jobs; Submit blocks when the buffer is full,
// applying natural back-pressure to producers. Stop closes the queue and
// waits for every in-flight job, so no goroutine leaks past shutdown.
type Pool struct {
	workerCount int
	jobs        chan func()
	wg          sync.WaitGroup
}

// NewPool creates a Pool with workerCount goroutines ready to receive
// jobs once Start is called.
func NewPool(workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		workerCount: workerCount,
		jobs:        make(chan func(), workerCount*4),
	}
}

// Start launches the worker goroutines. It must be called exactly once
// before any jobs are submitted.
func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
}

// Submit enqueues job for execution by one of the pool's goroutines. It
// blocks while the buffer is full. Submit must not be called after Stop.
func (p *Pool) Submit(job func()) {
	p.jobs <- job
}

// Stop lets all queued jobs finish and then waits for every worker
// goroutine to exit. No new jobs may be submitted afterwards.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
