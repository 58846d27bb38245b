// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package workerpool is a bounded FIFO task queue with N persistent
// workers, the only place the orchestrator parallelizes work. Everything
// else in the pipeline is synchronous from the pool's perspective.
package workerpool

import (
	"errors"
	"sync"

	"github.com/baktainer/baktainer/internal/metrics"
)

// ErrPoolShutDown is returned by Future.Await when a task was submitted
// after the pool had already been shut down.
var ErrPoolShutDown = errors.New("worker pool is shut down")

// Task is one unit of work handed to a worker.
type Task func() (interface{}, error)

// Future is resolved once its submitting Task has run.
type Future struct {
	done  chan struct{}
	value interface{}
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(value interface{}, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Await blocks until the task completes and returns its value or error.
func (f *Future) Await() (interface{}, error) {
	<-f.done
	return f.value, f.err
}

type job struct {
	task   Task
	future *Future
}

// Pool is a bounded FIFO queue of Tasks served by a fixed worker count.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup

	mu       sync.Mutex
	shutdown bool
	killed   bool
}

// New starts a Pool with workerCount persistent workers and a queue of
// queueSize pending jobs.
func New(workerCount, queueSize int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{jobs: make(chan job, queueSize)}

	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		metrics.WorkerPoolQueueDepth.Set(float64(len(p.jobs)))

		p.mu.Lock()
		killed := p.killed
		p.mu.Unlock()
		if killed {
			j.future.resolve(nil, ErrPoolShutDown)
			continue
		}

		value, err := j.task()
		j.future.resolve(value, err)
	}
}

// Submit enqueues task and returns a Future that resolves once it runs. If
// the pool has already been shut down, the returned Future resolves
// immediately to ErrPoolShutDown.
func (p *Pool) Submit(task Task) *Future {
	future := newFuture()

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		future.resolve(nil, ErrPoolShutDown)
		return future
	}
	p.jobs <- job{task: task, future: future}
	metrics.WorkerPoolQueueDepth.Set(float64(len(p.jobs)))
	p.mu.Unlock()

	return future
}

// Shutdown drains the queue and waits for every worker to finish its
// current and already-queued tasks. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.shutdown = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

// Kill stops accepting new work immediately: any task still queued
// resolves to ErrPoolShutDown without running. Workers already executing a
// task still finish it. Kill does not block; call Shutdown afterward (or
// rely on process exit) to join workers.
func (p *Pool) Kill() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.shutdown = true
	p.killed = true
	close(p.jobs)
	p.mu.Unlock()
}
