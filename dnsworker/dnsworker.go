// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dnsworker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/gammazero/workerpool"
)

// ErrRejected is returned by [Pool.TrySubmit] when all workers are busy and
// the queue is full.
var ErrRejected = errors.New("dnsworker: pool saturated, task rejected")

// ErrClosed is returned by [Pool.TrySubmit] after the pool has been shut down.
var ErrClosed = errors.New("dnsworker: pool shut down")

// Pool is a bounded pool of lookup workers with a bounded FIFO queue of
// pending tasks. The number of workers lies between the core size and the
// maximum size of the pool; the queue holds at most as many tasks as the
// maximum size.
type Pool struct {
	coreSize int
	maxSize  int

	workers *workerpool.WorkerPool
	mu      sync.Mutex // protects the fields below.
	queue   *deque.Deque[func()]
	alive   int  // number of worker loops currently running.
	closed  bool // no more submissions accepted.
}

// New returns a new Pool with the specified core size and maximum size. The
// maximum size also is the capacity of the queue of pending tasks.
func New(coreSize, maxSize int) (*Pool, error) {
	if coreSize < 0 {
		return nil, fmt.Errorf("dnsworker: core size must not be negative, got %d", coreSize)
	}
	if maxSize < 1 || maxSize < coreSize {
		return nil, fmt.Errorf("dnsworker: max size must be at least 1 and at least core size %d, got %d",
			coreSize, maxSize)
	}
	return &Pool{
		coreSize: coreSize,
		maxSize:  maxSize,
		workers:  workerpool.New(maxSize),
		queue:    deque.New[func()](maxSize),
	}, nil
}

// CoreSize returns the core size of this pool.
func (p *Pool) CoreSize() int { return p.coreSize }

// MaxSize returns the maximum size of this pool, which also is the capacity
// of its queue.
func (p *Pool) MaxSize() int { return p.maxSize }

// TrySubmit submits a task to the pool without ever blocking. The task is
// either handed to a new worker or appended to the queue of pending tasks.
// If all workers are busy and the queue is full, TrySubmit returns
// [ErrRejected] and the task is not scheduled.
func (p *Pool) TrySubmit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.alive < p.coreSize {
		p.spawn(task)
		return nil
	}
	if p.queue.Len() < p.maxSize {
		p.queue.PushBack(task)
		// With a core size of zero there might be no worker at all that
		// would ever pick up the task we just queued...
		if p.alive == 0 {
			p.spawn(nil)
		}
		return nil
	}
	if p.alive < p.maxSize {
		p.spawn(task)
		return nil
	}
	return ErrRejected
}

// spawn a new worker loop, starting with the specified task (if any) and then
// draining the queue. Must be called with the pool's lock held.
func (p *Pool) spawn(first func()) {
	p.alive++
	p.workers.Submit(func() { p.work(first) })
}

// work runs the first task and then keeps pulling tasks off the queue until
// it is empty, at which point the worker loop terminates.
func (p *Pool) work(task func()) {
	for {
		if task != nil {
			task()
		}
		if task = p.next(); task == nil {
			return
		}
	}
}

// next pops the next pending task, or returns nil after unregistering the
// calling worker loop if there isn't any task left.
func (p *Pool) next() func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue.Len() == 0 {
		p.alive--
		return nil
	}
	return p.queue.PopFront()
}

// QueueLen returns the number of pending tasks not yet picked up by any
// worker.
func (p *Pool) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Workers returns the number of currently running workers.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// Shutdown stops the pool from accepting any further tasks and then waits at
// most the specified grace period for all pending and running tasks to
// finish. It returns true if all tasks finished in time, otherwise false; the
// unfinished tasks are left to their own devices.
//
// Shutdown is idempotent.
func (p *Pool) Shutdown(grace time.Duration) bool {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workers.StopWait()
		close(done)
	}()
	wecker := time.NewTimer(grace)
	defer wecker.Stop()
	select {
	case <-done:
		return true
	case <-wecker.C:
		return false
	}
}
