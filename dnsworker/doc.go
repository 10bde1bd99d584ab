/*
Package dnsworker implements a bounded pool of lookup workers, with a bounded
FIFO queue of pending lookup tasks. Submissions never block: when all workers
are busy and the queue is full, a submission gets rejected instead, so that
the submitter can apply its own backpressure.

Admission follows the well-known rules of thread pool executors:
  - while fewer than the core number of workers are running, a new worker
    gets started for the submitted task;
  - otherwise the task is queued, as long as the queue isn't full;
  - otherwise, a new worker gets started as long as the maximum number of
    workers hasn't been reached yet;
  - otherwise, the task gets rejected with [ErrRejected].

Workers keep pulling tasks off the queue and terminate as soon as the queue
runs dry.

Usage

	pool, err := dnsworker.New(1, 4)
	if err != nil {
	    ...
	}
	if err := pool.TrySubmit(func() {
	    // look up something...
	}); errors.Is(err, dnsworker.ErrRejected) {
	    // back off a little...
	}
	pool.Shutdown(time.Minute)

# Acknowledgements

Under its hood, [Pool] leverages [gammazero/workerpool] for running the
worker goroutines, and [gammazero/deque] as the queue of pending tasks.

[gammazero/workerpool]: https://github.com/gammazero/workerpool
[gammazero/deque]: https://github.com/gammazero/deque
*/
package dnsworker
