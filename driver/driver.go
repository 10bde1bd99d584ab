// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siemens/ilookup/dnsworker"
	"github.com/siemens/ilookup/metrics"
	"github.com/siemens/ilookup/types"

	"github.com/thediveo/lxkns/log"
)

// Resolver resolves a single host name. Resolution errors are reported as
// part of the returned [types.Resolution].
type Resolver interface {
	Resolve(ctx context.Context, host string) types.Resolution
}

// Driver submits lookup tasks to a bounded worker pool, applying backpressure
// whenever the pool rejects a submission because it is saturated. Each lookup
// task resolves all configured host names in their configured order.
type Driver struct {
	cfg      Config
	resolver Resolver
	pool     *dnsworker.Pool
	metrics  *metrics.Metrics

	outmu     sync.Mutex // serializes writing task output blocks.
	out       io.Writer
	errout    io.Writer
	failstyle func(string) string

	submitted atomic.Int64
	rejected  atomic.Int64
	dropped   atomic.Int64
	completed atomic.Int64
	resolved  atomic.Int64
	failed    atomic.Int64
}

// Option can be passed to New when creating new [Driver] objects.
type Option func(*Driver)

// Stats is a snapshot of a Driver's statistics.
type Stats struct {
	Submitted int64 // lookup tasks accepted by the worker pool.
	Rejected  int64 // submissions rejected by the worker pool.
	Dropped   int64 // rejected tasks that were not resubmitted.
	Completed int64 // lookup tasks run to completion.
	Resolved  int64 // successful host name lookups.
	Failed    int64 // failed host name lookups.
	Queued    int   // lookup tasks currently waiting for a worker.
	Workers   int   // currently running workers.
}

// New returns a new Driver for the specified configuration, using the
// specified resolver for all lookups. Unless told otherwise using
// [WithOutput], the driver writes successful lookups to stdout and failures to
// stderr.
func New(cfg Config, resolver Resolver, options ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := dnsworker.New(cfg.PoolSize, cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	d := &Driver{
		cfg:       cfg,
		resolver:  resolver,
		pool:      pool,
		out:       os.Stdout,
		errout:    os.Stderr,
		failstyle: func(s string) string { return s },
	}
	for _, opt := range options {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = metrics.New(nil)
	}
	return d, nil
}

// WithOutput sets the writers for successful lookups and lookup failures.
func WithOutput(out, errout io.Writer) Option {
	return func(d *Driver) {
		d.out = out
		d.errout = errout
	}
}

// WithMetrics accounts tasks and lookups using the specified metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithFailureStyle renders failure reports using the specified style
// function, such as for coloring.
func WithFailureStyle(style func(string) string) Option {
	return func(d *Driver) {
		d.failstyle = style
	}
}

// Run submits the configured number of lookup tasks, or keeps submitting
// until the context gets cancelled when the number of executions is
// unbounded. When the pool rejects a task, Run sleeps and only resumes
// submitting after the pool's queue has shrunk to at most the pool's core
// size.
//
// Finally, Run shuts down the worker pool and waits at most the configured
// grace period for any in-flight tasks to finish. Cancelling the context
// never cancels lookup tasks that have already been started.
func (d *Driver) Run(ctx context.Context) error {
	log.Infof("running %s lookup tasks for %v using pool size %d, max size %d",
		d.executions(), d.cfg.Hosts, d.cfg.PoolSize, d.cfg.MaxSize)
	taskctx := context.WithoutCancel(ctx)
	for n := int64(0); d.cfg.IsUnbounded() || n < d.cfg.Executions; n++ {
		if ctx.Err() != nil || !d.submit(ctx, d.task(taskctx)) {
			log.Infof("lookup submission interrupted after %d tasks", n)
			break
		}
	}
	if !d.pool.Shutdown(d.cfg.ShutdownGrace) {
		log.Warnf("not all lookup tasks finished within %s, abandoning them", d.cfg.ShutdownGrace)
	}
	return nil
}

// executions returns a textual representation of the number of executions.
func (d *Driver) executions() string {
	if d.cfg.IsUnbounded() {
		return "unbounded"
	}
	return fmt.Sprintf("%d", d.cfg.Executions)
}

// submit the specified task, applying backpressure when rejected. The task
// is resubmitted after backing off, unless configured to drop rejected tasks.
// submit returns false if the context got cancelled, or the pool doesn't
// accept any tasks anymore.
func (d *Driver) submit(ctx context.Context, task func()) bool {
	for {
		err := d.pool.TrySubmit(task)
		switch {
		case err == nil:
			d.submitted.Add(1)
			d.metrics.TasksSubmitted.Inc()
			return true
		case errors.Is(err, dnsworker.ErrRejected):
			d.rejected.Add(1)
			d.metrics.TasksRejected.Inc()
			if !d.backoff(ctx, !d.cfg.DropRejected) {
				return false
			}
			if d.cfg.DropRejected {
				d.dropped.Add(1)
				d.metrics.TasksDropped.Inc()
				return true
			}
		default:
			log.Errorf("cannot submit lookup task: %s", err.Error())
			return false
		}
	}
}

// backoff sleeps as long as the pool's queue holds more tasks than the
// pool's core size. When resubmitting the rejected task, backoff sleeps at
// least once, as otherwise a queue at or below core size would be retried in
// a tight loop. It returns false if the context got cancelled while sleeping.
func (d *Driver) backoff(ctx context.Context, atLeastOnce bool) bool {
	if !atLeastOnce && d.pool.QueueLen() <= d.cfg.PoolSize {
		return true
	}
	wecker := time.NewTimer(d.cfg.DelayOnReject)
	defer wecker.Stop()
	for {
		select {
		case <-wecker.C:
		case <-ctx.Done():
			return false
		}
		queued := d.pool.QueueLen()
		if queued <= d.cfg.PoolSize {
			return true
		}
		log.Debugf("pool saturated, %d lookup tasks queued", queued)
		wecker.Reset(d.cfg.DelayOnReject)
	}
}

// task returns a lookup task resolving all configured host names in order,
// and then writing the outcome as a single block.
func (d *Driver) task(ctx context.Context) func() {
	return func() {
		results := make([]types.Resolution, 0, len(d.cfg.Hosts))
		for _, host := range d.cfg.Hosts {
			start := time.Now()
			res := d.resolver.Resolve(ctx, host)
			d.metrics.ObserveLookup(res, time.Since(start))
			results = append(results, res)
		}
		d.report(results)
		d.completed.Add(1)
		d.metrics.TasksCompleted.Inc()
	}
}

// report the outcome of a task's lookups: successful lookups to the output
// writer, failures to the error output writer.
func (d *Driver) report(results []types.Resolution) {
	var out, errout bytes.Buffer
	for _, res := range results {
		if !res.Resolved() {
			d.failed.Add(1)
			fmt.Fprintln(&errout, d.failstyle(res.String()))
			continue
		}
		d.resolved.Add(1)
		fmt.Fprintln(&out, res.AddressLine())
		fmt.Fprintln(&out, res.CanonicalLine())
	}
	d.outmu.Lock()
	defer d.outmu.Unlock()
	if out.Len() > 0 {
		_, _ = d.out.Write(out.Bytes())
	}
	if errout.Len() > 0 {
		_, _ = d.errout.Write(errout.Bytes())
	}
}

// QueueLen returns the number of lookup tasks waiting for a worker.
func (d *Driver) QueueLen() int { return d.pool.QueueLen() }

// Workers returns the number of currently running workers.
func (d *Driver) Workers() int { return d.pool.Workers() }

// Stats returns a snapshot of the driver's statistics.
func (d *Driver) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Rejected:  d.rejected.Load(),
		Dropped:   d.dropped.Load(),
		Completed: d.completed.Load(),
		Resolved:  d.resolved.Load(),
		Failed:    d.failed.Load(),
		Queued:    d.pool.QueueLen(),
		Workers:   d.pool.Workers(),
	}
}
