// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package driver

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config configures a lookup [Driver]. A Config must not be changed after
// passing it to [New].
type Config struct {
	PoolSize      int           // core size of the worker pool.
	MaxSize       int           // max size of the worker pool and capacity of its queue.
	Executions    int64         // number of lookup tasks to run; negative means unbounded.
	DelayOnReject time.Duration // backpressure sleep interval after a rejected submission.
	Hosts         []string      // host names to resolve, in this order, in each task.
	ShutdownGrace time.Duration // how long to wait for in-flight tasks when done.
	DropRejected  bool          // drop rejected tasks instead of resubmitting them.
}

// Unbounded is the Executions value for running lookup tasks until cancelled.
const Unbounded = -1

// DefaultConfig returns a Config with all defaults set, except for the host
// names to resolve.
func DefaultConfig() Config {
	return Config{
		PoolSize:      1,
		MaxSize:       1,
		Executions:    Unbounded,
		DelayOnReject: 1000 * time.Millisecond,
		ShutdownGrace: time.Minute,
	}
}

// IsUnbounded returns true if lookup tasks should be run until cancelled.
func (c Config) IsUnbounded() bool { return c.Executions < 0 }

// Validate checks the configuration, returning an error describing the first
// problem found.
func (c Config) Validate() error {
	if len(c.Hosts) == 0 {
		return errors.New("at least one host to resolve required")
	}
	for idx, host := range c.Hosts {
		if strings.TrimSpace(host) == "" {
			return fmt.Errorf("host #%d must not be empty", idx+1)
		}
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool size must not be negative, got %d", c.PoolSize)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("max size must be at least 1, got %d", c.MaxSize)
	}
	if c.MaxSize < c.PoolSize {
		return fmt.Errorf("max size %d must not be less than pool size %d", c.MaxSize, c.PoolSize)
	}
	if c.DelayOnReject < 0 {
		return fmt.Errorf("delay on reject must not be negative, got %s", c.DelayOnReject)
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("shutdown grace period must not be negative, got %s", c.ShutdownGrace)
	}
	return nil
}
