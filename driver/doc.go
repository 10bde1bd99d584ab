/*
Package driver implements the bounded lookup driver: it submits lookup tasks
to a bounded [github.com/siemens/ilookup/dnsworker.Pool] and backs off when
the pool rejects submissions because it is saturated.

Each lookup task resolves all configured host names in order. A failed lookup
is reported, but doesn't stop the task from resolving the remaining host
names.

Backpressure is deliberately simple: after a rejection the driver sleeps for
the configured delay, and keeps sleeping as long as the pool's queue holds
more tasks than the pool's core size. Then it resubmits the rejected task, or
drops it when configured to do so.
*/
package driver
