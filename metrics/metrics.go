// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/siemens/ilookup/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thediveo/lxkns/log"
)

const namespace = "ilookup"

// Metrics holds the Prometheus collectors for lookup tasks and lookups.
type Metrics struct {
	TasksSubmitted prometheus.Counter
	TasksRejected  prometheus.Counter
	TasksDropped   prometheus.Counter
	TasksCompleted prometheus.Counter
	Lookups        *prometheus.CounterVec
	LookupDuration prometheus.Histogram
}

// New returns a new set of collectors, registered with the specified
// registerer. If reg is nil, the collectors are left unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TasksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of lookup tasks accepted by the worker pool",
		}),
		TasksRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Total number of lookup task submissions rejected by the saturated worker pool",
		}),
		TasksDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_dropped_total",
			Help:      "Total number of rejected lookup tasks that were not resubmitted",
		}),
		TasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of lookup tasks run to completion",
		}),
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Total number of host name lookups by outcome",
		}, []string{"outcome"}),
		LookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Histogram of host name lookup latencies, including the canonical name lookup",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveLookup accounts for a single host name lookup and how long it took.
func (m *Metrics) ObserveLookup(res types.Resolution, took time.Duration) {
	outcome := "resolved"
	if !res.Resolved() {
		outcome = "failed"
	}
	m.Lookups.WithLabelValues(outcome).Inc()
	m.LookupDuration.Observe(took.Seconds())
}

// RegisterPoolGauges registers gauges reporting the current queue length and
// number of active workers, as reported by the specified functions. If reg is
// nil, nothing gets registered.
func RegisterPoolGauges(reg prometheus.Registerer, queueLen, workers func() int) {
	if reg == nil {
		return
	}
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_length",
		Help:      "Current number of lookup tasks waiting for a worker",
	}, func() float64 { return float64(queueLen()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_workers",
		Help:      "Current number of lookup workers",
	}, func() float64 { return float64(workers()) })
}

// Serve the metrics gathered by the specified gatherer on "/metrics" at the
// specified listen address, until the context gets cancelled. Serve returns
// an error if the listen address cannot be bound or serving fails; it returns
// nil after a regular shutdown.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, l, gatherer)
}

// serve metrics on an already bound listener.
func serve(ctx context.Context, l net.Listener, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(l)
	}()
	log.Infof("serving metrics on http://%s/metrics", l.Addr())
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-done; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
