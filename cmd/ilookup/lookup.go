// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/siemens/ilookup/driver"
	"github.com/siemens/ilookup/metrics"
	"github.com/siemens/ilookup/mobynet"
	"github.com/siemens/ilookup/resolver"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/thediveo/lxkns/log"
	"golang.org/x/sync/errgroup"
)

// LookupAndReport sets up the resolver, optionally in the network namespace
// of a container, and then runs the bounded lookup driver until it has run
// all lookup tasks or the context gets cancelled. Successful lookups are
// reported to stdout, failed lookups to stderr.
//
// Optionally, metrics are served and a progress line gets rendered while the
// driver is running.
func LookupAndReport(ctx context.Context, cfg driver.Config, stdout, stderr io.Writer) error {
	netnsref := *netns
	if *containerName != "" {
		cln, err := mobynet.NewClient()
		if err != nil {
			return err
		}
		defer cln.Close()
		netnsref, err = mobynet.NetNSRef(ctx, cln, *containerName)
		if err != nil {
			return fmt.Errorf("cannot resolve from inside container: %w", err)
		}
		log.Infof("resolving from inside container %s, network namespace %s", *containerName, netnsref)
	}

	// This is the one-time set up of name resolution for the whole process;
	// there's no address caching anywhere behind it.
	opts := []resolver.Option{resolver.InNetworkNamespace(netnsref)}
	if *nameserver != "" {
		opts = append(opts, resolver.WithNameserver(*nameserver))
	}
	if *pureGo {
		opts = append(opts, resolver.WithPureGo())
	}
	res := resolver.New(opts...)

	// Only register metrics when we're going to serve them. Please note that
	// we must not pass a nil *Registry as a Registerer...
	var registerer prometheus.Registerer
	var registry *prometheus.Registry
	if *metricsAddr != "" {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer = registry
	}

	drv, err := driver.New(cfg, res,
		driver.WithOutput(stdout, stderr),
		driver.WithMetrics(metrics.New(registerer)),
		driver.WithFailureStyle(failureStyle(stderr)))
	if err != nil {
		return err
	}
	metrics.RegisterPoolGauges(registerer, drv.QueueLen, drv.Workers)

	// The driver decides when we're done: the metrics server and the progress
	// display then wind down too. If the metrics server fails, we stop
	// submitting new lookups.
	ctx, done := context.WithCancel(ctx)
	defer done()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer done()
		return drv.Run(ctx)
	})
	if registry != nil {
		g.Go(func() error {
			if err := metrics.Serve(ctx, *metricsAddr, registry); err != nil {
				return fmt.Errorf("cannot serve metrics: %w", err)
			}
			return nil
		})
	}
	if *progressInterval > 0 {
		g.Go(func() error {
			showProgress(ctx, stderr, drv, *progressInterval)
			return nil
		})
	}
	return g.Wait()
}
