// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siemens/ilookup/driver"

	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
)

var (
	poolSize         *int
	maxSize          *int
	executions       *int64
	delayOnReject    *int
	hosts            *[]string
	dropRejected     *bool
	shutdownGrace    *time.Duration
	nameserver       *string
	pureGo           *bool
	netns            *string
	containerName    *string
	metricsAddr      *string
	progressInterval *time.Duration
	debug            *bool
)

func newRootCmd() (rootCmd *cobra.Command) {
	rootCmd = &cobra.Command{
		Use:   "ilookup -host name [-host name...] [flags]",
		Short: "ilookup concurrently and repeatedly resolves host names into addresses",
		Long: `ilookup concurrently and repeatedly resolves host names into addresses and
canonical host names, using a bounded pool of lookup workers. Its purpose is
to put address resolution under sustained concurrent load, such as when
hunting memory leaks in resolver libraries.

Flags can be spelled with either a single or a double dash.`,
		Version: "1.0",
		Args:    cobra.NoArgs,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if *netns != "" && *containerName != "" {
				return fmt.Errorf("--netns and --container are mutually exclusive")
			}
			if *progressInterval != 0 && *progressInterval < 10*time.Millisecond {
				return fmt.Errorf("--progress must be at least 10ms")
			}
			return config().Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// From here on, errors are not usage errors anymore.
			cmd.SilenceUsage = true
			if *debug {
				log.SetLevel(log.DebugLevel)
				log.Debugf("debug logging enabled")
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return LookupAndReport(ctx, config(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	// Sets up the flags.
	flags := rootCmd.Flags()
	poolSize = flags.Int(
		"poolSize", 1, "core size of the lookup worker pool")
	maxSize = flags.Int(
		"maxSize", 1, "max size of the lookup worker pool and its queue")
	executions = flags.Int64(
		"executions", driver.Unbounded, "total number of lookup tasks, negative for unlimited")
	delayOnReject = flags.Int(
		"delayOnReject", 1000, "time (ms) to wait before submitting another lookup task when the pool is full")
	hosts = flags.StringSlice(
		"host", nil, "host name to resolve, can be repeated")
	dropRejected = flags.Bool(
		"drop-rejected", false, "drop lookup tasks rejected by a full pool instead of resubmitting them")
	shutdownGrace = flags.Duration(
		"grace", time.Minute, "how long to wait for in-flight lookup tasks when done")
	nameserver = flags.String(
		"nameserver", "", "send DNS queries to this ip:port only (implies the pure Go resolver)")
	pureGo = flags.Bool(
		"pure-go", false, "prefer the pure Go resolver over the system resolver library")
	netns = flags.String(
		"netns", "", "resolve from inside the network namespace referenced by this path")
	containerName = flags.String(
		"container", "", "resolve from inside the network namespace of this Docker container")
	metricsAddr = flags.String(
		"metrics", "", "serve Prometheus metrics at this listen address, such as :9100")
	progressInterval = flags.Duration(
		"progress", 0, "refresh interval of a progress line on stderr, 0 disables progress")
	debug = flags.Bool(
		"debug", false, "enable debugging output")
	_ = rootCmd.MarkFlagRequired("host")
	return
}

// config returns the driver configuration as set by the CLI flags.
func config() driver.Config {
	cfg := driver.DefaultConfig()
	cfg.PoolSize = *poolSize
	cfg.MaxSize = *maxSize
	cfg.Executions = *executions
	cfg.DelayOnReject = time.Duration(*delayOnReject) * time.Millisecond
	cfg.Hosts = *hosts
	cfg.ShutdownGrace = *shutdownGrace
	cfg.DropRejected = *dropRejected
	return cfg
}
