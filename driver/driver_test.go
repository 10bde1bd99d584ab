// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package driver

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/siemens/ilookup/metrics"
	"github.com/siemens/ilookup/resolver"
	"github.com/siemens/ilookup/test"
	"github.com/siemens/ilookup/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

// fakeResolver "resolves" any host name into the same address, with the host
// name also being its own canonical name, except for host names to fail.
// Optionally, lookups block until the gate gets closed.
type fakeResolver struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	gate  chan struct{}
	delay time.Duration
}

func (f *fakeResolver) Resolve(ctx context.Context, host string) types.Resolution {
	if f.gate != nil {
		<-f.gate
	}
	time.Sleep(f.delay)
	f.mu.Lock()
	f.calls = append(f.calls, host)
	f.mu.Unlock()
	if f.fail[host] {
		return types.Resolution{Host: host, Err: errors.New("no such host")}
	}
	return types.Resolution{
		Host:      host,
		Address:   net.ParseIP("192.0.2.1"),
		Canonical: host,
	}
}

func (f *fakeResolver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func lines(b *gbytes.Buffer) []string {
	s := strings.TrimSuffix(string(b.Contents()), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func block(hosts ...string) []string {
	ls := []string{}
	for _, host := range hosts {
		ls = append(ls, "Address: "+host+"/192.0.2.1", "Canonical host: "+host)
	}
	return ls
}

var _ = Describe("bounded lookup driver", func() {

	var out, errout *gbytes.Buffer

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
		out = gbytes.NewBuffer()
		errout = gbytes.NewBuffer()
	})

	config := func(executions int64, poolsize, maxsize int, hosts ...string) Config {
		cfg := DefaultConfig()
		cfg.Executions = executions
		cfg.PoolSize = poolsize
		cfg.MaxSize = maxsize
		cfg.DelayOnReject = time.Millisecond
		cfg.Hosts = hosts
		return cfg
	}

	It("rejects an invalid configuration", func() {
		Expect(New(Config{}, &fakeResolver{})).Error().To(HaveOccurred())
	})

	It("runs exactly the requested number of tasks, resolving hosts in order", NodeTimeout(10*time.Second), func(ctx context.Context) {
		fr := &fakeResolver{delay: time.Millisecond}
		d := Successful(New(config(3, 1, 1, "a", "b", "c"), fr, WithOutput(out, errout)))
		Expect(d.Run(ctx)).To(Succeed())

		expected := append(append(block("a", "b", "c"), block("a", "b", "c")...), block("a", "b", "c")...)
		Expect(lines(out)).To(Equal(expected))
		Expect(errout.Contents()).To(BeEmpty())
		Expect(fr.Calls()).To(Equal([]string{"a", "b", "c", "a", "b", "c", "a", "b", "c"}))
		stats := d.Stats()
		Expect(stats.Submitted).To(Equal(int64(3)))
		Expect(stats.Completed).To(Equal(int64(3)))
		Expect(stats.Resolved).To(Equal(int64(9)))
		Expect(stats.Dropped).To(BeZero())
	})

	It("keeps each task's output together under concurrency", NodeTimeout(10*time.Second), func(ctx context.Context) {
		const executions = 40
		fr := &fakeResolver{delay: time.Millisecond}
		d := Successful(New(config(executions, 4, 8, "a", "b"), fr, WithOutput(out, errout)))
		Expect(d.Run(ctx)).To(Succeed())

		ls := lines(out)
		Expect(ls).To(HaveLen(executions * 4))
		for idx := 0; idx < len(ls); idx += 4 {
			Expect(ls[idx : idx+4]).To(Equal(block("a", "b")))
		}
		Expect(d.Stats().Completed).To(Equal(int64(executions)))
	})

	It("runs no tasks when asked for zero executions", NodeTimeout(10*time.Second), func(ctx context.Context) {
		fr := &fakeResolver{}
		d := Successful(New(config(0, 1, 1, "a"), fr, WithOutput(out, errout)))
		Expect(d.Run(ctx)).To(Succeed())
		Expect(fr.Calls()).To(BeEmpty())
		Expect(d.Stats().Submitted).To(BeZero())
	})

	It("continues with the remaining hosts after a failure", NodeTimeout(10*time.Second), func(ctx context.Context) {
		fr := &fakeResolver{fail: map[string]bool{"bad": true}}
		d := Successful(New(config(2, 1, 1, "bad", "good"), fr,
			WithOutput(out, errout),
			WithFailureStyle(strings.ToUpper)))
		Expect(d.Run(ctx)).To(Succeed())

		Expect(lines(out)).To(Equal(append(block("good"), block("good")...)))
		Expect(lines(errout)).To(ConsistOf(
			"LOOKUP BAD FAILED: NO SUCH HOST",
			"LOOKUP BAD FAILED: NO SUCH HOST"))
		stats := d.Stats()
		Expect(stats.Failed).To(Equal(int64(2)))
		Expect(stats.Resolved).To(Equal(int64(2)))
		Expect(stats.Completed).To(Equal(int64(2)))
	})

	It("holds back until the queue has drained to the core size", NodeTimeout(10*time.Second), func(ctx context.Context) {
		gate := make(chan struct{})
		fr := &fakeResolver{gate: gate}
		d := Successful(New(config(6, 1, 2, "a"), fr, WithOutput(out, errout)))
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			Expect(d.Run(ctx)).To(Succeed())
		}()

		// two running tasks, two queued tasks, and then the fifth one gets
		// rejected.
		Eventually(d.Stats).Should(And(
			HaveField("Submitted", Equal(int64(4))),
			HaveField("Rejected", BeNumerically(">=", 1)),
		))
		Consistently(d.Stats).Within(250 * time.Millisecond).Should(And(
			HaveField("Submitted", Equal(int64(4))),
			HaveField("Queued", Equal(2)),
			HaveField("Workers", Equal(2)),
		))

		close(gate)
		Eventually(done).Within(5 * time.Second).Should(BeClosed())
		stats := d.Stats()
		Expect(stats.Submitted).To(Equal(int64(6)))
		Expect(stats.Completed).To(Equal(int64(6)))
		Expect(stats.Dropped).To(BeZero())
		Expect(lines(out)).To(HaveLen(12))
	})

	It("drops rejected tasks when told so", NodeTimeout(10*time.Second), func(ctx context.Context) {
		gate := make(chan struct{})
		fr := &fakeResolver{gate: gate}
		cfg := config(5, 1, 1, "a")
		cfg.DropRejected = true
		d := Successful(New(cfg, fr, WithOutput(out, errout)))
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			Expect(d.Run(ctx)).To(Succeed())
		}()

		// one running task, one queued task, and the remaining three tasks
		// get rejected and dropped.
		Eventually(d.Stats).Should(HaveField("Dropped", Equal(int64(3))))
		close(gate)
		Eventually(done).Within(5 * time.Second).Should(BeClosed())
		stats := d.Stats()
		Expect(stats.Submitted).To(Equal(int64(2)))
		Expect(stats.Completed).To(Equal(int64(2)))
		Expect(stats.Rejected).To(Equal(int64(3)))
	})

	It("drops rejected tasks without sleeping while the queue is at core size", NodeTimeout(10*time.Second), func(ctx context.Context) {
		gate := make(chan struct{})
		fr := &fakeResolver{gate: gate}
		cfg := config(4, 1, 1, "a")
		cfg.DelayOnReject = time.Hour
		cfg.DropRejected = true
		d := Successful(New(cfg, fr, WithOutput(out, errout)))
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			Expect(d.Run(ctx)).To(Succeed())
		}()

		// with one task running and one queued, the queue is at core size,
		// so the two rejected tasks get dropped right away.
		Eventually(d.Stats).Within(2 * time.Second).Should(HaveField("Dropped", Equal(int64(2))))
		close(gate)
		Eventually(done).Within(5 * time.Second).Should(BeClosed())
		Expect(d.Stats().Completed).To(Equal(int64(2)))
	})

	It("stops submitting when cancelled, but finishes in-flight tasks", NodeTimeout(10*time.Second), func(ctx context.Context) {
		fr := &fakeResolver{delay: time.Millisecond}
		d := Successful(New(config(Unbounded, 2, 4, "a"), fr, WithOutput(out, errout)))
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			Expect(d.Run(ctx)).To(Succeed())
		}()

		Eventually(d.Stats).Should(HaveField("Completed", BeNumerically(">", 10)))
		cancel()
		Eventually(done).Within(5 * time.Second).Should(BeClosed())
		stats := d.Stats()
		Expect(stats.Completed).To(Equal(stats.Submitted))
		Expect(lines(out)).To(HaveLen(int(2 * stats.Completed)))
	})

	It("accounts tasks and lookups in metrics", NodeTimeout(10*time.Second), func(ctx context.Context) {
		reg := prometheus.NewPedanticRegistry()
		m := metrics.New(reg)
		fr := &fakeResolver{fail: map[string]bool{"bad": true}}
		d := Successful(New(config(3, 1, 1, "good", "bad"), fr,
			WithOutput(out, errout),
			WithMetrics(m)))
		metrics.RegisterPoolGauges(reg, d.QueueLen, d.Workers)
		Expect(d.Run(ctx)).To(Succeed())

		Expect(testutil.ToFloat64(m.TasksSubmitted)).To(Equal(3.0))
		Expect(testutil.ToFloat64(m.TasksCompleted)).To(Equal(3.0))
		Expect(testutil.ToFloat64(m.Lookups.WithLabelValues("resolved"))).To(Equal(3.0))
		Expect(testutil.ToFloat64(m.Lookups.WithLabelValues("failed"))).To(Equal(3.0))
		Expect(testutil.GatherAndCount(reg, "ilookup_queue_length")).To(Equal(1))
	})

	When("resolving for real", func() {

		var dnssrv *test.DNSServer

		BeforeEach(func() {
			dnssrv = test.NewDNSServer()
		})

		It("resolves a resolvable name each time", NodeTimeout(20*time.Second), func(ctx context.Context) {
			r := resolver.New(resolver.WithNameserver(dnssrv.Addr))
			d := Successful(New(config(3, 1, 1, test.ResolvableName), r, WithOutput(out, errout)))
			Expect(d.Run(ctx)).To(Succeed())

			ls := lines(out)
			Expect(ls).To(HaveLen(6))
			for idx := 0; idx < len(ls); idx += 2 {
				Expect(ls[idx]).To(Equal("Address: " + test.ResolvableName + "/" + test.AddressV4))
				Expect(ls[idx+1]).To(Equal("Canonical host: " + test.CanonicalName))
			}
			Expect(errout.Contents()).To(BeEmpty())
		})

		It("reports an unresolvable name and carries on", NodeTimeout(20*time.Second), func(ctx context.Context) {
			r := resolver.New(resolver.WithNameserver(dnssrv.Addr))
			d := Successful(New(config(1, 1, 1, test.UnresolvedName), r, WithOutput(out, errout)))
			Expect(d.Run(ctx)).To(Succeed())

			Expect(out.Contents()).To(BeEmpty())
			Expect(lines(errout)).To(ConsistOf(
				HavePrefix("lookup " + test.UnresolvedName + " failed: ")))
		})

	})

})
