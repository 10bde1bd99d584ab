// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/siemens/ilookup/types"

	"github.com/thediveo/lxkns/log"
	"github.com/thediveo/lxkns/ops"
	"github.com/thediveo/lxkns/ops/relations"
	"github.com/thediveo/lxkns/species"
)

// Resolver resolves host names into addresses and canonical host names. A
// Resolver never caches any lookup results, so each lookup ends up with the
// underlying system or DNS resolver.
type Resolver struct {
	netns      relations.Relation // network namespace to resolve from, or nil.
	nameserver string             // "ip:port" to send DNS queries to, or "".
	pureGo     bool               // prefer the pure Go resolver.
	dialer     net.Dialer
	r          *net.Resolver
}

// Option can be passed to New when creating new [Resolver] objects.
type Option func(*Resolver)

// New returns a new Resolver. This is the one-time initialization step of
// name resolution for the whole process: the returned Resolver is never shared
// with [net.DefaultResolver] and there is no result caching between it and the
// underlying resolver. So, both positive and negative lookup results live for
// zero time.
//
// To resolve names in a network namespace different to that of the OS-level
// thread of the caller specify the [InNetworkNamespace] option and pass it a
// filesystem path that must reference a network namespace (such as
// "/proc/666/ns/net").
func New(options ...Option) *Resolver {
	res := &Resolver{
		dialer: net.Dialer{Timeout: 5 * time.Second},
	}
	for _, opt := range options {
		opt(res)
	}
	res.r = &net.Resolver{
		PreferGo: res.pureGo || res.nameserver != "",
	}
	if res.nameserver != "" {
		nameserver := res.nameserver
		res.r.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			return res.dialer.DialContext(ctx, network, nameserver)
		}
	}
	log.Debugf("address lookup caching disabled (positive ttl=0, negative ttl=0), pure Go: %t, nameserver: %q",
		res.r.PreferGo, res.nameserver)
	return res
}

// WithNameserver sends all DNS queries to the nameserver at the specified
// "ip:port" address instead of the system-configured nameservers. This implies
// using the pure Go resolver.
func WithNameserver(addr string) Option {
	return func(r *Resolver) {
		r.nameserver = addr
	}
}

// WithPureGo prefers Go's built-in DNS resolver over the system's resolver
// library.
func WithPureGo() Option {
	return func(r *Resolver) {
		r.pureGo = true
	}
}

// InNetworkNamespace optionally resolves names from inside the network
// namespace referenced by the specified filesystem path. An empty path leaves
// the resolver in the caller's network namespace.
func InNetworkNamespace(netnsref string) Option {
	return func(r *Resolver) {
		if netnsref == "" {
			return
		}
		r.netns = ops.NewTypedNamespacePath(netnsref, species.CLONE_NEWNET)
	}
}

// Resolve the specified host name into its (preferably IPv4) address and then
// find the canonical host name of this address. If the address cannot be
// mapped back to any name, the address literal becomes the canonical host
// name.
//
// Resolve never returns an error itself; instead, lookup errors are reported
// in the returned [types.Resolution].
func (r *Resolver) Resolve(ctx context.Context, host string) types.Resolution {
	resolve := func() interface{} {
		return r.resolve(ctx, host)
	}
	if r.netns == nil {
		return resolve().(types.Resolution)
	}
	// lxkns' ops.Execute differentiates between a namespace switching error
	// and the result of the function run inside the namespace.
	res, err := ops.Execute(resolve, r.netns)
	if err != nil {
		return types.Resolution{
			Host: host,
			Err:  fmt.Errorf("cannot switch into network namespace: %w", err),
		}
	}
	return res.(types.Resolution)
}

// resolve does the real work in whatever network namespace the calling
// OS-level thread currently is attached to.
func (r *Resolver) resolve(ctx context.Context, host string) types.Resolution {
	res := types.Resolution{Host: host}
	addrs, err := r.r.LookupIPAddr(ctx, host)
	if err != nil {
		res.Err = err
		return res
	}
	if len(addrs) == 0 {
		res.Err = &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
		return res
	}
	res.Address = addrs[0].IP
	for _, addr := range addrs {
		if ip4 := addr.IP.To4(); ip4 != nil {
			res.Address = ip4
			break
		}
	}
	res.Canonical = r.canonical(ctx, res.Address)
	return res
}

// canonical returns the first name the specified address maps back to, or
// the address literal if there is no such name.
func (r *Resolver) canonical(ctx context.Context, addr net.IP) string {
	names, err := r.r.LookupAddr(ctx, addr.String())
	if err != nil || len(names) == 0 {
		return addr.String()
	}
	return strings.TrimSuffix(names[0], ".")
}
