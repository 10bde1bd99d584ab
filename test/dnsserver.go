// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package test

import (
	"net"
	"sync/atomic"

	"github.com/miekg/dns"

	gi "github.com/onsi/ginkgo/v2"
	g "github.com/onsi/gomega"
	s "github.com/thediveo/success"
)

// Names and addresses served by the test DNS server.
const (
	ResolvableName = "example.test"
	CanonicalName  = "canonical.example.test"
	UnresolvedName = "nonexistent.invalid"
	AddressV4      = "192.0.2.42"
	AddressV6      = "2001:db8::42"
	// DualStackName resolves into both an IPv6 and an IPv4 address.
	DualStackName = "dual.example.test"
	// OrphanName resolves, but its address doesn't map back to any name.
	OrphanName    = "orphan.example.test"
	OrphanAddress = "192.0.2.66"
)

var reverseV4, _ = dns.ReverseAddr(AddressV4)

// DNSServer is a tiny in-process DNS server answering from a fixed zone. All
// other names are answered with NXDOMAIN.
type DNSServer struct {
	Addr    string // "ip:port" the server listens on
	srv     *dns.Server
	queries atomic.Int64
}

// NewDNSServer starts a new UDP DNS server on a random localhost port and
// registers its shutdown as a ginkgo cleanup.
func NewDNSServer() *DNSServer {
	gi.GinkgoHelper()

	pc := s.Successful(net.ListenPacket("udp", "127.0.0.1:0"))
	d := &DNSServer{Addr: pc.LocalAddr().String()}
	started := make(chan struct{})
	d.srv = &dns.Server{
		PacketConn:        pc,
		Handler:           dns.HandlerFunc(d.answer),
		NotifyStartedFunc: func() { close(started) },
	}
	go func() {
		_ = d.srv.ActivateAndServe()
	}()
	g.Eventually(started).Should(g.BeClosed())
	gi.DeferCleanup(func() {
		_ = d.srv.Shutdown()
	})
	return d
}

// Queries returns the number of DNS queries served so far.
func (d *DNSServer) Queries() int64 { return d.queries.Load() }

// answer the (single) question of a DNS request from the fixed zone.
func (d *DNSServer) answer(w dns.ResponseWriter, req *dns.Msg) {
	d.queries.Add(1)
	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = true
	m.RecursionAvailable = true
	defer func() { _ = w.WriteMsg(m) }()
	if len(req.Question) != 1 {
		m.SetRcode(req, dns.RcodeFormatError)
		return
	}
	q := req.Question[0]
	hdr := dns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: dns.ClassINET, Ttl: 0}
	switch q.Name {
	case dns.Fqdn(ResolvableName):
		if q.Qtype == dns.TypeA {
			m.Answer = append(m.Answer, &dns.A{Hdr: hdr, A: net.ParseIP(AddressV4)})
		}
	case dns.Fqdn(DualStackName):
		switch q.Qtype {
		case dns.TypeA:
			m.Answer = append(m.Answer, &dns.A{Hdr: hdr, A: net.ParseIP(AddressV4)})
		case dns.TypeAAAA:
			m.Answer = append(m.Answer, &dns.AAAA{Hdr: hdr, AAAA: net.ParseIP(AddressV6)})
		}
	case dns.Fqdn(OrphanName):
		if q.Qtype == dns.TypeA {
			m.Answer = append(m.Answer, &dns.A{Hdr: hdr, A: net.ParseIP(OrphanAddress)})
		}
	case reverseV4:
		if q.Qtype == dns.TypePTR {
			m.Answer = append(m.Answer, &dns.PTR{Hdr: hdr, Ptr: dns.Fqdn(CanonicalName)})
		}
	default:
		m.SetRcode(req, dns.RcodeNameError)
	}
}
