// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import (
	"fmt"
	"net"
)

// Resolution is the outcome of resolving a single host name: either an
// address together with its canonical host name, or the error that stopped
// the host name from resolving.
type Resolution struct {
	Host      string // host name as asked for
	Address   net.IP // resolved address, nil on failure
	Canonical string // canonical host name of Address
	Err       error  // non-nil if Host could not be resolved
}

// Resolved returns true if the host name was successfully resolved.
func (r Resolution) Resolved() bool { return r.Err == nil && r.Address != nil }

// AddressLine returns the address representation in the form "host/address",
// or just "/address" in case the host name is empty or an address literal
// itself.
func (r Resolution) AddressLine() string {
	host := r.Host
	if net.ParseIP(host) != nil {
		host = ""
	}
	return fmt.Sprintf("Address: %s/%s", host, r.Address)
}

// CanonicalLine returns the canonical host name output line.
func (r Resolution) CanonicalLine() string {
	return "Canonical host: " + r.Canonical
}

// String returns the two output lines of a successful resolution, or the
// failure report otherwise. Thank you, fmt.Stringer.
func (r Resolution) String() string {
	if !r.Resolved() {
		return fmt.Sprintf("lookup %s failed: %v", r.Host, r.Err)
	}
	return r.AddressLine() + "\n" + r.CanonicalLine()
}
