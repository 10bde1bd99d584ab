/*
Package types defines ilookup's information model, which is rather simple: a
[Resolution] is the outcome of resolving a single host name into an address
and the address' canonical host name.

A Resolution is passed around by value, so it is safe to hand over to other
goroutines without further locking.
*/
package types
