/*
Package resolver resolves host names into addresses and their canonical host
names, without any caching of lookup results in between.

Resolution is done using Go's [net.Resolver], optionally talking to a
specific nameserver only, and optionally from inside a different network
namespace, such as the network namespace of a container.
*/
package resolver
