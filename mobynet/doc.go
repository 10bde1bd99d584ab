/*
Package mobynet locates the network namespace of a Docker container, so that
host names can be resolved from the perspective of that container.
*/
package mobynet
