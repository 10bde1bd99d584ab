/*
Package metrics provides Prometheus metrics about lookup tasks and lookups,
and optionally serves them over HTTP for scraping.
*/
package metrics
