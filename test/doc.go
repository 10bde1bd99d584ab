/*
Package test provides the test harness shared by the ilookup package tests: an
in-process DNS server with a small fixed zone, so that lookups can be tested
without depending on any real-world DNS.
*/
package test
