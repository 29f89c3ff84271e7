// Package main provides the entry point for the trustcrawl CLI.
//
// trustcrawl crawls the transfer graph around a set of seed addresses,
// turns it into a local trust matrix and ranks the neighbors with an
// EigenTrust compute service.
//
// Usage:
//
//	trustcrawl crawl <address>...
//	trustcrawl serve
//
// See --help for all available options.
package main

// main is the entry point for trustcrawl.
func main() {
	Execute()
}
