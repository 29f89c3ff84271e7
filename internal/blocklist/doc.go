// Package blocklist loads the set of addresses a crawl must never record or
// expand, typically contract addresses that are not externally owned accounts.
//
// The file holds one address per line. Blank lines and everything after a
// '#' are ignored. A List keeps the last successfully loaded set and can
// reload it on a timer and whenever the file changes on disk.
package blocklist
