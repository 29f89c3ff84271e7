// Package neighbor talks to the neighbor-relationship API and turns its
// responses into candidate edges for the crawler.
//
// The package has two layers:
//   - Client issues one GET per lookup, injects the API key and decodes the
//     JSON body. It optionally routes traffic through a SOCKS5 proxy.
//   - Fetcher applies the lookup policy for one address: the primary summary
//     request, a single partial-detail retry for large accounts, blocklist
//     and zero-transfer filtering, and weight parsing.
//
// Fetcher never returns an error to the crawler. A failed lookup is reported
// through Result.Err together with an empty candidate list, so one address
// can fail without affecting any other branch of the crawl.
//
// # Wire format
//
//	GET {base}/{chain}/v1/address/{address}/neighbors?details=summary&from_ts=&to_ts=&block_cp=native
//
// The API answers 200 even for domain errors and reports them in an
// embedded {"error": {"details": "..."}} object.
package neighbor
