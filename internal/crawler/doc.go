// Package crawler expands a set of seed addresses into a weighted transfer
// graph.
//
// # Architecture
//
// A Crawler drives one crawl. Every address is visited by its own task in an
// errgroup.Group; a task fetches the neighbors of its address, records the
// edges in a graph.Store and spawns further tasks for the neighbors it wins
// the claim on. The crawl ends when every transitively spawned task has
// returned.
//
// Tasks never return errors to the group. Each task reports an Outcome to the
// orchestrator instead, so one failing address never cancels its siblings.
//
// # Components
//
//   - Gate: permit pool (and optional rate limit) around neighbor lookups
//   - Crawler: the traversal itself
//   - Outcome: the per-address result consumed by the orchestrator
//
// # Bounds
//
// MaxDepth bounds how far expansion goes; seeds are fetched at depth 1.
// MaxResults bounds how many first-time discoveries may be expanded. Edges
// into addresses past that bound are still recorded, so the final graph can
// hold more than MaxResults addresses.
//
// # Usage
//
//	gate := crawler.NewGate(5)
//	c := crawler.New(fetcher, crawler.WithGate(gate))
//	res, err := c.Crawl(ctx, seeds, tc)
package crawler
