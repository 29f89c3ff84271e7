// Package model defines the core data structures used throughout trustcrawl.
//
// This package contains the following main types:
//   - Address: A case-normalized chain account identifier
//   - Edge: A weighted transfer relationship between two addresses
//   - TraversalContext: Immutable per-crawl settings shared by all crawl tasks
//   - PretrustEntry / LocalTrustEntry: Index-addressed scoring input
//   - ScoredAddress: The final output unit
//   - TrustReport: The per-request record carried through the pipeline
//
// Models live in their own package because the crawler, graph, eigentrust,
// report and database packages all exchange them.
package model
