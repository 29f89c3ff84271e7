// Package graph holds the crawl's shared graph state and turns it into the
// sparse, index-addressed structures the scoring engine expects.
//
// # Store
//
// Store is the single owner of the visited registry, the discovery counter
// and the edge list for the lifetime of one crawl. All three sit behind one
// mutex because TryClaim must check the registry and the counter and update
// both in a single step; two concurrent claims of the same newly discovered
// address must never both be told to expand.
//
// # Matrix
//
// BuildMatrix assigns dense indices in discovery order (seeds first) and emits
// one pretrust entry per seed and one local trust entry per recorded edge.
// Duplicate (i, j) pairs are kept as separate entries.
package graph
