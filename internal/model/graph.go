package model

// Edge is a weighted transfer relationship discovered by the crawler.
// Weight is the transferred value from From to To, or the configured
// default when the upstream API does not report a value.
//
// Edges are append-only: the crawler never merges duplicate (From, To)
// pairs, so the same pair may appear more than once.
type Edge struct {
	From   Address `json:"from"`
	To     Address `json:"to"`
	Weight float64 `json:"weight"`
}

// Query holds the time window sent with every primary neighbor lookup.
// Both bounds are Unix timestamps in seconds.
type Query struct {
	FromTS int64 `json:"from_ts"`
	ToTS   int64 `json:"to_ts"`
}

// TraversalContext is the immutable per-crawl configuration shared by every
// crawl task. It must not be modified once the crawl has started.
type TraversalContext struct {
	// MaxDepth bounds expansion; seeds are fetched at depth 1.
	MaxDepth int

	// MaxResults bounds the number of first-time discoveries that may be expanded.
	MaxResults int

	// Chain is the upstream chain identifier (e.g. "eth", "base").
	Chain string

	// Query is the time window for primary neighbor lookups.
	Query Query

	// Blocklist excludes addresses from both edges and expansion.
	// A nil Blocklist blocks nothing.
	Blocklist AddressSet
}

// Blocked reports whether the address is excluded by the blocklist.
func (tc TraversalContext) Blocked(a Address) bool {
	return tc.Blocklist != nil && tc.Blocklist.Contains(a)
}

// PretrustEntry is one element of the pretrust vector.
type PretrustEntry struct {
	I int     `json:"i"`
	V float64 `json:"v"`
}

// LocalTrustEntry is one element of the sparse local trust matrix.
type LocalTrustEntry struct {
	I int     `json:"i"`
	J int     `json:"j"`
	V float64 `json:"v"`
}

// IndexedScore is one (index, score) pair returned by the scoring engine.
type IndexedScore struct {
	I int     `json:"i"`
	V float64 `json:"v"`
}

// ScoredAddress is the final output unit of a trust crawl.
type ScoredAddress struct {
	Address Address `json:"address"`
	Score   float64 `json:"score"`
}
