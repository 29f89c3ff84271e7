package model

import (
	"time"
)

// CrawlStats summarizes one crawl.
// Failed fetches are counted here rather than returned as errors because a
// failing branch never aborts the crawl.
type CrawlStats struct {
	// Fetches is the number of neighbor lookups attempted (one per entered address).
	Fetches int `json:"fetches"`

	// FailedFetches is the number of lookups that were abandoned.
	FailedFetches int `json:"failed_fetches"`

	// Retries is the number of large-account retries issued.
	Retries int `json:"retries"`

	// BlockedNeighbors is the number of neighbors dropped by the blocklist.
	BlockedNeighbors int `json:"blocked_neighbors"`

	// ZeroTransferNeighbors is the number of neighbors dropped for having no
	// inbound transfers in the window.
	ZeroTransferNeighbors int `json:"zero_transfer_neighbors"`

	// Edges is the number of recorded edges.
	Edges int `json:"edges"`

	// Addresses is the number of distinct addresses in the final graph.
	Addresses int `json:"addresses"`

	// Discovered is the first-time discovery counter at the end of the crawl.
	Discovered int `json:"discovered"`

	// MaxDepthReached is the deepest level that was fetched.
	MaxDepthReached int `json:"max_depth_reached"`

	// Duration is the wall-clock time of the crawl phase.
	Duration time.Duration `json:"duration"`
}

// TrustReport is the record of one trust crawl request.
// It is created when the request starts, filled in by each pipeline step and
// discarded when the request ends unless the caller archives it.
type TrustReport struct {
	// RequestID identifies the request in logs and in the archive.
	RequestID string `json:"request_id"`

	// Chain is the resolved upstream chain identifier.
	Chain string `json:"chain"`

	// Seeds are the normalized input addresses in input order.
	Seeds []Address `json:"seeds"`

	// MaxDepth is the requested depth bound.
	MaxDepth int `json:"max_depth"`

	// MaxResults is the requested result-size bound.
	MaxResults int `json:"max_results"`

	// Query is the time window of the primary neighbor lookups.
	Query Query `json:"query"`

	// StartedAt is when the request started.
	StartedAt time.Time `json:"started_at"`

	// Stats summarizes the crawl phase.
	Stats CrawlStats `json:"stats"`

	// Addresses is the crawl snapshot in discovery order. Not serialized.
	Addresses []Address `json:"-"`

	// Edges is the recorded edge list. Not serialized.
	Edges []Edge `json:"-"`

	// IndexTable maps matrix indices back to addresses. Not serialized.
	IndexTable []Address `json:"-"`

	// Pretrust is the scoring prior. Not serialized.
	Pretrust []PretrustEntry `json:"-"`

	// LocalTrust is the scoring matrix. Not serialized.
	LocalTrust []LocalTrustEntry `json:"-"`

	// Scores are the ranked results with the seeds removed.
	Scores []ScoredAddress `json:"scores"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps"`

	// Error is the underlying error of a failed request. Not serialized.
	Error error `json:"-"`

	// ErrorMessage is the error string for serialized reports.
	ErrorMessage string `json:"error,omitempty"`
}

// NewTrustReport creates a report for the given request parameters.
func NewTrustReport(chain string, seeds []Address, maxDepth, maxResults int) *TrustReport {
	return &TrustReport{
		Chain:          chain,
		Seeds:          seeds,
		MaxDepth:       maxDepth,
		MaxResults:     maxResults,
		StartedAt:      time.Now(),
		Scores:         make([]ScoredAddress, 0),
		PerformedSteps: make([]string, 0),
	}
}

// IsSeed reports whether the address is one of the report's seeds.
func (r *TrustReport) IsSeed(a Address) bool {
	for _, s := range r.Seeds {
		if s == a {
			return true
		}
	}
	return false
}

// Failed reports whether the request ended with an error.
func (r *TrustReport) Failed() bool {
	return r.Error != nil || r.ErrorMessage != ""
}
