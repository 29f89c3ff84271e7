package neighbor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/trustcrawl/internal/model"
)

const (
	// DefaultLargeAccountPrefix is the error-details prefix that marks a large account.
	DefaultLargeAccountPrefix = "large accounts"

	// DefaultTransferValue is the edge weight used when no value is reported.
	DefaultTransferValue = 1.0

	// blockCPNative selects the zero address for fee/burn/mint transfers.
	blockCPNative = "native"
)

// Lookuper performs one raw neighbor lookup. *Client implements it.
type Lookuper interface {
	Lookup(ctx context.Context, chain string, address string, params url.Values) (*Response, error)
}

// Candidate is one qualifying neighbor: the edge to record and the address
// the crawler may expand next.
type Candidate struct {
	Edge     model.Edge
	Neighbor model.Address
}

// Result is the outcome of fetching one address.
// On failure Err is set and Candidates is empty.
type Result struct {
	// Address is the address that was looked up.
	Address model.Address

	// Candidates are the neighbors that passed filtering, in response order.
	Candidates []Candidate

	// Retried is true when the large-account retry was issued.
	Retried bool

	// Blocked counts neighbors dropped by the blocklist.
	Blocked int

	// ZeroTransfers counts neighbors dropped for a zero transfer count.
	ZeroTransfers int

	// Elapsed is the total time spent in lookups.
	Elapsed time.Duration

	// Err is the reason the fetch was abandoned, if any.
	Err error
}

// Failed reports whether the fetch was abandoned.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Fetcher applies the lookup policy for one address.
type Fetcher struct {
	lookuper           Lookuper
	defaultWeight      float64
	largeAccountPrefix string
	logger             *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithDefaultWeight sets the weight used when the transfer value is absent.
func WithDefaultWeight(w float64) FetcherOption {
	return func(f *Fetcher) {
		f.defaultWeight = w
	}
}

// WithLargeAccountPrefix sets the error-details prefix that triggers the retry.
func WithLargeAccountPrefix(prefix string) FetcherOption {
	return func(f *Fetcher) {
		if prefix != "" {
			f.largeAccountPrefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher on top of a Lookuper.
func NewFetcher(lookuper Lookuper, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		lookuper:           lookuper,
		defaultWeight:      DefaultTransferValue,
		largeAccountPrefix: DefaultLargeAccountPrefix,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// SummaryParams returns the query of the primary lookup.
func SummaryParams(q model.Query) url.Values {
	return url.Values{
		"details":  {"summary"},
		"from_ts":  {strconv.FormatInt(q.FromTS, 10)},
		"to_ts":    {strconv.FormatInt(q.ToTS, 10)},
		"block_cp": {blockCPNative},
	}
}

// PartialParams returns the query of the large-account retry.
func PartialParams() url.Values {
	return url.Values{
		"details":  {"partial"},
		"block_cp": {blockCPNative},
	}
}

// Fetch looks up the neighbors of addr and returns the qualifying candidates.
// It never panics on upstream data and never returns an error directly; see Result.Err.
func (f *Fetcher) Fetch(ctx context.Context, addr model.Address, tc model.TraversalContext) (res Result) {
	res.Address = addr
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
	}()

	resp, err := f.lookuper.Lookup(ctx, tc.Chain, addr.String(), SummaryParams(tc.Query))
	if err != nil {
		f.logger.Warn("neighbor lookup failed",
			"address", addr,
			"chain", tc.Chain,
			"error", err,
		)
		res.Err = err
		return res
	}
	f.logger.Debug("summary lookup done",
		"address", addr,
		"elapsed", time.Since(start),
	)

	if f.isLargeAccount(resp) {
		f.logger.Info("large account, retrying with partial details",
			"address", addr,
			"chain", tc.Chain,
		)
		res.Retried = true
		resp, err = f.lookuper.Lookup(ctx, tc.Chain, addr.String(), PartialParams())
		if err != nil {
			f.logger.Warn("partial lookup failed",
				"address", addr,
				"chain", tc.Chain,
				"error", err,
			)
			res.Err = err
			return res
		}
		if f.isLargeAccount(resp) {
			res.Err = fmt.Errorf("%w: %s", ErrLargeAccount, resp.Error.Details)
			f.logger.Warn("partial lookup still reports a large account",
				"address", addr,
				"chain", tc.Chain,
			)
			return res
		}
	}

	if resp.Error != nil {
		res.Err = fmt.Errorf("%w: %s", ErrUpstream, resp.Error.Details)
		f.logger.Warn("neighbor api error",
			"address", addr,
			"chain", tc.Chain,
			"details", resp.Error.Details,
		)
		return res
	}

	res.Candidates = f.candidates(addr, resp.Neighbors, tc, &res)
	return res
}

// isLargeAccount reports whether resp carries the large-account error.
func (f *Fetcher) isLargeAccount(resp *Response) bool {
	return resp.Error != nil && strings.HasPrefix(resp.Error.Details, f.largeAccountPrefix)
}

// candidates filters neighbors and builds edges from addr.
func (f *Fetcher) candidates(addr model.Address, neighbors []Neighbor, tc model.TraversalContext, res *Result) []Candidate {
	out := make([]Candidate, 0, len(neighbors))
	for _, n := range neighbors {
		to, err := model.NewAddress(n.NeighborInfo.Address)
		if err != nil {
			f.logger.Debug("skipping neighbor without address", "address", addr)
			continue
		}

		if tc.Blocked(to) {
			f.logger.Debug("skipping blocklisted neighbor", "neighbor", to)
			res.Blocked++
			continue
		}

		// Zero means the transfer is outgoing only or predates from_ts.
		if n.TransfersToNeighbor == 0 {
			f.logger.Debug("skipping neighbor without inbound transfers", "neighbor", to)
			res.ZeroTransfers++
			continue
		}

		out = append(out, Candidate{
			Edge: model.Edge{
				From:   addr,
				To:     to,
				Weight: f.weight(n.FiatToNeighbor, to),
			},
			Neighbor: to,
		})
	}
	return out
}

// weight returns the parsed transfer value or the default.
func (f *Fetcher) weight(amount Amount, to model.Address) float64 {
	v, ok := amount.Float()
	if ok {
		return v
	}
	if amount.Present() {
		f.logger.Debug("unparseable transfer value, using default",
			"neighbor", to,
			"default", f.defaultWeight,
		)
	}
	return f.defaultWeight
}
