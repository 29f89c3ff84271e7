package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/trustcrawl/internal/graph"
	"github.com/nao1215/trustcrawl/internal/model"
	"github.com/nao1215/trustcrawl/internal/neighbor"
)

// NeighborFetcher fetches the qualifying neighbors of one address.
// *neighbor.Fetcher implements it.
type NeighborFetcher interface {
	Fetch(ctx context.Context, addr model.Address, tc model.TraversalContext) neighbor.Result
}

// Outcome is what one crawl task reports back to the orchestrator.
type Outcome struct {
	// Address is the address the task visited.
	Address model.Address

	// Depth is the level the address was fetched at; seeds are depth 1.
	Depth int

	// Edges is the number of edges the task recorded.
	Edges int

	// Spawned is the number of follow-up tasks the task started.
	Spawned int

	// Retried is true when the fetch needed the large-account retry.
	Retried bool

	// Blocked and ZeroTransfers count the neighbors the fetcher dropped.
	Blocked       int
	ZeroTransfers int

	// Elapsed is the time spent in the neighbor lookups.
	Elapsed time.Duration

	// Err is the reason this branch was abandoned. It is never propagated.
	Err error
}

// Observer receives every Outcome of every crawl.
// Calls are made from a single goroutine per crawl.
type Observer interface {
	ObserveOutcome(chain string, o Outcome)
}

// Result is the product of a finished crawl.
type Result struct {
	// Snapshot is the graph gathered by the crawl.
	Snapshot graph.Snapshot

	// Stats summarizes the crawl.
	Stats model.CrawlStats
}

// Crawler expands seed addresses into a transfer graph.
// A Crawler holds no per-crawl state and may run several crawls at once.
type Crawler struct {
	fetcher  NeighborFetcher
	gate     *Gate
	logger   *slog.Logger
	observer Observer
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithGate sets the Gate shared with other crawls.
func WithGate(g *Gate) Option {
	return func(c *Crawler) {
		c.gate = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithObserver sets an Observer, typically the metrics collector.
func WithObserver(o Observer) Option {
	return func(c *Crawler) {
		c.observer = o
	}
}

// New creates a Crawler. Without WithGate it gets a private Gate with
// DefaultMaxConcurrency permits.
func New(fetcher NeighborFetcher, opts ...Option) *Crawler {
	c := &Crawler{fetcher: fetcher}
	for _, opt := range opts {
		opt(c)
	}
	if c.gate == nil {
		c.gate = NewGate(DefaultMaxConcurrency)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// crawl is the state of one running crawl.
type crawl struct {
	*Crawler
	ctx      context.Context
	tc       model.TraversalContext
	store    *graph.Store
	group    errgroup.Group
	outcomes chan Outcome
}

// Crawl runs one crawl from seeds and waits for all of it to finish.
//
// Per-address failures never make Crawl fail; they are counted in the stats.
// If ctx ends before the crawl, pending lookups fail fast and the partial
// result is returned together with an error wrapping ErrCanceled.
func (c *Crawler) Crawl(ctx context.Context, seeds []model.Address, tc model.TraversalContext) (*Result, error) {
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	if tc.MaxDepth < 1 {
		return nil, ErrInvalidDepth
	}
	if tc.MaxResults < 0 {
		return nil, ErrInvalidLimit
	}

	start := time.Now()
	cr := &crawl{
		Crawler:  c,
		ctx:      ctx,
		tc:       tc,
		store:    graph.NewStore(),
		outcomes: make(chan Outcome, c.gate.Capacity()*2),
	}

	c.logger.Info("crawl started",
		"chain", tc.Chain,
		"seeds", len(seeds),
		"max_depth", tc.MaxDepth,
		"max_results", tc.MaxResults,
	)

	statsCh := make(chan model.CrawlStats, 1)
	go func() {
		statsCh <- cr.collect()
	}()

	cr.store.Seed(seeds...)
	for _, seed := range cr.store.Snapshot().SeedAddresses() {
		cr.enter(seed, 1)
	}

	// Tasks always return nil; Wait is only the join.
	_ = cr.group.Wait() //nolint:errcheck // tasks never fail
	close(cr.outcomes)
	stats := <-statsCh

	snap := cr.store.Snapshot()
	stats.Edges = len(snap.Edges)
	stats.Addresses = snap.Distinct()
	stats.Discovered = snap.Discovered
	stats.Duration = time.Since(start)

	c.logger.Info("crawl finished",
		"chain", tc.Chain,
		"fetches", stats.Fetches,
		"failed_fetches", stats.FailedFetches,
		"blocked_neighbors", stats.BlockedNeighbors,
		"edges", stats.Edges,
		"addresses", stats.Addresses,
		"duration", stats.Duration,
	)

	res := &Result{Snapshot: snap, Stats: stats}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return res, nil
}

// enter schedules a visit of addr at depth.
// It is called before the calling task returns, so the group never drains early.
func (cr *crawl) enter(addr model.Address, depth int) {
	cr.group.Go(func() error {
		cr.outcomes <- cr.visit(addr, depth)
		return nil
	})
}

// visit fetches addr, records its edges and expands the neighbors it claims.
func (cr *crawl) visit(addr model.Address, depth int) (out Outcome) {
	out = Outcome{Address: addr, Depth: depth}
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%w: %v", ErrBranchPanic, r)
			cr.logger.Error("crawl task panicked",
				"address", addr,
				"depth", depth,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := cr.gate.Acquire(cr.ctx); err != nil {
		out.Err = err
		return out
	}
	res := func() neighbor.Result {
		defer cr.gate.Release()
		return cr.fetcher.Fetch(cr.ctx, addr, cr.tc)
	}()

	out.Retried = res.Retried
	out.Blocked = res.Blocked
	out.ZeroTransfers = res.ZeroTransfers
	out.Elapsed = res.Elapsed
	if res.Failed() {
		out.Err = res.Err
		return out
	}

	for _, cand := range res.Candidates {
		if cr.tc.Blocked(cand.Neighbor) {
			continue
		}
		cr.store.AddEdge(cand.Edge)
		out.Edges++

		_, expand := cr.store.TryClaim(cand.Neighbor, cr.tc.MaxResults)
		if expand && depth < cr.tc.MaxDepth {
			cr.enter(cand.Neighbor, depth+1)
			out.Spawned++
		}
	}
	return out
}

// collect drains outcomes until the channel is closed.
func (cr *crawl) collect() model.CrawlStats {
	var stats model.CrawlStats
	for o := range cr.outcomes {
		stats.Fetches++
		if o.Retried {
			stats.Retries++
		}
		stats.BlockedNeighbors += o.Blocked
		stats.ZeroTransferNeighbors += o.ZeroTransfers
		if o.Depth > stats.MaxDepthReached {
			stats.MaxDepthReached = o.Depth
		}
		if o.Err != nil {
			stats.FailedFetches++
			cr.logger.Debug("branch abandoned",
				"address", o.Address,
				"depth", o.Depth,
				"error", o.Err,
			)
		}
		if cr.observer != nil {
			cr.observer.ObserveOutcome(cr.tc.Chain, o)
		}
	}
	return stats
}
