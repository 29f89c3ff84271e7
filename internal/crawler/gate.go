package crawler

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMaxConcurrency is the default number of simultaneous lookups.
const DefaultMaxConcurrency = 5

// Gate bounds simultaneous outbound neighbor lookups.
// A single Gate is meant to be shared by every crawl of the process.
type Gate struct {
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	capacity int
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithRateLimit additionally limits lookups to perSecond requests per second.
// A non-positive rate disables the limiter.
func WithRateLimit(perSecond float64, burst int) GateOption {
	return func(g *Gate) {
		if perSecond <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewGate creates a Gate with the given number of permits.
// A non-positive capacity selects DefaultMaxConcurrency.
func NewGate(capacity int, opts ...GateOption) *Gate {
	if capacity <= 0 {
		capacity = DefaultMaxConcurrency
	}
	g := &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire blocks until a permit is available and the rate limiter admits the
// call. It fails only when ctx ends first, in which case no permit is held.
// Every successful Acquire must be paired with one Release.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.sem.Release(1)
			return err
		}
	}
	return nil
}

// Release returns a permit.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// Capacity returns the number of permits.
func (g *Gate) Capacity() int {
	return g.capacity
}
