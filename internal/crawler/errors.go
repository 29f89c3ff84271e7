package crawler

import "errors"

var (
	// ErrNoSeeds is returned when a crawl is started without seed addresses.
	ErrNoSeeds = errors.New("no seed addresses")

	// ErrInvalidDepth is returned when MaxDepth is less than 1.
	ErrInvalidDepth = errors.New("max depth must be at least 1")

	// ErrInvalidLimit is returned when MaxResults is negative.
	ErrInvalidLimit = errors.New("max results must not be negative")

	// ErrCanceled is returned when the crawl context ends before the crawl does.
	// The partial result is still returned alongside it.
	ErrCanceled = errors.New("crawl canceled")

	// ErrBranchPanic marks an Outcome whose task panicked.
	ErrBranchPanic = errors.New("crawl task panicked")
)
