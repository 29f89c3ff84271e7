package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate and Config.ValidateCrawl so
// callers can use errors.Is.
var (
	// ErrNoSeeds is returned when a crawl is requested without seed addresses.
	ErrNoSeeds = errors.New("no seed addresses specified: provide addresses as arguments or use --list")

	// ErrInvalidDepth is returned when the crawl depth is outside 1..MaxDepth.
	ErrInvalidDepth = errors.New("invalid depth: must be between 1 and 10")

	// ErrInvalidLimit is returned when the result limit is outside 1..MaxLimit.
	ErrInvalidLimit = errors.New("invalid limit: must be between 1 and 1000")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the lookup concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid max concurrency: must be positive")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidBatchSize is returned when the number of concurrent chains is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrMissingNeighborURL is returned when no neighbor API URL is configured.
	ErrMissingNeighborURL = errors.New("neighbor api url is not configured")

	// ErrMissingScoringURL is returned when no scoring engine URL is configured.
	ErrMissingScoringURL = errors.New("scoring engine url is not configured")

	// ErrInvalidAlpha is returned when alpha is outside [0, 1].
	ErrInvalidAlpha = errors.New("invalid alpha: must be between 0 and 1")

	// ErrInvalidEpsilon is returned when epsilon is not positive.
	ErrInvalidEpsilon = errors.New("invalid epsilon: must be positive")

	// ErrInvalidMaxIterations is returned when max iterations is not positive.
	ErrInvalidMaxIterations = errors.New("invalid max iterations: must be positive")

	// ErrInvalidFlatTail is returned when the flat tail is negative.
	ErrInvalidFlatTail = errors.New("invalid flat tail: must be non-negative")

	// ErrInvalidExcludeRecent is returned when the exclude-recent window is negative.
	ErrInvalidExcludeRecent = errors.New("invalid exclude recent window: must be non-negative")

	// ErrInvalidReloadInterval is returned when the blocklist reload interval is negative.
	ErrInvalidReloadInterval = errors.New("invalid blocklist reload interval: must be non-negative")

	// ErrNoChains is returned when the chain table is empty.
	ErrNoChains = errors.New("no chains configured")

	// ErrUnsupportedChain is returned when a chain name or alias is not in the chain table.
	ErrUnsupportedChain = errors.New("unsupported chain")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidLogLevel is returned when the log level is not debug, info, warn or error.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn or error")

	// ErrInvalidEnv is returned when an environment variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")
)
