package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "trustcrawl"

	// DefaultNeighborURL is the neighbor lookup API root.
	DefaultNeighborURL = "https://api.nexandria.com"

	// DefaultNeighborTimeout bounds a single neighbor lookup.
	DefaultNeighborTimeout = 60 * time.Second

	// DefaultMaxConcurrency is the number of simultaneous neighbor lookups.
	DefaultMaxConcurrency = 5

	// DefaultRateLimit is the neighbor API request budget per second.
	DefaultRateLimit = 12.0

	// DefaultTransferValue is the edge weight used when no value is reported.
	DefaultTransferValue = 1.0

	// DefaultLargeAccountPrefix marks a large-account error in the neighbor API.
	DefaultLargeAccountPrefix = "large accounts"

	// DefaultExcludeRecent keeps the most recent transfers out of the time window.
	DefaultExcludeRecent = 10 * time.Minute

	// DefaultScoringURL is the EigenTrust compute service root.
	DefaultScoringURL = "http://localhost:8080"

	// DefaultScoringTimeout bounds a single compute call.
	DefaultScoringTimeout = 60 * time.Second

	// DefaultAlpha is the pretrust weight.
	DefaultAlpha = 0.5

	// DefaultEpsilon is the convergence threshold.
	DefaultEpsilon = 1.0

	// DefaultMaxIterations bounds the EigenTrust iterations.
	DefaultMaxIterations = 50

	// DefaultFlatTail is the early-termination window.
	DefaultFlatTail = 2

	// DefaultReloadInterval is how often the blocklist file is re-read.
	DefaultReloadInterval = time.Hour

	// DefaultListenAddress is where `trustcrawl serve` listens.
	DefaultListenAddress = ":8000"

	// DefaultDepth is the crawl depth when none is requested.
	DefaultDepth = 5

	// DefaultLimit is the result limit when none is requested.
	DefaultLimit = 100

	// MaxDepth is the largest accepted crawl depth.
	MaxDepth = 10

	// MaxLimit is the largest accepted result limit.
	MaxLimit = 1000

	// DefaultBatchSize is the number of chains crawled at once by `trustcrawl crawl`.
	DefaultBatchSize = 4

	// DefaultLogLevel is the log level when none is configured.
	DefaultLogLevel = "info"
)

// Config holds all configuration options for trustcrawl.
// It is populated from defaults, the config file, the environment and CLI
// flags, and then passed down explicitly.
type Config struct {
	// NeighborURL is the neighbor lookup API root.
	NeighborURL string

	// NeighborAPIKey is sent in the API-Key header. It is never logged.
	NeighborAPIKey string

	// NeighborTimeout bounds each neighbor lookup.
	NeighborTimeout time.Duration

	// MaxConcurrency is the number of simultaneous neighbor lookups across
	// every crawl of the process.
	MaxConcurrency int

	// RateLimit is the neighbor request budget per second. Zero disables it.
	RateLimit float64

	// ProxyAddress is an optional SOCKS5 proxy (host:port) for neighbor lookups.
	ProxyAddress string

	// DefaultTransferValue is the edge weight when the API reports no value.
	DefaultTransferValue float64

	// LargeAccountPrefix is the error-details prefix that triggers the
	// partial-detail retry.
	LargeAccountPrefix string

	// ExcludeRecent is subtracted from now to form the end of the time window.
	ExcludeRecent time.Duration

	// ScoringURL is the EigenTrust compute service root.
	ScoringURL string

	// ScoringTimeout bounds each compute call.
	ScoringTimeout time.Duration

	// Alpha, Epsilon, MaxIterations and FlatTail are the EigenTrust hyperparameters.
	Alpha         float64
	Epsilon       float64
	MaxIterations int
	FlatTail      int

	// BlocklistPath is the blocklist file. Empty disables the blocklist.
	BlocklistPath string

	// BlocklistReloadInterval is how often the blocklist is re-read. Zero
	// disables periodic reloads; file changes still trigger one.
	BlocklistReloadInterval time.Duration

	// ListenAddress is where the HTTP service listens.
	ListenAddress string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogJSON switches the log output to JSON.
	LogJSON bool

	// Verbose forces the debug log level.
	Verbose bool

	// Chains is the chain table.
	Chains []Chain

	// Seeds are the addresses to crawl from (crawl command).
	Seeds []string

	// TargetChains are the chains to crawl (crawl command).
	TargetChains []string

	// Depth is the crawl depth (crawl command, service default).
	Depth int

	// Limit is the result limit (crawl command, service default).
	Limit int

	// BatchSize is the number of chains crawled at once.
	BatchSize int

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// DBDir is the directory of the run archive.
	DBDir string

	// SaveToDB archives every finished crawl.
	SaveToDB bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .trustcrawl is searched in the current and home directories.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		NeighborURL:             DefaultNeighborURL,
		NeighborTimeout:         DefaultNeighborTimeout,
		MaxConcurrency:          DefaultMaxConcurrency,
		RateLimit:               DefaultRateLimit,
		DefaultTransferValue:    DefaultTransferValue,
		LargeAccountPrefix:      DefaultLargeAccountPrefix,
		ExcludeRecent:           DefaultExcludeRecent,
		ScoringURL:              DefaultScoringURL,
		ScoringTimeout:          DefaultScoringTimeout,
		Alpha:                   DefaultAlpha,
		Epsilon:                 DefaultEpsilon,
		MaxIterations:           DefaultMaxIterations,
		FlatTail:                DefaultFlatTail,
		BlocklistReloadInterval: DefaultReloadInterval,
		ListenAddress:           DefaultListenAddress,
		LogLevel:                DefaultLogLevel,
		Chains:                  DefaultChains(),
		Depth:                   DefaultDepth,
		Limit:                   DefaultLimit,
		BatchSize:               DefaultBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for trustcrawl.
// On Linux: ~/.local/share/trustcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for trustcrawl.
// On Linux: ~/.config/trustcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the settings shared by every command.
// It returns the first problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.NeighborURL) == "" {
		return ErrMissingNeighborURL
	}
	if strings.TrimSpace(c.ScoringURL) == "" {
		return ErrMissingScoringURL
	}
	if c.NeighborTimeout <= 0 || c.ScoringTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.ExcludeRecent < 0 {
		return ErrInvalidExcludeRecent
	}
	if c.Alpha < 0 || c.Alpha > 1 {
		return ErrInvalidAlpha
	}
	if c.Epsilon <= 0 {
		return ErrInvalidEpsilon
	}
	if c.MaxIterations <= 0 {
		return ErrInvalidMaxIterations
	}
	if c.FlatTail < 0 {
		return ErrInvalidFlatTail
	}
	if c.BlocklistReloadInterval < 0 {
		return ErrInvalidReloadInterval
	}
	if len(c.Chains) == 0 {
		return ErrNoChains
	}
	if c.Depth < 1 || c.Depth > MaxDepth {
		return ErrInvalidDepth
	}
	if c.Limit < 1 || c.Limit > MaxLimit {
		return ErrInvalidLimit
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ValidateCrawl checks the settings of the one-shot crawl command.
func (c *Config) ValidateCrawl() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	for _, name := range c.TargetChains {
		if _, err := ResolveChain(c.Chains, name); err != nil {
			return err
		}
	}
	return nil
}
