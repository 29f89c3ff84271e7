package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".trustcrawl"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .trustcrawl configuration file.
// Zero values mean "not set" and leave the current setting alone.
type File struct {
	Neighbor  NeighborSection  `yaml:"neighbor,omitempty"`
	Scoring   ScoringSection   `yaml:"scoring,omitempty"`
	Blocklist BlocklistSection `yaml:"blocklist,omitempty"`
	Server    ServerSection    `yaml:"server,omitempty"`
	Log       LogSection       `yaml:"log,omitempty"`
	Crawl     CrawlSection     `yaml:"crawl,omitempty"`

	// Chains replaces the whole chain table when present.
	Chains []Chain `yaml:"chains,omitempty"`
}

// NeighborSection configures the neighbor lookup API.
type NeighborSection struct {
	URL                  string        `yaml:"url,omitempty"`
	APIKey               string        `yaml:"api_key,omitempty"`
	Timeout              time.Duration `yaml:"timeout,omitempty"`
	MaxConcurrency       int           `yaml:"max_concurrency,omitempty"`
	RateLimit            *float64      `yaml:"rate_limit,omitempty"`
	Proxy                string        `yaml:"proxy,omitempty"`
	DefaultTransferValue *float64      `yaml:"default_transfer_value,omitempty"`
	LargeAccountPrefix   string        `yaml:"large_account_prefix,omitempty"`
	ExcludeRecent        *Duration     `yaml:"exclude_recent,omitempty"`
}

// ScoringSection configures the EigenTrust compute service.
type ScoringSection struct {
	URL           string        `yaml:"url,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	Alpha         *float64      `yaml:"alpha,omitempty"`
	Epsilon       *float64      `yaml:"epsilon,omitempty"`
	MaxIterations int           `yaml:"max_iterations,omitempty"`
	FlatTail      *int          `yaml:"flat_tail,omitempty"`
}

// BlocklistSection configures the blocklist file.
type BlocklistSection struct {
	Path           string    `yaml:"path,omitempty"`
	ReloadInterval *Duration `yaml:"reload_interval,omitempty"`
}

// ServerSection configures the HTTP service.
type ServerSection struct {
	Listen string `yaml:"listen,omitempty"`
}

// LogSection configures logging.
type LogSection struct {
	Level string `yaml:"level,omitempty"`
	JSON  *bool  `yaml:"json,omitempty"`
}

// CrawlSection sets the default crawl bounds.
type CrawlSection struct {
	Depth     int    `yaml:"depth,omitempty"`
	Limit     int    `yaml:"limit,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty"`
	DBDir     string `yaml:"db_dir,omitempty"`
}

// Duration is a time.Duration whose explicit zero survives the merge.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v time.Duration
	if err := node.Decode(&v); err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Apply merges the file into c. Set values override c.
func (f *File) Apply(c *Config) {
	n := f.Neighbor
	setString(&c.NeighborURL, n.URL)
	setString(&c.NeighborAPIKey, n.APIKey)
	setDuration(&c.NeighborTimeout, n.Timeout)
	setInt(&c.MaxConcurrency, n.MaxConcurrency)
	if n.RateLimit != nil {
		c.RateLimit = *n.RateLimit
	}
	setString(&c.ProxyAddress, n.Proxy)
	if n.DefaultTransferValue != nil {
		c.DefaultTransferValue = *n.DefaultTransferValue
	}
	setString(&c.LargeAccountPrefix, n.LargeAccountPrefix)
	if n.ExcludeRecent != nil {
		c.ExcludeRecent = n.ExcludeRecent.Duration
	}

	s := f.Scoring
	setString(&c.ScoringURL, s.URL)
	setDuration(&c.ScoringTimeout, s.Timeout)
	if s.Alpha != nil {
		c.Alpha = *s.Alpha
	}
	if s.Epsilon != nil {
		c.Epsilon = *s.Epsilon
	}
	setInt(&c.MaxIterations, s.MaxIterations)
	if s.FlatTail != nil {
		c.FlatTail = *s.FlatTail
	}

	setString(&c.BlocklistPath, f.Blocklist.Path)
	if f.Blocklist.ReloadInterval != nil {
		c.BlocklistReloadInterval = f.Blocklist.ReloadInterval.Duration
	}

	setString(&c.ListenAddress, f.Server.Listen)

	setString(&c.LogLevel, f.Log.Level)
	if f.Log.JSON != nil {
		c.LogJSON = *f.Log.JSON
	}

	setInt(&c.Depth, f.Crawl.Depth)
	setInt(&c.Limit, f.Crawl.Limit)
	setInt(&c.BatchSize, f.Crawl.BatchSize)
	setString(&c.DBDir, f.Crawl.DBDir)

	if len(f.Chains) > 0 {
		c.Chains = f.Chains
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .trustcrawl in the current directory
// 3. Look for .trustcrawl in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
