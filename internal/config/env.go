package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the prefix of every environment variable read by ApplyEnv.
const EnvPrefix = "TRUSTCRAWL_"

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// envBinding maps one variable (without the prefix) onto a Config field.
type envBinding struct {
	key   string
	apply func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"NEIGHBOR_URL", func(c *Config, v string) error { c.NeighborURL = v; return nil }},
	{"NEIGHBOR_API_KEY", func(c *Config, v string) error { c.NeighborAPIKey = v; return nil }},
	{"NEIGHBOR_TIMEOUT", func(c *Config, v string) error { return parseDuration(v, &c.NeighborTimeout) }},
	{"NEIGHBOR_MAX_CONCURRENCY", func(c *Config, v string) error { return parseInt(v, &c.MaxConcurrency) }},
	{"NEIGHBOR_RATE_LIMIT", func(c *Config, v string) error { return parseFloat(v, &c.RateLimit) }},
	{"NEIGHBOR_PROXY", func(c *Config, v string) error { c.ProxyAddress = v; return nil }},
	{"DEFAULT_TRANSFER_VALUE", func(c *Config, v string) error { return parseFloat(v, &c.DefaultTransferValue) }},
	{"LARGE_ACCOUNT_PREFIX", func(c *Config, v string) error { c.LargeAccountPrefix = v; return nil }},
	{"EXCLUDE_RECENT", func(c *Config, v string) error { return parseDuration(v, &c.ExcludeRecent) }},
	{"SCORING_URL", func(c *Config, v string) error { c.ScoringURL = v; return nil }},
	{"SCORING_TIMEOUT", func(c *Config, v string) error { return parseDuration(v, &c.ScoringTimeout) }},
	{"ALPHA", func(c *Config, v string) error { return parseFloat(v, &c.Alpha) }},
	{"EPSILON", func(c *Config, v string) error { return parseFloat(v, &c.Epsilon) }},
	{"MAX_ITERATIONS", func(c *Config, v string) error { return parseInt(v, &c.MaxIterations) }},
	{"FLAT_TAIL", func(c *Config, v string) error { return parseInt(v, &c.FlatTail) }},
	{"BLOCKLIST", func(c *Config, v string) error { c.BlocklistPath = v; return nil }},
	{"BLOCKLIST_RELOAD_INTERVAL", func(c *Config, v string) error { return parseDuration(v, &c.BlocklistReloadInterval) }},
	{"LISTEN", func(c *Config, v string) error { c.ListenAddress = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{"LOG_JSON", func(c *Config, v string) error { return parseBool(v, &c.LogJSON) }},
	{"DB_DIR", func(c *Config, v string) error { c.DBDir = v; return nil }},
}

// ApplyEnv overrides c with TRUSTCRAWL_* variables read through lookup.
// A nil lookup reads the process environment. Empty values are ignored.
func ApplyEnv(c *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, b := range envBindings {
		v, ok := lookup(EnvPrefix + b.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := b.apply(c, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%w: %s%s=%q: %w", ErrInvalidEnv, EnvPrefix, b.key, v, err)
		}
	}
	return nil
}

// EnvKeys returns the full names of every variable ApplyEnv reads.
func EnvKeys() []string {
	keys := make([]string, 0, len(envBindings))
	for _, b := range envBindings {
		keys = append(keys, EnvPrefix+b.key)
	}
	return keys
}

func parseDuration(v string, dst *time.Duration) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare numbers are seconds.
		secs, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return err
		}
		d = time.Duration(secs * float64(time.Second))
	}
	*dst = d
	return nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseFloat(v string, dst *float64) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}
