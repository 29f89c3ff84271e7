package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/trustcrawl/internal/model"
)

// Chain is one entry of the chain table.
type Chain struct {
	// Name is the identifier the neighbor API expects (e.g. "eth").
	Name string `yaml:"name"`

	// Aliases are other accepted spellings (e.g. "ethereum").
	Aliases []string `yaml:"aliases,omitempty"`

	// FromTS is the Unix timestamp the time window starts at.
	FromTS int64 `yaml:"from_ts"`
}

// DefaultChains returns the built-in chain table.
func DefaultChains() []Chain {
	return []Chain{
		{Name: "eth", Aliases: []string{"ethereum"}, FromTS: 1672531200}, // 2023-01-01T00:00:00Z
		{Name: "base", FromTS: 1686790800},                               // 2023-06-15T01:00:00Z
	}
}

// Matches reports whether name is the chain's name or one of its aliases.
// The comparison is case-insensitive.
func (c Chain) Matches(name string) bool {
	name = strings.TrimSpace(name)
	if strings.EqualFold(c.Name, name) {
		return true
	}
	for _, a := range c.Aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// Window returns the lookup time window ending exclude before now.
func (c Chain) Window(now time.Time, exclude time.Duration) model.Query {
	return model.Query{
		FromTS: c.FromTS,
		ToTS:   now.Add(-exclude).Unix(),
	}
}

// ResolveChain finds the chain table entry for name.
func ResolveChain(chains []Chain, name string) (Chain, error) {
	for _, c := range chains {
		if c.Matches(name) {
			return c, nil
		}
	}
	return Chain{}, fmt.Errorf("%w: %q", ErrUnsupportedChain, name)
}

// ChainNames returns the canonical chain names in table order.
func ChainNames(chains []Chain) []string {
	names := make([]string, 0, len(chains))
	for _, c := range chains {
		names = append(names, c.Name)
	}
	return names
}

// ParseLogLevel converts a level name into a slog.Level.
// An empty name is info.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}
}
