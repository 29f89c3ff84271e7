package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nao1215/trustcrawl/internal/config"
	applog "github.com/nao1215/trustcrawl/internal/log"
)

// loadConfig builds the configuration of cmd: defaults, then the config
// file, then TRUSTCRAWL_* variables, then the flags set on the command line.
func loadConfig(cmd *cobra.Command, lookup config.LookupFunc) (*config.Config, error) {
	cfg := config.NewConfig()

	var path string
	if f := cmd.Flags().Lookup("config"); f != nil {
		path = f.Value.String()
	}
	cfg.ConfigFilePath = path

	// An explicitly named file must exist; otherwise a missing file is fine.
	if found := config.FindConfigFile(path); found != "" {
		file, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		file.Apply(cfg)
	} else if path != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	}

	if err := config.ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies the flags the user set into c. Flags left at their
// default do not override the file or the environment.
func applyFlags(fs *pflag.FlagSet, c *config.Config) error {
	var firstErr error
	fs.Visit(func(f *pflag.Flag) {
		if firstErr != nil {
			return
		}
		if err := applyFlag(fs, f.Name, c); err != nil {
			firstErr = fmt.Errorf("flag --%s: %w", f.Name, err)
		}
	})
	return firstErr
}

func applyFlag(fs *pflag.FlagSet, name string, c *config.Config) error {
	var err error
	switch name {
	case "verbose":
		c.Verbose, err = fs.GetBool(name)
	case "log-level":
		c.LogLevel, err = fs.GetString(name)
	case "log-json":
		c.LogJSON, err = fs.GetBool(name)
	case "neighbor-url":
		c.NeighborURL, err = fs.GetString(name)
	case "scoring-url":
		c.ScoringURL, err = fs.GetString(name)
	case "concurrency":
		c.MaxConcurrency, err = fs.GetInt(name)
	case "rate-limit":
		c.RateLimit, err = fs.GetFloat64(name)
	case "proxy":
		c.ProxyAddress, err = fs.GetString(name)
	case "blocklist":
		c.BlocklistPath, err = fs.GetString(name)
	case "depth":
		c.Depth, err = fs.GetInt(name)
	case "limit":
		c.Limit, err = fs.GetInt(name)
	case "batch":
		c.BatchSize, err = fs.GetInt(name)
	case "chain":
		c.TargetChains, err = fs.GetStringSlice(name)
	case "json":
		c.JSONReport, err = fs.GetBool(name)
	case "markdown":
		c.MarkdownReport, err = fs.GetBool(name)
	case "output":
		c.ReportFile, err = fs.GetString(name)
	case "save":
		c.SaveToDB, err = fs.GetBool(name)
	case "db-dir":
		c.DBDir, err = fs.GetString(name)
	case "listen":
		c.ListenAddress, err = fs.GetString(name)
	}
	return err
}

// addServiceFlags registers the flags shared by crawl and serve.
func addServiceFlags(cmd *cobra.Command) {
	cmd.Flags().String("neighbor-url", config.DefaultNeighborURL, "Neighbor lookup API root")
	cmd.Flags().String("scoring-url", config.DefaultScoringURL, "EigenTrust compute service root")
	cmd.Flags().Int("concurrency", config.DefaultMaxConcurrency, "Maximum simultaneous neighbor lookups")
	cmd.Flags().Float64("rate-limit", config.DefaultRateLimit, "Neighbor lookups per second (0 disables the limit)")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy (host:port) for neighbor lookups")
	cmd.Flags().String("blocklist", "", "File of addresses that are never expanded")
}

// newLogger creates the process logger from the log settings.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return applog.New(w, applog.Options{Level: level, JSON: cfg.LogJSON}), nil
}

// dataDir returns the run archive directory.
func dataDir(cfg *config.Config) string {
	if cfg.DBDir != "" {
		return cfg.DBDir
	}
	return config.XDGDataDir()
}

// errCrawlFailed is returned when at least one crawl of a batch failed.
var errCrawlFailed = errors.New("crawl failed")
