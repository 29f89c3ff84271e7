package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/trustcrawl/internal/blocklist"
	"github.com/nao1215/trustcrawl/internal/config"
	"github.com/nao1215/trustcrawl/internal/metrics"
	"github.com/nao1215/trustcrawl/internal/server"
	"github.com/nao1215/trustcrawl/internal/trust"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve trust lookups over HTTP",
		Long: `Serve answers trust lookups over HTTP until interrupted.

Routes:
  GET|POST /graph/neighbors/:blockchain?k=5&limit=100
      Body: JSON array of seed addresses.
      Response: {"result": [{"address": "...", "score": 0.1}, ...]}
  GET /_health
  GET /metrics   Prometheus metrics

All requests share one neighbor lookup budget (--concurrency, --rate-limit).
The blocklist file is reloaded when it changes and every reload interval.

Examples:
  # Listen on the default address
  trustcrawl serve

  # Listen on port 9000 with a blocklist
  trustcrawl serve -a :9000 --blocklist /etc/trustcrawl/blocklist.txt`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "a", config.DefaultListenAddress, "Address to listen on")
	addServiceFlags(cmd)

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, bl, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	return serve(ctx, cfg.ListenAddress, srv, bl)
}

// newServer wires the service, its metrics and the blocklist behind the
// HTTP server. The blocklist is nil when none is configured.
func newServer(cfg *config.Config, logger *slog.Logger) (*server.Server, *blocklist.List, error) {
	m := metrics.New()
	opts := []trust.Option{
		trust.WithLogger(logger),
		trust.WithMetrics(m),
	}

	var bl *blocklist.List
	if cfg.BlocklistPath != "" {
		bl = blocklist.New(cfg.BlocklistPath,
			blocklist.WithInterval(cfg.BlocklistReloadInterval),
			blocklist.WithLogger(logger),
			blocklist.WithReloadHook(m.SetBlocklistSize),
		)
		// A missing file is not fatal: the watcher picks it up once it appears.
		if err := bl.Reload(); err != nil {
			logger.Warn("blocklist not loaded, starting without it",
				"path", cfg.BlocklistPath,
				"error", err,
			)
		}
		opts = append(opts, trust.WithBlocklist(bl))
	}

	svc, err := trust.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("trust service ready",
		"chains", svc.Chains(),
		"max_concurrency", cfg.MaxConcurrency,
		"rate_limit", cfg.RateLimit,
		"blocklist", cfg.BlocklistPath,
	)
	return server.New(svc, server.WithLogger(logger), server.WithMetrics(m)), bl, nil
}

// serve runs the HTTP server and the blocklist watcher until ctx ends or
// one of them fails.
func serve(ctx context.Context, addr string, srv *server.Server, bl *blocklist.List) error {
	g, ctx := errgroup.WithContext(ctx)
	if bl != nil {
		g.Go(func() error {
			return bl.Watch(ctx)
		})
	}
	g.Go(func() error {
		err := srv.Run(ctx, addr)
		if err == nil {
			// Stop the watcher once the server is down.
			return context.Canceled
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
