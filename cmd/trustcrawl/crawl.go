package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/trustcrawl/internal/blocklist"
	"github.com/nao1215/trustcrawl/internal/config"
	"github.com/nao1215/trustcrawl/internal/database"
	"github.com/nao1215/trustcrawl/internal/model"
	"github.com/nao1215/trustcrawl/internal/pipeline"
	"github.com/nao1215/trustcrawl/internal/report"
	"github.com/nao1215/trustcrawl/internal/trust"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [address...]",
		Short: "Crawl and score the neighbors of seed addresses",
		Long: `Crawl expands the seed addresses into their transfer graph, scores the
discovered addresses with the EigenTrust compute service and prints them
from most to least trusted. The seeds themselves are never listed.

Each --chain is crawled as its own request; several chains run at once.

Examples:
  # Score the neighbors of one address on Ethereum
  trustcrawl crawl 0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed

  # Crawl two chains, shallower and with fewer results
  trustcrawl crawl --chain eth --chain base -d 2 -l 50 0xabc... 0xdef...

  # Read seeds from a file and write a Markdown report
  trustcrawl crawl -f seeds.txt -m -o report.md

  # Archive the run for 'trustcrawl history'
  trustcrawl crawl --save 0xabc...`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("file", "f", "", "Read seed addresses from a file (one per line, # comments)")
	cmd.Flags().StringSlice("chain", nil, "Chain to crawl, may be repeated (default: first chain of the table)")

	cmd.Flags().IntP("depth", "d", config.DefaultDepth, "Maximum crawl depth (1-10)")
	cmd.Flags().IntP("limit", "l", config.DefaultLimit, "Maximum number of discovered addresses (1-1000)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of chains crawled at once")
	addServiceFlags(cmd)

	cmd.Flags().BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write report to specified file path (creates directories if needed)")
	cmd.Flags().IntP("top", "t", 0, "Show only the N best scores in the text report (0 shows all)")

	cmd.Flags().BoolP("save", "s", false, "Archive the run in the local database")
	cmd.Flags().String("db-dir", "", "Run archive directory (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	seedFile, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	seeds, err := collectSeeds(args, seedFile)
	if err != nil {
		return err
	}
	cfg.Seeds = seeds

	if err := cfg.ValidateCrawl(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	top, err := cmd.Flags().GetInt("top")
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, crawlOutput{out: cmd.OutOrStdout(), top: top}, logger)
}

// collectSeeds merges the positional seeds with those of the seed file.
func collectSeeds(args []string, file string) ([]string, error) {
	seeds := append([]string(nil), args...)
	if file == "" {
		return seeds, nil
	}

	f, err := os.Open(filepath.Clean(file))
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			seeds = append(seeds, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return seeds, nil
}

// crawlOutput is where the crawl reports go.
type crawlOutput struct {
	out io.Writer
	top int
}

// runCrawl runs one request per target chain and writes every report.
func runCrawl(ctx context.Context, cfg *config.Config, output crawlOutput, logger *slog.Logger, opts ...trust.Option) error {
	svcOpts := []trust.Option{trust.WithLogger(logger)}
	if cfg.BlocklistPath != "" {
		bl := blocklist.New(cfg.BlocklistPath, blocklist.WithLogger(logger))
		if err := bl.Reload(); err != nil {
			return err
		}
		svcOpts = append(svcOpts, trust.WithBlocklist(bl))
	}
	svc, err := trust.New(cfg, append(svcOpts, opts...)...)
	if err != nil {
		return err
	}

	chains := cfg.TargetChains
	if len(chains) == 0 {
		chains = []string{cfg.Chains[0].Name}
	}
	reports := make([]*model.TrustReport, 0, len(chains))
	for _, chain := range chains {
		r, err := svc.NewReport(trust.Request{
			Seeds: cfg.Seeds,
			Depth: cfg.Depth,
			Limit: cfg.Limit,
			Chain: chain,
		})
		if err != nil {
			return err
		}
		reports = append(reports, r)
	}

	var db *database.RunDB
	if cfg.SaveToDB {
		db, err = database.Open(dataDir(cfg), database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	out := output.out
	if cfg.ReportFile != "" {
		f, err := createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	writer := newReportWriter(cfg, out, output.top)

	logger.Info("starting crawl",
		"seeds", len(cfg.Seeds),
		"chains", chains,
		"depth", cfg.Depth,
		"limit", cfg.Limit,
		"save", cfg.SaveToDB,
	)
	start := time.Now()

	bp := pipeline.NewBatchProcessor(svc.Pipeline,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var (
		mu     sync.Mutex
		failed int
	)
	err = bp.ProcessBatch(ctx, reports, func(r *model.TrustReport) {
		svc.ObserveReport(r)

		mu.Lock()
		defer mu.Unlock()

		if r.Failed() {
			failed++
		}
		if _, err := writer.Write(r); err != nil {
			logger.Error("report failed", "chain", r.Chain, "error", err)
		}
		saveRun(ctx, db, r, logger)
	})
	if err != nil {
		return err
	}

	logger.Info("crawl finished", "chains", len(reports), "failed", failed, "elapsed", time.Since(start))
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d requests", errCrawlFailed, failed, len(reports))
	}
	return nil
}

// newReportWriter picks the report format.
func newReportWriter(cfg *config.Config, out io.Writer, top int) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(out, report.WithEnvelope(getVersion()), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithTop(top), report.WithVerbose(cfg.Verbose))
	}
}

// createReportFile creates the report file and its parent directories.
// Reports are readable by the owner only.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// saveRun archives r. A nil db is a no-op.
func saveRun(ctx context.Context, db *database.RunDB, r *model.TrustReport, logger *slog.Logger) {
	if db == nil {
		return
	}
	id, err := db.SaveRun(context.WithoutCancel(ctx), r)
	if err != nil {
		logger.Error("failed to save run", "request_id", r.RequestID, "error", err)
		return
	}
	logger.Info("run saved", "id", id, "request_id", r.RequestID)
}
