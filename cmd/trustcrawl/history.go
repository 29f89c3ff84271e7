package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/trustcrawl/internal/config"
	"github.com/nao1215/trustcrawl/internal/database"
	"github.com/nao1215/trustcrawl/internal/model"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// It lists and shows the runs archived by 'trustcrawl crawl --save'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List or show archived crawl runs",
		Long: `History lists the runs archived with 'trustcrawl crawl --save', newest first.
Given a run ID (or --request-id) it prints the archived report instead.

Examples:
  # List the latest runs
  trustcrawl history

  # List the latest runs on Base only
  trustcrawl history --chain base -n 5

  # Show run 12 as Markdown
  trustcrawl history -m 12

  # Delete run 12
  trustcrawl history --delete 12`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("chain", "", "Only list runs of this chain")
	cmd.Flags().IntP("number", "n", defaultHistoryLimit, "Number of runs to list (0 lists all)")
	cmd.Flags().StringP("request-id", "r", "", "Show the run with this request ID")
	cmd.Flags().Bool("delete", false, "Delete the given run instead of showing it")
	cmd.Flags().BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().String("db-dir", "", "Run archive directory (default: XDG data directory)")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	runID     int64
	requestID string
	chain     string
	number    int
	delete    bool
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return config.ErrConflictingReportFormats
	}

	var opts historyOptions
	if len(args) == 1 {
		opts.runID, err = strconv.ParseInt(args[0], 10, 64)
		if err != nil || opts.runID <= 0 {
			return fmt.Errorf("invalid run ID %q", args[0])
		}
	}
	if opts.requestID, err = cmd.Flags().GetString("request-id"); err != nil {
		return err
	}
	if opts.chain, err = cmd.Flags().GetString("chain"); err != nil {
		return err
	}
	if opts.number, err = cmd.Flags().GetInt("number"); err != nil {
		return err
	}
	if opts.delete, err = cmd.Flags().GetBool("delete"); err != nil {
		return err
	}
	if opts.delete && opts.runID == 0 {
		return errors.New("--delete needs a run ID")
	}

	// Validate arguments before opening the database.
	if opts.chain != "" {
		c, err := config.ResolveChain(cfg.Chains, opts.chain)
		if err != nil {
			return err
		}
		opts.chain = c.Name
	}

	dbOpts := database.DefaultOptions()
	dbOpts.CreateIfNotExists = false
	db, err := database.Open(dataDir(cfg), dbOpts)
	if err != nil {
		return err
	}
	defer db.Close()

	return runHistory(cmd.Context(), db, cfg, opts, cmd.OutOrStdout())
}

// runHistory lists, shows or deletes archived runs.
func runHistory(ctx context.Context, db *database.RunDB, cfg *config.Config, opts historyOptions, out io.Writer) error {
	switch {
	case opts.delete:
		if err := db.DeleteRun(ctx, opts.runID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %d\n", opts.runID)
		return nil
	case opts.runID != 0:
		r, err := db.GetRun(ctx, opts.runID)
		if err != nil {
			return err
		}
		_, err = newReportWriter(cfg, out, 0).Write(r)
		return err
	case opts.requestID != "":
		r, err := db.GetRunByRequestID(ctx, opts.requestID)
		if err != nil {
			return err
		}
		_, err = newReportWriter(cfg, out, 0).Write(r)
		return err
	}

	runs, err := db.ListRuns(ctx, opts.chain, opts.number)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	writeRunList(out, runs)
	return nil
}

// writeRunList prints the run table.
func writeRunList(out io.Writer, runs []database.RunMetadata) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No archived runs found.")
		fmt.Fprintln(out, "\nUse 'trustcrawl crawl --save' to archive a crawl.")
		return
	}

	fmt.Fprintf(out, "Archived runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-6s  %-8s  %6s  %9s  %s\n",
		"ID", "Date", "Chain", "Status", "Scores", "Addresses", "Seeds")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))

	for _, run := range runs {
		status := run.Status
		if run.Error != "" {
			status = database.StatusFailed
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-6s  %-8s  %6d  %9d  %s\n",
			run.ID,
			run.Timestamp.Local().Format(time.DateTime),
			run.Chain,
			status,
			run.Scores,
			run.Addresses,
			seedSummary(run.Seeds),
		)
	}
	fmt.Fprintln(out, "\nUse 'trustcrawl history <id>' to show a run.")
}

// seedSummary shows the first seed and how many more there are.
func seedSummary(seeds []model.Address) string {
	switch len(seeds) {
	case 0:
		return "-"
	case 1:
		return seeds[0].Checksum()
	default:
		return fmt.Sprintf("%s (+%d)", seeds[0].Checksum(), len(seeds)-1)
	}
}
