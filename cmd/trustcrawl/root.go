package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for trustcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trustcrawl",
		Short: "Transfer-graph trust crawler for blockchain addresses",
		Long: `trustcrawl expands a set of seed addresses into the graph of accounts they
exchanged transfers with, converts that graph into EigenTrust matrices and
ranks the discovered addresses with a remote EigenTrust compute service.

Settings are read from defaults, then the .trustcrawl file, then
TRUSTCRAWL_* environment variables, then command line flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .trustcrawl in current or home directory)")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
