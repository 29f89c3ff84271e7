package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/trustcrawl/internal/config"
)

//go:embed templates/trustcrawl.yaml
var configTemplate []byte

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new trustcrawl configuration file",
		Long: `Initialize creates a new .trustcrawl configuration file in the current directory.

The generated file includes:
- Neighbor API and scoring engine endpoints
- Crawl bounds and EigenTrust parameters
- The chain table with aliases and time windows
- Documentation for every option

Examples:
  # Create .trustcrawl in current directory
  trustcrawl init

  # Create config file at a specific path
  trustcrawl init -o myconfig.yaml

  # Force overwrite existing file
  trustcrawl init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if err := writeConfigTemplate(path, force); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), `Created configuration file: %s

Edit this file to set:
  - The neighbor API key (or export TRUSTCRAWL_NEIGHBOR_API_KEY)
  - The EigenTrust compute service URL
  - Crawl depth and result limits
`, path)
	return nil
}

// writeConfigTemplate writes the template to path, creating its directory.
// The file may hold the neighbor API key, so it is private to the user.
func writeConfigTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", path, err)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, configTemplate, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
