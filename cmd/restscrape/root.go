// Package main provides the entry point for the restscrape CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for restscrape.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restscrape",
		Short: "Restaurant listing collector for Tabelog and Hot Pepper",
		Long: `restscrape collects restaurant listings from Tabelog pages and the
Hot Pepper gourmet API. Results are checkpointed to disk so interrupted
runs resume where they left off, deduplicated across sources, and
exported as an Excel workbook.

Requests to Tabelog are rate limited with an adaptive delay that backs
off on HTTP 429 responses and relaxes after sustained success.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewAreasCmd())
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
