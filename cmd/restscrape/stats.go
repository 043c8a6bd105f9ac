package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tohoso/restaurant-scraper/internal/model"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show listing database statistics and run history",
		Long: `Stats summarizes the listing database: how many listings are stored
per source and which scrape runs produced them.

Examples:
  # Stored listing counts and the last 5 runs
  restscrape stats

  # Longer run history
  restscrape stats --runs 20`,
		Args: cobra.NoArgs,
		RunE: runStatsCmd,
	}

	cmd.Flags().Int("runs", 5, "Number of recent runs to show (0 shows none)")
	cmd.Flags().String("db-dir", "",
		"Listing database directory (default: XDG data directory)")

	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) error {
	maxRuns, err := cmd.Flags().GetInt("runs")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := openListingDB(dbDir)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	counts, err := db.CountBySource(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Fprintln(out, "保存済み件数")
	fmt.Fprintf(out, "  %s: %d\n", model.SourceTabelog.Label(), counts[model.SourceTabelog])
	fmt.Fprintf(out, "  %s: %d\n", model.SourceHotPepper.Label(), counts[model.SourceHotPepper])
	fmt.Fprintf(out, "  合計: %d\n", total)

	if maxRuns <= 0 {
		return nil
	}

	runs, err := db.ListScrapeRuns(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "\n実行履歴なし")
		return nil
	}
	if len(runs) > maxRuns {
		runs = runs[:maxRuns]
	}

	fmt.Fprintln(out, "\n実行履歴")
	for _, run := range runs {
		areas := strings.Join(run.Areas, ", ")
		if areas == "" {
			areas = "全エリア"
		}
		fmt.Fprintf(out, "  #%d  %s  %d件  %s\n",
			run.ID,
			run.FinishedAt.Format(time.DateTime),
			run.ListingCount,
			areas,
		)
	}
	return nil
}
