package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tohoso/restaurant-scraper/internal/config"
)

// NewAreasCmd creates the areas command.
func NewAreasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "areas",
		Short: "List the known Tokyo areas",
		Long: `Areas prints the Tabelog area codes and names accepted by the
--areas flag of the scrape command. Either the code or the name works.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, area := range config.AllAreas() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", area.Code, area.Name)
			}
		},
	}
}
