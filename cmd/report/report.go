// Package report implements the report command: rank stored listings
// into buying opportunities and export them as a spreadsheet.
package report

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carcrawl/carcrawl/cmd/common"
	"github.com/carcrawl/carcrawl/internal/bootstrap"
	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/ranker"
	"github.com/carcrawl/carcrawl/internal/report"
)

const defaultListingLimit = 1000

// Command returns the report command. It ranks one source's stored
// listings against cohort market baselines and writes the surviving
// opportunities to an xlsx workbook.
func Command() *cobra.Command {
	var (
		outPath   string
		threshold string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "report <source-id>",
		Short: "Export ranked opportunities for a source",
		Long: `Rank a source's stored listings into buying opportunities and export
them as a spreadsheet. Market value per listing comes from the median
asking price of comparable stored listings (same make and model, same
year when enough comparables exist).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			deps, err := common.NewCommandDeps(cfgFile)
			if err != nil {
				return err
			}

			if threshold == "" {
				threshold = deps.Config.GetIntelligenceConfig().OpportunityThreshold
			}
			tier := domain.Severity(threshold)
			if tier.Rank() == 0 {
				return fmt.Errorf("unknown threshold %q, want high, medium, or low", threshold)
			}

			ctx := cmd.Context()
			db, err := bootstrap.SetupDatabase(ctx, deps.Config.GetDatabaseConfig())
			if err != nil {
				return err
			}
			defer db.Close()

			sourceID := args[0]
			listings, err := db.Listings.ListBySource(ctx, sourceID, limit)
			if err != nil {
				return fmt.Errorf("failed to load listings for %s: %w", sourceID, err)
			}
			if len(listings) == 0 {
				return fmt.Errorf("no stored listings for source %s", sourceID)
			}

			r := ranker.New(deps.Logger)
			values := ranker.BaselineMarketValues(listings)
			opportunities := r.Rank(listings, values, tier)

			if err := report.NewWriter(deps.Logger).Save(opportunities, outPath); err != nil {
				return err
			}
			fmt.Printf("Wrote %d opportunit%s from %d listing(s) to %s\n",
				len(opportunities), plural(len(opportunities)), len(listings), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "opportunities.xlsx", "path of the workbook to write")
	cmd.Flags().StringVar(&threshold, "threshold", "", "minimum severity to include (high, medium, low)")
	cmd.Flags().IntVar(&limit, "limit", defaultListingLimit, "maximum listings to load")
	return cmd
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
