package sources

import (
	"bytes"
	"fmt"
	"os"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/carcrawl/carcrawl/cmd/common"
	"github.com/carcrawl/carcrawl/internal/bootstrap"
	"github.com/carcrawl/carcrawl/internal/generator"
)

// generateCommand fetches an index page and proposes a source entry for
// it. The proposal prints as a ready-to-paste sources entry; with
// --output it is written to a file instead.
func generateCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "generate <url>",
		Short: "Propose a source entry from a live index page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			deps, err := common.NewCommandDeps(cfgFile)
			if err != nil {
				return err
			}

			seedURL := args[0]
			fetchers := bootstrap.SetupFetchers(deps.Config.GetCrawlerConfig(), deps.Logger)

			page, err := fetchers.Static.Fetch(cmd.Context(), seedURL)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", seedURL, err)
			}
			if !page.Success() {
				return fmt.Errorf("fetch %s returned status %d", seedURL, page.StatusCode)
			}

			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", seedURL, err)
			}

			proposal, err := generator.Propose(doc, page.FinalURL)
			if err != nil {
				return err
			}

			entry, err := proposal.YAML()
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, entry, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outPath, err)
				}
				fmt.Printf("Wrote proposed source %q to %s (confidence %.2f)\n",
					proposal.ID, outPath, proposal.Confidence)
			} else {
				fmt.Printf("# Proposed source for %s (confidence %.2f)\n", proposal.SeedURL, proposal.Confidence)
				os.Stdout.Write(entry)
			}

			if len(proposal.SampleURLs) > 0 {
				fmt.Println("# Sample matched URLs:")
				for _, u := range proposal.SampleURLs {
					fmt.Printf("#   %s\n", u)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the proposed entry to this file instead of stdout")
	return cmd
}
