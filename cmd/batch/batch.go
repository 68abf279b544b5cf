// Package batch implements the batch command: drive the extraction
// pipeline over an operator-supplied or explore-discovered URL list.
package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/carcrawl/carcrawl/cmd/common"
	"github.com/carcrawl/carcrawl/internal/batch"
	"github.com/carcrawl/carcrawl/internal/bootstrap"
	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/fetcher"
	"github.com/carcrawl/carcrawl/internal/ranker"
)

// Command returns the batch command.
func Command() *cobra.Command {
	var (
		urlsFile string
		explore  bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "batch <source-id>",
		Short: "Process a list of listing URLs",
		Long: `Process listing URLs through the extraction pipeline in batches,
with bounded concurrency and per-item retries. URLs come from --urls
(one per line, # comments allowed), from stdin, or, with --explore,
from the content-intelligence explore stage run against the source's
seed pages and ordered by candidate priority.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			deps, err := common.NewCommandDeps(cfgFile)
			if err != nil {
				return err
			}

			app, err := bootstrap.NewApp(cmd.Context(), deps.Config, deps.Logger)
			if err != nil {
				return err
			}
			defer app.Close()

			source, err := app.Registry.Get(args[0])
			if err != nil {
				return err
			}

			var urls []string
			if explore {
				urls, err = exploreCandidates(cmd, app, source)
			} else {
				urls, err = readURLs(urlsFile)
			}
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				fmt.Println("No URLs to process")
				return nil
			}

			result, err := app.NewBatch().ProcessBatch(cmd.Context(), source, urls)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(os.Stdout, result)
			}
			renderResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&urlsFile, "urls", "", "file with listing URLs, one per line (default stdin)")
	cmd.Flags().BoolVar(&explore, "explore", false,
		"discover URLs from the source's seed pages via the explore stage")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full result as JSON")

	return cmd
}

// exploreCandidates runs the explore stage over each seed page and orders
// the union of tagged candidates by priority tier, discovery order within
// a tier. The configured opportunity threshold filters the tail.
func exploreCandidates(cmd *cobra.Command, app *bootstrap.App, source *domain.Source) ([]string, error) {
	var fetch fetcher.Fetcher = app.Fetchers.Static
	if source.RenderJS && app.Fetchers.Dynamic != nil {
		fetch = app.Fetchers.Dynamic
	}

	threshold := domain.Severity(app.Config.GetIntelligenceConfig().OpportunityThreshold)
	r := ranker.New(app.Logger)

	var collected []string
	for _, seed := range source.SeedURLs {
		page, err := fetch.Fetch(cmd.Context(), seed)
		if err != nil || !page.Success() {
			app.Logger.Warn("Seed fetch failed during explore", "url", seed, "error", err)
			continue
		}

		res, err := app.Pipeline.Explore(cmd.Context(), seed, page.HTML(), source.Exploration.MaxDepth)
		if err != nil {
			app.Logger.Warn("Explore stage failed", "url", seed, "error", err)
			continue
		}
		collected = append(collected, r.OrderCandidates(res.Candidates, threshold)...)
	}

	return dedupe(collected), nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// readURLs loads one URL per line, skipping blanks and # comments.
func readURLs(path string) ([]string, error) {
	var in io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open urls file: %w", err)
		}
		defer f.Close()
		in = f
	}

	var urls []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read urls: %w", err)
	}
	return urls, nil
}

func renderResult(result *batch.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"URL", "Outcome", "Quality", "Attempts", "Detail"})

	for _, item := range result.Items {
		detail := item.Reason
		if item.Error != "" {
			detail = item.Error
		}
		t.AppendRow(table.Row{item.URL, item.Outcome, item.QualityScore, item.Attempts, detail})
	}
	t.Render()

	fmt.Printf("Processed %d: %d saved, %d skipped, %d errors in %dms\n",
		result.TotalProcessed, result.TotalSaved, result.TotalSkipped,
		result.TotalErrors, result.ProcessingTimeMs)
}

func writeJSON(out io.Writer, result *batch.Result) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
