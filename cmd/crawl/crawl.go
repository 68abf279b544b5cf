// Package crawl implements the one-shot crawl command: explore a single
// source now, or run everything currently due, without the daemon.
package crawl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/carcrawl/carcrawl/cmd/common"
	"github.com/carcrawl/carcrawl/internal/bootstrap"
	"github.com/carcrawl/carcrawl/internal/scheduler"
)

// Command returns the crawl command.
func Command() *cobra.Command {
	var allDue bool

	cmd := &cobra.Command{
		Use:   "crawl [source-id]",
		Short: "Explore a source's inventory now",
		Long: `Run one exploration for the named source: walk its seed URLs,
extract listings through the content-intelligence pipeline, and persist
everything that clears the quality gate.

With --all-due, run every enabled source that is due in the current
hour bucket instead of a single named one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			deps, err := common.NewCommandDeps(cfgFile)
			if err != nil {
				return err
			}

			if !allDue && len(args) == 0 {
				return fmt.Errorf("a source id is required unless --all-due is set")
			}

			app, err := bootstrap.NewApp(cmd.Context(), deps.Config, deps.Logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if allDue {
				return runAllDue(cmd, app)
			}
			return runOne(cmd, app, args[0])
		},
	}

	cmd.Flags().BoolVar(&allDue, "all-due", false,
		"run every enabled source due in the current hour bucket")

	return cmd
}

func runOne(cmd *cobra.Command, app *bootstrap.App, sourceID string) error {
	source, err := app.Registry.Get(sourceID)
	if err != nil {
		return err
	}

	snap, err := app.Runner.Run(cmd.Context(), source)
	if err != nil {
		return fmt.Errorf("crawl failed for source %s: %w", sourceID, err)
	}

	if markErr := app.Scheduler.MarkExplored(sourceID); markErr != nil {
		app.Logger.Warn("Failed to record exploration", "source_id", sourceID, "error", markErr)
	}

	fmt.Printf("Source %s: %d pages, %d found, %d upserts, %d duplicates, %d errors, %d validation failures\n",
		sourceID, snap.PagesFetched, snap.ItemsFound, snap.Upserts,
		snap.Duplicates, snap.Errors, snap.ValidationFailures)
	return nil
}

func runAllDue(cmd *cobra.Command, app *bootstrap.App) error {
	d := scheduler.NewDaemon(app.Scheduler, app.Runner, app.Logger)
	completed, failed := d.RunBucket(cmd.Context(), time.Now())
	fmt.Printf("Bucket run: %d completed, %d failed\n", completed, failed)
	if failed > 0 {
		return fmt.Errorf("%d source runs failed", failed)
	}
	return nil
}
