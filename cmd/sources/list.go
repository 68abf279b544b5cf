package sources

import (
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/carcrawl/carcrawl/cmd/common"
	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/scheduler"
	internalsources "github.com/carcrawl/carcrawl/internal/sources"
)

// listCommand renders the registry as a table, including each source's
// schedule bucket and due state.
func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			deps, err := common.NewCommandDeps(cfgFile)
			if err != nil {
				return err
			}

			registry, err := internalsources.Load(deps.Config.GetSourcesConfig().Path, deps.Logger)
			if err != nil {
				return err
			}

			sched := scheduler.New(registry, deps.Logger)
			sched.AssignBuckets()
			renderSources(registry.Sources(), sched, time.Now())
			return nil
		},
	}
}

func renderSources(srcs []*domain.Source, sched *scheduler.Scheduler, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Frequency", "Bucket", "Seeds", "Enabled", "Last Explored", "Due"})

	for _, src := range srcs {
		t.AppendRow(table.Row{
			src.ID,
			src.Name,
			string(src.Frequency),
			src.ScraperOrder,
			strings.Join(src.SeedURLs, "\n"),
			src.Enabled,
			lastExplored(src),
			sched.IsDue(src, now),
		})
	}
	t.Render()
}

func lastExplored(src *domain.Source) string {
	if src.LastExploredAt == nil {
		return "never"
	}
	return src.LastExploredAt.Format(time.RFC3339)
}
