// Package daemon implements the long-running mode: the hourly exploration
// scheduler, the monitoring API, and source file hot reload, shut down
// together on interrupt.
package daemon

import (
	"github.com/spf13/cobra"

	"github.com/carcrawl/carcrawl/cmd/common"
	"github.com/carcrawl/carcrawl/internal/api"
	"github.com/carcrawl/carcrawl/internal/bootstrap"
	"github.com/carcrawl/carcrawl/internal/scheduler"
	"github.com/carcrawl/carcrawl/internal/sources"
)

// Command returns the daemon command.
func Command() *cobra.Command {
	var noServer bool

	cmd := &cobra.Command{
		Use:     "daemon",
		Aliases: []string{"scheduler"},
		Short:   "Run the exploration scheduler",
		Long: `Run the scheduler daemon: every hour, explore the enabled sources
whose bucket and frequency make them due. Serves the monitoring API
unless --no-server is set, and hot-reloads the sources file when
configured to watch it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			d := scheduler.NewDaemon(app.Scheduler, app.Runner, app.Logger)
			if err := d.Start(); err != nil {
				return err
			}

			errChan := make(chan error, 1)

			var server *api.Server
			if !noServer {
				server = api.NewServer(api.Params{
					Addr:      deps.Config.GetServerConfig().Address,
					Logger:    app.Logger,
					Runs:      app.Database.Runs,
					Listings:  app.Database.Listings,
					Sources:   app.Registry,
					Schedule:  app.Scheduler,
					Telemetry: app.Telemetry,
				})
				go func() {
					if srvErr := server.Start(); srvErr != nil {
						errChan <- srvErr
					}
				}()
			}

			var watcher *sources.Watcher
			if deps.Config.GetSourcesConfig().WatchForChanges {
				watcher, err = app.StartSourceWatcher()
				if err != nil {
					app.Logger.Warn("Source watcher not started", "error", err)
				}
			}

			return bootstrap.RunUntilInterrupt(app.Logger, server, d, watcher, errChan)
		},
	}

	cmd.Flags().BoolVar(&noServer, "no-server", false, "disable the monitoring API server")

	return cmd
}
