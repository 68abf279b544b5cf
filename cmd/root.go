// Package cmd implements the carcrawl command-line interface: the
// exploration daemon, one-shot crawls, batch URL processing, source
// registry management, and opportunity reporting.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carcrawl/carcrawl/cmd/batch"
	"github.com/carcrawl/carcrawl/cmd/crawl"
	"github.com/carcrawl/carcrawl/cmd/daemon"
	"github.com/carcrawl/carcrawl/cmd/report"
	cmdsources "github.com/carcrawl/carcrawl/cmd/sources"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "carcrawl",
		Short: "A vehicle listing discovery pipeline",
		Long: `carcrawl discovers vehicle listings across dealership and portal
sites, extracts structured records through a four-stage content
intelligence pipeline, and persists deduplicated results on a
per-source schedule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("carcrawl version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(daemon.Command())
	rootCmd.AddCommand(batch.Command())
	rootCmd.AddCommand(cmdsources.Command())
	rootCmd.AddCommand(report.Command())
}
