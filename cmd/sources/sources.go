// Package sources implements the source registry commands: listing,
// validating, and generating configured dealership sites.
package sources

import (
	"github.com/spf13/cobra"
)

// Command returns the sources parent command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage configured sources",
		Long:  `List, validate, and generate the dealership sources the crawler explores.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(listCommand())
	cmd.AddCommand(validateCommand())
	cmd.AddCommand(generateCommand())

	return cmd
}
