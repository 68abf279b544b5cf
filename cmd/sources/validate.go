package sources

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carcrawl/carcrawl/cmd/common"
	internalsources "github.com/carcrawl/carcrawl/internal/sources"
)

// validateCommand loads the sources file and reports every rejected
// entry. Exits non-zero when any entry was rejected, so it works as a
// pre-deploy check.
func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the sources file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			deps, err := common.NewCommandDeps(cfgFile)
			if err != nil {
				return err
			}

			path := deps.Config.GetSourcesConfig().Path
			registry, err := internalsources.Load(path, deps.Logger)
			if errors.Is(err, internalsources.ErrNoSources) {
				return fmt.Errorf("%s holds no usable sources", path)
			}
			if err != nil {
				return err
			}

			for _, problem := range registry.Problems() {
				fmt.Printf("REJECTED %s: %s\n", problem.ID, problem.Reason)
			}
			fmt.Printf("%s: %d valid source(s), %d rejected\n",
				path, registry.Len(), len(registry.Problems()))
			if len(registry.Problems()) > 0 {
				return fmt.Errorf("%d source entries failed validation", len(registry.Problems()))
			}
			return nil
		},
	}
}
