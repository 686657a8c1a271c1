package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanRefresh bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List discovered repositories",
	Long: `Scan walks the workspace root and prints every repository it finds.
Results come from the discovery cache when it is fresh; --refresh forces a
new walk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		agg, err := buildAggregator(cfg)
		if err != nil {
			return err
		}

		refs, warnings, err := agg.Source.Targets(cfg.Workspace.Root, scanRefresh)
		if err != nil {
			return err
		}

		for _, ref := range refs {
			fmt.Printf("%-30s %s\n", ref.Name, ref.Path)
		}
		fmt.Printf("\n%d repositories under %s\n", len(refs), cfg.Workspace.Root)

		for _, w := range warnings {
			fmt.Printf("warning: %s: %s\n", w.Path, w.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanRefresh, "refresh", false, "bypass the discovery cache")
}
