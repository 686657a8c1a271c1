package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the current daybook version, set via ldflags at build time.
var Version = "dev"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the daybook version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("daybook %s\n", GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
