package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"thornfield.dev/daybook/pkg/render"
)

var generateFlags = struct {
	windowFlags
	stdout bool
	force  bool
}{}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Aggregate workspace activity into a daily summary",
	Long: `Generate collects commits, plan updates, and loose file changes across
every repository under the workspace root and renders them as a markdown
daily summary.

Without window flags the run is incremental: it covers everything since the
last run and advances the stored cursor. Explicit windows (--date, --from/
--to, --full) report without touching the cursor.

Examples:
  daybook generate
  daybook generate --date yesterday
  daybook generate --from 2025-03-10 --to 2025-03-12 --stdout
  daybook generate --full --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		doc, loc, err := aggregate(cmd.Context(), cfg, &generateFlags.windowFlags)
		if err != nil {
			return err
		}

		if generateFlags.stdout {
			fmt.Print(render.FormatMarkdown(doc))
			return nil
		}

		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(cfg.Output.Dir, dateLabel(doc.Window, loc)+".md")
		if err := render.WriteToFile(path, doc, generateFlags.force); err != nil {
			return err
		}

		if term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Printf("Wrote %s (%d projects, %d commits)\n",
				path, len(doc.Projects), doc.TotalCommits())
		} else {
			fmt.Println(path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateFlags.register(generateCmd)
	generateCmd.Flags().BoolVar(&generateFlags.stdout, "stdout", false, "print the summary instead of writing a file")
	generateCmd.Flags().BoolVar(&generateFlags.force, "force", false, "overwrite an existing summary file")
}
