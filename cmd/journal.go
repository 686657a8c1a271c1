package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"thornfield.dev/daybook/pkg/ai"
	"thornfield.dev/daybook/pkg/editor"
	"thornfield.dev/daybook/pkg/journal"
	"thornfield.dev/daybook/pkg/render"
)

var journalFlags = struct {
	windowFlags
	stdout bool
}{}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Write an AI narrative of the day's activity",
	Long: `Journal runs the same aggregation as generate, then asks the configured
AI provider for a prose narrative of the day and appends it to the summary
document. The summary is on disk before the provider is contacted, so a
provider failure never costs the underlying data.

Editor AI-chat sessions, when present, are included as prompt context.

Examples:
  daybook journal
  daybook journal --date 2025-03-10
  daybook journal --stdout`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		doc, loc, err := aggregate(cmd.Context(), cfg, &journalFlags.windowFlags)
		if err != nil {
			return err
		}

		var summaryPath string
		if !journalFlags.stdout {
			if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
				return err
			}
			summaryPath = filepath.Join(cfg.Output.Dir, dateLabel(doc.Window, loc)+".md")
			if _, err := os.Stat(summaryPath); os.IsNotExist(err) {
				if err := render.WriteToFile(summaryPath, doc, false); err != nil {
					return err
				}
			}
		}

		provider, err := ai.NewProvider(&cfg.AI, verbose)
		if err != nil {
			return err
		}

		gen := journal.NewGenerator(provider, verbose)
		if sessions, err := editor.NewReader("").Sessions(doc.Window); err == nil {
			gen.Sessions = sessions
		} else if verbose {
			fmt.Fprintf(os.Stderr, "editor sessions unavailable: %v\n", err)
		}

		narrative, err := gen.Generate(cmd.Context(), doc)
		if err != nil {
			return err
		}

		if journalFlags.stdout {
			fmt.Println(narrative)
			return nil
		}

		if err := render.AppendToFile(summaryPath, journal.Section(narrative)); err != nil {
			return err
		}
		fmt.Printf("Appended journal to %s\n", summaryPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalFlags.register(journalCmd)
	journalCmd.Flags().BoolVar(&journalFlags.stdout, "stdout", false, "print the narrative instead of appending to the summary")
}
