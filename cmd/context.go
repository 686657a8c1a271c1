package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"thornfield.dev/daybook/pkg/activity"
	dberrors "thornfield.dev/daybook/pkg/errors"
	"thornfield.dev/daybook/pkg/render"
)

// contextBlob is the machine-readable artifact downstream tools consume.
type contextBlob struct {
	ID                   string          `json:"id"`
	Date                 string          `json:"date"`
	Window               activity.Window `json:"window"`
	SummaryPath          string          `json:"summary_path,omitempty"`
	SummaryPreview       string          `json:"summary_preview"`
	WorkspaceRoot        string          `json:"workspace_root"`
	RepositoriesAnalyzed int             `json:"repositories_analyzed"`
	TotalCommits         int             `json:"total_commits"`
}

const summaryPreviewLimit = 1000

var contextFlags = struct {
	windowFlags
}{}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Write a JSON context blob for downstream tooling",
	Long: `Context aggregates the window like generate does, then writes a compact
JSON artifact describing the run: window bounds, repository and commit
counts, and a preview of the rendered summary. Other tools read it to know
what the workspace was up to without parsing markdown.

The blob lands in <output.dir>/context/<date>.json, written atomically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		doc, loc, err := aggregate(cmd.Context(), cfg, &contextFlags.windowFlags)
		if err != nil {
			return err
		}

		date := dateLabel(doc.Window, loc)
		markdown := render.FormatMarkdown(doc)
		preview := markdown
		if len(preview) > summaryPreviewLimit {
			preview = preview[:summaryPreviewLimit]
		}

		summaryPath := filepath.Join(cfg.Output.Dir, date+".md")
		if _, err := os.Stat(summaryPath); err != nil {
			summaryPath = ""
		}

		blob := contextBlob{
			ID:                   uuid.NewString(),
			Date:                 date,
			Window:               doc.Window,
			SummaryPath:          summaryPath,
			SummaryPreview:       preview,
			WorkspaceRoot:        cfg.Workspace.Root,
			RepositoriesAnalyzed: len(doc.Projects),
			TotalCommits:         doc.TotalCommits(),
		}

		dir := filepath.Join(cfg.Output.Dir, "context")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return dberrors.Wrap(err, "failed to create context directory")
		}
		path := filepath.Join(dir, date+".json")
		if err := writeJSONAtomic(path, blob); err != nil {
			return err
		}

		fmt.Println(path)
		return nil
	},
}

// writeJSONAtomic writes v as indented JSON via a temp file and rename, so
// a reader never observes a partially written blob.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return dberrors.Wrap(err, "failed to encode context blob")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".context-*.json")
	if err != nil {
		return dberrors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return dberrors.Wrap(err, "failed to write context blob")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return dberrors.Wrap(err, "failed to close temp file")
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return dberrors.Wrap(err, "failed to move context blob into place")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextFlags.register(contextCmd)
}
