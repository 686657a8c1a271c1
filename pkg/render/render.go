// Package render formats a WorkspaceActivity into the markdown daily
// summary document.
package render

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"thornfield.dev/daybook/pkg/activity"
	dberrors "thornfield.dev/daybook/pkg/errors"
)

// markdownTemplate is the template for the daily summary document.
const markdownTemplate = `# Daily Summary: {{windowLabel .Window}}

**Generated:** {{.GeneratedAt.Format "2006-01-02 15:04"}}
**Projects scanned:** {{len .Projects}} ({{.ActiveProjects}} active)
**Total commits:** {{.TotalCommits}}

{{range .Projects -}}
{{if or .HasActivity .Diagnostics -}}
## {{.Name}}

{{if .Commits -}}
### Commits

{{range .Commits -}}
- ` + "`{{shortHash .Hash}}`" + ` {{subject .Message}} ({{.Author}}, {{.Timestamp.Format "15:04"}})
{{end -}}
{{with lineStats . }}
{{.}}
{{end}}
{{end -}}
{{if .PullRequests -}}
### Pull Requests

{{range .PullRequests -}}
- [#{{.Number}}]({{.URL}}) {{.Title}} ({{.State}})
{{end}}
{{end -}}
{{if .PlanUpdates -}}
### Plan Updates

{{range .PlanUpdates -}}
- {{planLabel .}} (modified {{.ModifiedAt.Format "15:04"}})
{{end}}
{{end -}}
{{if .LooseFileChanges -}}
### Modified Files (no version control)

{{range .LooseFileChanges -}}
- {{.Path}} ({{.ChangeKind}} {{.ModifiedAt.Format "15:04"}})
{{end}}
{{end -}}
{{if .Diagnostics -}}
### Warnings

{{range .Diagnostics -}}
- {{.Kind}}: {{.Message}}
{{end}}
{{end -}}
{{end -}}
{{end -}}
{{if .Diagnostics}}
---

{{range .Diagnostics -}}
- {{.Kind}}: {{.Message}}
{{end -}}
{{end -}}
`

var tmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"windowLabel": windowLabel,
	"shortHash":   shortHash,
	"subject":     subject,
	"planLabel":   planLabel,
	"lineStats":   lineStats,
}).Parse(markdownTemplate))

// FormatMarkdown renders doc as the markdown daily summary.
func FormatMarkdown(doc *activity.WorkspaceActivity) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		// Fallback to simple format if the template fails
		return formatSimple(doc)
	}
	return buf.String()
}

// formatSimple provides a fallback format when the template fails.
func formatSimple(doc *activity.WorkspaceActivity) string {
	var buf bytes.Buffer
	buf.WriteString("# Daily Summary: " + windowLabel(doc.Window) + "\n\n")
	buf.WriteString("Generated: " + doc.GeneratedAt.Format(time.RFC3339) + "\n\n")

	for i := range doc.Projects {
		p := &doc.Projects[i]
		if !p.HasActivity() && len(p.Diagnostics) == 0 {
			continue
		}
		buf.WriteString("## " + p.Name + "\n\n")
		for _, c := range p.Commits {
			fmt.Fprintf(&buf, "- %s %s (%s)\n", shortHash(c.Hash), subject(c.Message), c.Author)
		}
		for _, pl := range p.PlanUpdates {
			buf.WriteString("- plan: " + planLabel(pl) + "\n")
		}
		for _, f := range p.LooseFileChanges {
			buf.WriteString("- " + string(f.ChangeKind) + ": " + f.Path + "\n")
		}
		for _, d := range p.Diagnostics {
			buf.WriteString("- " + d.Kind + ": " + d.Message + "\n")
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// windowLabel renders a window as its covered date, or date range when the
// window spans more than one calendar day.
func windowLabel(w activity.Window) string {
	from := w.Start.Format("2006-01-02")
	// End is exclusive, so the last covered instant is just before it.
	to := w.End.Add(-time.Nanosecond).Format("2006-01-02")
	if from == to {
		return from
	}
	return from + " to " + to
}

// shortHash abbreviates a commit hash for display.
func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

// subject returns the first line of a commit message.
func subject(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return strings.TrimSpace(message[:i])
	}
	return strings.TrimSpace(message)
}

// planLabel prefers the frontmatter title, falling back to the file path.
func planLabel(p activity.PlanArtifact) string {
	if p.Title != "" {
		return p.Title
	}
	return p.Path
}

// lineStats summarizes a project's line churn, empty when nothing changed.
func lineStats(p activity.ProjectActivity) string {
	added, removed := p.LineStats()
	if added == 0 && removed == 0 {
		return ""
	}
	return fmt.Sprintf("+%d/-%d lines", added, removed)
}

// WriteToFile writes the rendered summary to a new file. It fails if the
// file already exists to prevent accidental overwrites; pass force to
// replace it.
func WriteToFile(path string, doc *activity.WorkspaceActivity, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return dberrors.Newf("file already exists: %s (use --force to overwrite)", path)
		}
	}

	markdown := FormatMarkdown(doc)

	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return dberrors.Wrapf(err, "failed to write summary: %s", path)
	}

	return nil
}

// AppendToFile appends text to an existing document, creating it when
// missing. A separator distinguishes the appended section from existing
// content.
func AppendToFile(path, text string) error {
	_, err := os.Stat(path)
	fileExists := err == nil

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return dberrors.Wrapf(err, "failed to open summary file: %s", path)
	}
	defer f.Close()

	if fileExists {
		if _, err := f.WriteString("\n---\n\n"); err != nil {
			return dberrors.Wrap(err, "failed to write separator")
		}
	}

	if _, err := f.WriteString(text); err != nil {
		return dberrors.Wrap(err, "failed to append to summary file")
	}

	return nil
}
