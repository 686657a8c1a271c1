package journal

import (
	"fmt"
	"strings"

	"thornfield.dev/daybook/pkg/activity"
	"thornfield.dev/daybook/pkg/editor"
)

// Prompt size caps. The aggregate can be arbitrarily large; the prompt
// cannot, so each repository contributes at most this much.
const (
	maxCommitsPerProject = 10
	maxPlansPerProject   = 5
	maxCommitBodyChars   = 200
	maxPlanChars         = 2000
)

// SystemPrompt is the system prompt for the journal narrative.
const SystemPrompt = `You are a technical writer producing a developer's daily journal entry from their workspace activity.

Your role is to synthesize the provided commits, plan updates, and file changes into a short narrative that will be useful for:
1. Remembering what was worked on and why
2. Spotting threads of work that span multiple projects
3. Surfacing unfinished work worth returning to

Guidelines:
- Write 2-4 paragraphs of flowing prose, first person, past tense
- Group related work across projects rather than listing project by project
- Mention concrete outcomes (features landed, bugs fixed), not commit counts
- Note plan updates as intentions, distinct from completed work
- Do not invent work that is not evidenced by the activity
- Keep it under 300 words`

// BuildPrompt assembles the user prompt from the aggregate. Commits, plan
// contents, and editor sessions are capped so a busy day cannot blow the
// provider's context window.
func BuildPrompt(doc *activity.WorkspaceActivity, sessions []editor.WorkspaceSession) string {
	var sb strings.Builder

	sb.WriteString("Write a daily journal entry from the following workspace activity:\n\n")
	fmt.Fprintf(&sb, "## Window\n%s to %s\n\n",
		doc.Window.Start.Format("2006-01-02 15:04"),
		doc.Window.End.Format("2006-01-02 15:04"))

	for i := range doc.Projects {
		p := &doc.Projects[i]
		if !p.HasActivity() {
			continue
		}

		fmt.Fprintf(&sb, "## Project: %s\n", p.Name)

		if len(p.Commits) > 0 {
			commits := p.Commits
			if len(commits) > maxCommitsPerProject {
				fmt.Fprintf(&sb, "(showing newest %d of %d commits)\n", maxCommitsPerProject, len(commits))
				commits = commits[len(commits)-maxCommitsPerProject:]
			}
			for _, c := range commits {
				fmt.Fprintf(&sb, "- commit %s: %s\n", shortHash(c.Hash), truncate(c.Message, maxCommitBodyChars))
			}
			added, removed := p.LineStats()
			if added > 0 || removed > 0 {
				fmt.Fprintf(&sb, "(lines +%d/-%d)\n", added, removed)
			}
		}

		if len(p.PullRequests) > 0 {
			for _, pr := range p.PullRequests {
				fmt.Fprintf(&sb, "- pull request #%d (%s): %s\n", pr.Number, pr.State, pr.Title)
			}
		}

		if len(p.PlanUpdates) > 0 {
			plans := p.PlanUpdates
			if len(plans) > maxPlansPerProject {
				plans = plans[len(plans)-maxPlansPerProject:]
			}
			for _, pl := range plans {
				label := pl.Title
				if label == "" {
					label = pl.Path
				}
				fmt.Fprintf(&sb, "- plan updated: %s\n%s\n", label, truncate(pl.RawContent, maxPlanChars))
			}
		}

		if len(p.LooseFileChanges) > 0 {
			fmt.Fprintf(&sb, "- %d files modified outside version control\n", len(p.LooseFileChanges))
		}

		sb.WriteString("\n")
	}

	if len(sessions) > 0 {
		sb.WriteString("## Editor Sessions\n")
		for _, s := range sessions {
			fmt.Fprintf(&sb, "- %s: %d AI chat entries, %d composer entries, last active %s\n",
				s.Folder, s.ChatEntries, s.ComposerEntries, s.LastActivity.Format("15:04"))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Write the journal entry now.")

	return sb.String()
}

// shortHash abbreviates a commit hash.
func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

// truncate shortens a string to maxLen characters, adding ellipsis if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
