// Package activity defines the normalized workspace activity model and the
// aggregator that produces it.
package activity

import (
	"path/filepath"
	"time"
)

// Window is the half-open time interval [Start, End) an aggregation covers.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Valid reports whether the window is non-empty.
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

// FileStat holds per-file line counts for one commit. Binary files carry
// zero/zero rather than being omitted, so sums over FileStats are
// well-defined.
type FileStat struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// CommitRecord is one commit as extracted from a repository.
type CommitRecord struct {
	Hash      string              `json:"hash"`
	Author    string              `json:"author"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
	FileStats map[string]FileStat `json:"file_stats,omitempty"`
}

// PlanArtifact is one planning document modified within the window.
type PlanArtifact struct {
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
	RawContent string    `json:"raw_content"`
	Truncated  bool      `json:"truncated,omitempty"`
	Title      string    `json:"title,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
}

// ChangeKind distinguishes how a loose file change was detected.
type ChangeKind string

// Change kinds. Created is only reported where the filesystem exposes a
// birth time distinct from the modification time; deletions are not
// observable from timestamps and are never reported.
const (
	ChangeCreated  ChangeKind = "created"
	ChangeModified ChangeKind = "modified"
)

// FileChangeRecord is one file modification detected by timestamp rather
// than version-control history. Lower fidelity than a commit: no author,
// message, or diff.
type FileChangeRecord struct {
	Path       string     `json:"path"`
	ModifiedAt time.Time  `json:"modified_at"`
	ChangeKind ChangeKind `json:"change_kind"`
}

// PullRequestRecord is one pull request updated within the window,
// attached when GitHub enrichment is enabled.
type PullRequestRecord struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Diagnostic records a recoverable failure scoped to a repository or to the
// run. Diagnostics carry no timestamps so identical reruns produce
// identical documents.
type Diagnostic struct {
	Kind    string `json:"kind"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Diagnostic kinds.
const (
	DiagExtractionFailure = "extraction_failure"
	DiagPlanReadFailure   = "plan_read_failure"
	DiagPlanFrontmatter   = "plan_frontmatter"
	DiagTimeout           = "timeout"
	DiagFallbackFailure   = "fallback_failure"
	DiagFallbackTruncated = "fallback_truncated"
	DiagGitHubFailure     = "github_failure"
	DiagDiscoveryWarning  = "discovery_warning"
	DiagStateFailure      = "state_persistence_failure"
)

// ProjectActivity is one repository's contribution to the aggregate.
//
// Commits are sorted ascending by timestamp (ties broken by hash), plan
// updates and loose changes ascending by modification time. A project with
// empty sequences and no diagnostics was scanned and found quiet, which is
// itself a reportable fact.
type ProjectActivity struct {
	Path              string              `json:"path"`
	Name              string              `json:"name"`
	HasVersionControl bool                `json:"has_version_control"`
	Commits           []CommitRecord      `json:"commits"`
	PlanUpdates       []PlanArtifact      `json:"plan_updates"`
	LooseFileChanges  []FileChangeRecord  `json:"loose_file_changes,omitempty"`
	PullRequests      []PullRequestRecord `json:"pull_requests,omitempty"`
	Diagnostics       []Diagnostic        `json:"diagnostics,omitempty"`
}

// HasActivity reports whether the project recorded anything in the window.
func (p *ProjectActivity) HasActivity() bool {
	return len(p.Commits) > 0 || len(p.PlanUpdates) > 0 ||
		len(p.LooseFileChanges) > 0 || len(p.PullRequests) > 0
}

// LineStats sums line additions and removals across all commits.
func (p *ProjectActivity) LineStats() (added, removed int) {
	for _, c := range p.Commits {
		for _, s := range c.FileStats {
			added += s.Added
			removed += s.Removed
		}
	}
	return added, removed
}

// WorkspaceActivity is the root aggregate for one invocation.
type WorkspaceActivity struct {
	Window      Window            `json:"window"`
	Projects    []ProjectActivity `json:"projects"`
	GeneratedAt time.Time         `json:"generated_at"`
	Diagnostics []Diagnostic      `json:"diagnostics,omitempty"`
}

// TotalCommits counts commits across all projects.
func (a *WorkspaceActivity) TotalCommits() int {
	n := 0
	for i := range a.Projects {
		n += len(a.Projects[i].Commits)
	}
	return n
}

// ActiveProjects counts projects with any recorded activity.
func (a *WorkspaceActivity) ActiveProjects() int {
	n := 0
	for i := range a.Projects {
		if a.Projects[i].HasActivity() {
			n++
		}
	}
	return n
}

// NewProjectActivity returns a ProjectActivity for path with empty (not
// nil) commit and plan sequences, so quiet projects serialize as [] rather
// than null.
func NewProjectActivity(path string, hasVersionControl bool) ProjectActivity {
	return ProjectActivity{
		Path:              path,
		Name:              filepath.Base(path),
		HasVersionControl: hasVersionControl,
		Commits:           []CommitRecord{},
		PlanUpdates:       []PlanArtifact{},
	}
}
