// Package plans reads auxiliary planning documents associated with a
// repository. Plan artifacts are markdown files named *.plan.md inside a
// conventional directory at the repository root, optionally carrying YAML
// frontmatter with a title and tags.
package plans

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"thornfield.dev/daybook/pkg/activity"
	dberrors "thornfield.dev/daybook/pkg/errors"
)

const (
	// DefaultDirName is the plan directory looked up under each repository
	// root when the config does not override it.
	DefaultDirName = "plans"

	// DefaultMaxBytes caps how much of one artifact is carried into the
	// activity model. Content past the cap is cut, never silently dropped.
	DefaultMaxBytes = 64 * 1024

	planSuffix       = ".plan.md"
	truncationMarker = "\n\n[truncated]"
)

// Reader finds and parses plan artifacts for one repository.
type Reader struct {
	dirName  string
	maxBytes int64
}

// NewReader returns a Reader. Empty dirName and non-positive maxBytes fall
// back to the defaults.
func NewReader(dirName string, maxBytes int64) *Reader {
	if dirName == "" {
		dirName = DefaultDirName
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Reader{dirName: dirName, maxBytes: maxBytes}
}

// Read returns the plan artifacts under repoRoot whose modification time
// falls within window, sorted ascending by modification time with ties
// broken by path. A missing plan directory is not an error. A file that
// cannot be read is skipped with a diagnostic; its siblings are still
// processed. A malformed frontmatter block is a diagnostic too, but the
// artifact itself is kept.
func (r *Reader) Read(repoRoot string, window activity.Window) ([]activity.PlanArtifact, []activity.Diagnostic) {
	dir := filepath.Join(repoRoot, r.dirName)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []activity.PlanArtifact{}, nil
		}
		return []activity.PlanArtifact{}, []activity.Diagnostic{{
			Kind:    activity.DiagPlanReadFailure,
			Path:    dir,
			Message: "cannot list plan directory: " + err.Error(),
		}}
	}

	artifacts := make([]activity.PlanArtifact, 0)
	var diags []activity.Diagnostic

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), planSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			diags = append(diags, activity.Diagnostic{
				Kind:    activity.DiagPlanReadFailure,
				Path:    path,
				Message: "cannot stat plan artifact: " + err.Error(),
			})
			continue
		}
		if !window.Contains(info.ModTime()) {
			continue
		}

		artifact, err := r.readArtifact(path, info.ModTime())
		if err != nil {
			diags = append(diags, activity.Diagnostic{
				Kind:    activity.DiagPlanReadFailure,
				Path:    path,
				Message: err.Error(),
			})
			continue
		}

		if d := applyFrontmatter(&artifact); d != nil {
			diags = append(diags, *d)
		}

		artifacts = append(artifacts, artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].ModifiedAt.Equal(artifacts[j].ModifiedAt) {
			return artifacts[i].Path < artifacts[j].Path
		}
		return artifacts[i].ModifiedAt.Before(artifacts[j].ModifiedAt)
	})

	return artifacts, diags
}

// readArtifact reads one file, cutting content at the size ceiling and
// marking the cut explicitly.
func (r *Reader) readArtifact(path string, modifiedAt time.Time) (activity.PlanArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return activity.PlanArtifact{}, dberrors.Wrap(err, "cannot open plan artifact")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, r.maxBytes+1))
	if err != nil {
		return activity.PlanArtifact{}, dberrors.Wrap(err, "cannot read plan artifact")
	}

	artifact := activity.PlanArtifact{
		Path:       path,
		ModifiedAt: modifiedAt,
	}
	if int64(len(data)) > r.maxBytes {
		artifact.RawContent = string(data[:r.maxBytes]) + truncationMarker
		artifact.Truncated = true
	} else {
		artifact.RawContent = string(data)
	}

	return artifact, nil
}

// applyFrontmatter extracts title and tags from the artifact's leading YAML
// block, when one exists. Malformed frontmatter is reported as a diagnostic
// and leaves the artifact's content untouched.
func applyFrontmatter(artifact *activity.PlanArtifact) *activity.Diagnostic {
	block, found, err := splitFrontmatter(artifact.RawContent)
	if err != nil {
		return &activity.Diagnostic{
			Kind:    activity.DiagPlanFrontmatter,
			Path:    artifact.Path,
			Message: err.Error(),
		}
	}
	if !found {
		return nil
	}

	var meta struct {
		Title string   `yaml:"title"`
		Tags  []string `yaml:"tags"`
	}
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return &activity.Diagnostic{
			Kind:    activity.DiagPlanFrontmatter,
			Path:    artifact.Path,
			Message: "invalid frontmatter: " + err.Error(),
		}
	}

	artifact.Title = strings.TrimSpace(meta.Title)
	artifact.Tags = meta.Tags
	return nil
}

// splitFrontmatter returns the YAML block between leading --- delimiter
// lines. found reports whether the content opens with a delimiter at all;
// an opening delimiter without a closing one is an error, not plain
// content, so typos surface instead of vanishing.
func splitFrontmatter(raw string) (block string, found bool, err error) {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return "", false, nil
	}

	lines := strings.Split(normalized, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), true, nil
		}
	}
	return "", true, dberrors.New("unterminated frontmatter")
}
