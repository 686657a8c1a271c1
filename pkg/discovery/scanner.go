// Package discovery locates repository roots beneath a workspace root and
// caches the result between runs. It also provides a timestamp-based
// fallback scan for directories without version control.
package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"thornfield.dev/daybook/pkg/activity"
	dberrors "thornfield.dev/daybook/pkg/errors"
	"thornfield.dev/daybook/pkg/git"
	"thornfield.dev/daybook/pkg/pathmatch"
)

// Scanner walks a workspace root looking for repositories.
type Scanner struct {
	Rules *pathmatch.Rules
}

// NewScanner creates a scanner bounded by rules.
func NewScanner(rules *pathmatch.Rules) *Scanner {
	return &Scanner{Rules: rules}
}

// Discover walks root depth-first and returns every repository root found,
// sorted lexicographically by path so the ordering is stable across runs
// regardless of filesystem iteration order. Excluded directories are
// pruned before descent, symlinks are not followed, and the walk does not
// descend into a discovered repository looking for nested ones.
//
// Unreadable subdirectories are skipped with a warning. A missing or
// unreadable root is the one fatal case.
func (s *Scanner) Discover(root string) (*Result, error) {
	start := time.Now()

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, dberrors.NewDiscoveryErrorWithCause(root, "workspace root is not accessible", err)
	}

	repos := []Repo{}
	var warnings []activity.Diagnostic
	var rootErr error
	scanned := 0
	visited := make(map[string]bool)

	_ = filepath.WalkDir(realRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == realRoot {
				rootErr = err
				return fs.SkipAll
			}
			warnings = append(warnings, activity.Diagnostic{
				Kind:    activity.DiagDiscoveryWarning,
				Path:    path,
				Message: err.Error(),
			})
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		scanned++

		if path != realRoot {
			rel, relErr := filepath.Rel(realRoot, path)
			if relErr != nil {
				return nil
			}
			if s.Rules.Excluded(rel) {
				return filepath.SkipDir
			}
			if !s.Rules.WithinDepth(realRoot, path) {
				return filepath.SkipDir
			}
		}

		// Resolve symlinks so aliases of one repository dedupe.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[realPath] {
			return nil
		}
		visited[realPath] = true

		if git.IsGitRepo(path) {
			repos = append(repos, Repo{
				Name: filepath.Base(realPath),
				Path: realPath,
			})
			// Stop here; nested repositories are the found repo's business.
			return filepath.SkipDir
		}

		return nil
	})

	if rootErr != nil {
		return nil, dberrors.NewDiscoveryErrorWithCause(root, "workspace root is not readable", rootErr)
	}

	sort.Slice(repos, func(i, j int) bool { return repos[i].Path < repos[j].Path })

	return &Result{
		Repos:    repos,
		Warnings: warnings,
		Scanned:  scanned,
		Duration: time.Since(start),
	}, nil
}
