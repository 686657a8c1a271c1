// Package pathmatch evaluates workspace exclusion rules against candidate
// paths. The matcher is a pure decision function so traversal code can
// consult it before descending and tests can pin down exclusion semantics
// without touching a filesystem.
package pathmatch

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Rules holds compiled exclusion rules for a workspace scan.
//
// A path is excluded when any of its segments equals an excluded name, or
// when the slash-normalized path (or its base name) matches any exclusion
// pattern. Malformed glob patterns never match; one bad rule must not abort
// a whole scan.
type Rules struct {
	names    map[string]bool
	patterns []string
	maxDepth int
}

// NewRules builds Rules from literal segment names, glob patterns, and a
// traversal depth bound. A maxDepth of 0 or less means unbounded.
func NewRules(excludeNames, excludePatterns []string, maxDepth int) *Rules {
	names := make(map[string]bool, len(excludeNames))
	for _, n := range excludeNames {
		if n != "" {
			names[n] = true
		}
	}
	patterns := make([]string, 0, len(excludePatterns))
	for _, p := range excludePatterns {
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Rules{
		names:    names,
		patterns: patterns,
		maxDepth: maxDepth,
	}
}

// Excluded reports whether p is rejected by the rules.
func (r *Rules) Excluded(p string) bool {
	if p == "" {
		return false
	}
	slashed := filepath.ToSlash(p)

	for _, seg := range strings.Split(strings.Trim(slashed, "/"), "/") {
		if r.names[seg] {
			return true
		}
	}

	base := path.Base(slashed)
	for _, pattern := range r.patterns {
		if matched, err := path.Match(pattern, slashed); err == nil && matched {
			return true
		}
		if matched, err := path.Match(pattern, base); err == nil && matched {
			return true
		}
	}

	return false
}

// ExcludedSegment reports whether a single path segment (directory or file
// name) is rejected. Traversals use this to prune before descending.
func (r *Rules) ExcludedSegment(name string) bool {
	if r.names[name] {
		return true
	}
	for _, pattern := range r.patterns {
		if matched, err := path.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// MaxDepth returns the configured traversal depth bound (0 = unbounded).
func (r *Rules) MaxDepth() int {
	return r.maxDepth
}

// WithinDepth reports whether p sits at or above the depth bound relative to
// root. The root itself is depth 0, its immediate children depth 1. Paths
// outside root are never within depth.
func (r *Rules) WithinDepth(root, p string) bool {
	if r.maxDepth <= 0 {
		return true
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	if rel == "." {
		return true
	}
	depth := strings.Count(rel, string(os.PathSeparator)) + 1
	return depth <= r.maxDepth
}
