package discovery

import (
	"time"

	"thornfield.dev/daybook/pkg/activity"
)

// Repo represents a discovered repository root.
type Repo struct {
	Name string `json:"name"` // Basename of the directory
	Path string `json:"path"` // Absolute, canonicalized path
}

// Result represents the outcome of one workspace walk.
type Result struct {
	Repos    []Repo
	Warnings []activity.Diagnostic // Unreadable subtrees skipped mid-walk
	Scanned  int                   // Number of directories visited
	Duration time.Duration         // Time taken to walk
}
