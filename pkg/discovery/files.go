package discovery

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"thornfield.dev/daybook/pkg/activity"
	"thornfield.dev/daybook/pkg/pathmatch"
)

// DefaultMaxFallbackRecords caps the loose-file records reported for one
// directory, keeping one giant untracked tree from bloating the document.
const DefaultMaxFallbackRecords = 200

// FallbackScanner reports file changes for directories without version
// control, using modification timestamps. Lower fidelity than commit
// extraction: no author, no message, no diff, just paths and times.
type FallbackScanner struct {
	Rules      *pathmatch.Rules
	MaxRecords int
}

// NewFallbackScanner creates a fallback scanner bounded by rules.
// Non-positive maxRecords falls back to the default cap.
func NewFallbackScanner(rules *pathmatch.Rules, maxRecords int) *FallbackScanner {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxFallbackRecords
	}
	return &FallbackScanner{Rules: rules, MaxRecords: maxRecords}
}

// Scan walks root and returns a record for every regular file whose
// modification time falls within window, sorted ascending by modification
// time with ties broken by path, capped at MaxRecords newest. Files whose
// birth time also falls within the window are reported as created where
// the platform exposes one; everything else is modified.
//
// Unreadable entries are skipped with a diagnostic; hitting the cap is
// reported as a truncation diagnostic.
func (f *FallbackScanner) Scan(root string, window activity.Window) ([]activity.FileChangeRecord, []activity.Diagnostic) {
	records := []activity.FileChangeRecord{}
	var diags []activity.Diagnostic

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			diags = append(diags, activity.Diagnostic{
				Kind:    activity.DiagFallbackFailure,
				Path:    path,
				Message: err.Error(),
			})
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			if f.Rules.Excluded(rel) {
				return filepath.SkipDir
			}
			if !f.Rules.WithinDepth(root, path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			diags = append(diags, activity.Diagnostic{
				Kind:    activity.DiagFallbackFailure,
				Path:    path,
				Message: infoErr.Error(),
			})
			return nil
		}
		if !window.Contains(info.ModTime()) {
			return nil
		}

		kind := activity.ChangeModified
		if bt, ok := birthTime(path); ok && window.Contains(bt) {
			kind = activity.ChangeCreated
		}

		records = append(records, activity.FileChangeRecord{
			Path:       path,
			ModifiedAt: info.ModTime(),
			ChangeKind: kind,
		})
		return nil
	})

	sort.Slice(records, func(i, j int) bool {
		if records[i].ModifiedAt.Equal(records[j].ModifiedAt) {
			return records[i].Path < records[j].Path
		}
		return records[i].ModifiedAt.Before(records[j].ModifiedAt)
	})

	if len(records) > f.MaxRecords {
		dropped := len(records) - f.MaxRecords
		records = records[dropped:]
		diags = append(diags, activity.Diagnostic{
			Kind:    activity.DiagFallbackTruncated,
			Path:    root,
			Message: fmt.Sprintf("%d file changes dropped, keeping the %d newest", dropped, f.MaxRecords),
		})
	}

	return records, diags
}
