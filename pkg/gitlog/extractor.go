// Package gitlog extracts commit records from a repository scoped to a
// time window.
package gitlog

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"thornfield.dev/daybook/pkg/activity"
	dberrors "thornfield.dev/daybook/pkg/errors"
	"thornfield.dev/daybook/pkg/git"
)

// Field and record separators for the git log wire format. Git forbids NUL
// in commit objects and neither byte can appear in hashes, author names, or
// ISO dates, so records split unambiguously even for multi-line bodies.
const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// Extractor pulls commit records out of one repository via git log.
type Extractor struct {
	runner     git.CommandRunner
	maxCommits int
}

// NewExtractor returns an Extractor using runner. maxCommits caps the
// result per repository, keeping the newest commits; 0 means unlimited.
func NewExtractor(runner git.CommandRunner, maxCommits int) *Extractor {
	return &Extractor{runner: runner, maxCommits: maxCommits}
}

// Extract returns the repository's commits with timestamps in window,
// sorted ascending by timestamp with ties broken by hash. The window is
// enforced by a strict post-filter on the parsed records; --since/--until
// only narrow what git emits.
//
// An empty or unborn repository yields zero commits, not an error. Any
// other invocation failure, and any unparseable output, is returned as an
// ExtractionError scoped to this repository.
func (e *Extractor) Extract(ctx context.Context, repoRoot string, window activity.Window) ([]activity.CommitRecord, error) {
	args := []string{
		"log", "--all", "--no-merges",
		"--pretty=format:" + recordSep + "%H" + fieldSep + "%an" + fieldSep + "%aI" + fieldSep + "%B" + fieldSep,
		"--numstat",
		"--since=" + window.Start.Format(time.RFC3339),
		"--until=" + window.End.Format(time.RFC3339),
	}

	out, err := e.runner.Output(ctx, repoRoot, args...)
	if err != nil {
		if isEmptyRepo(git.ExitCode(err), err.Error()) {
			return []activity.CommitRecord{}, nil
		}
		return nil, dberrors.NewExtractionErrorWithCause(repoRoot, "log", "invocation failed", err)
	}

	parsed, err := parseLog(string(out))
	if err != nil {
		return nil, dberrors.NewExtractionErrorWithCause(repoRoot, "log", "unparseable output", err)
	}

	commits := make([]activity.CommitRecord, 0, len(parsed))
	for _, c := range parsed {
		if window.Contains(c.Timestamp) {
			commits = append(commits, c)
		}
	}

	sortCommits(commits)
	return capNewest(commits, e.maxCommits), nil
}

// isEmptyRepo recognizes the git log failure produced by a repository with
// no commits yet (fresh init, unborn branch). Git exits 128 for many
// conditions, so the message is checked too; anything else stays an error.
func isEmptyRepo(exitCode int, msg string) bool {
	if exitCode != 128 {
		return false
	}
	return strings.Contains(msg, "does not have any commits") ||
		strings.Contains(msg, "bad default revision")
}

// parseLog turns the raw wire format into commit records, failing closed on
// anything it cannot account for: a malformed record poisons the whole
// parse rather than producing a partial result.
func parseLog(out string) ([]activity.CommitRecord, error) {
	records := strings.Split(out, recordSep)
	commits := make([]activity.CommitRecord, 0, len(records))

	for _, rec := range records {
		if strings.TrimSpace(rec) == "" {
			continue
		}
		commit, err := parseRecord(rec)
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
	}

	return commits, nil
}

// parseRecord parses one commit: hash, author, and date up front, then the
// raw body delimited by the LAST field separator so control characters
// inside the message cannot desynchronize the parse, then the numstat
// block.
func parseRecord(rec string) (activity.CommitRecord, error) {
	var zero activity.CommitRecord

	head := strings.SplitN(rec, fieldSep, 4)
	if len(head) != 4 {
		return zero, dberrors.Newf("commit record has %d fields, want 4", len(head))
	}

	hash := head[0]
	if hash == "" {
		return zero, dberrors.New("commit record with empty hash")
	}

	ts, err := time.Parse(time.RFC3339, head[2])
	if err != nil {
		return zero, dberrors.Wrapf(err, "commit %s has unparseable date %q", hash, head[2])
	}

	cut := strings.LastIndex(head[3], fieldSep)
	if cut < 0 {
		return zero, dberrors.Newf("commit %s record is missing its body terminator", hash)
	}
	body := strings.TrimRight(head[3][:cut], "\n")
	statBlock := head[3][cut+len(fieldSep):]

	stats, err := parseNumstat(hash, statBlock)
	if err != nil {
		return zero, err
	}

	return activity.CommitRecord{
		Hash:      hash,
		Author:    head[1],
		Message:   body,
		Timestamp: ts,
		FileStats: stats,
	}, nil
}

// parseNumstat parses "added\tremoved\tpath" lines. Binary files report
// "-" for both counts and are recorded as present with zero lines, so
// aggregated sums stay well-defined.
func parseNumstat(hash, block string) (map[string]activity.FileStat, error) {
	stats := make(map[string]activity.FileStat)

	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			return nil, dberrors.Newf("commit %s has malformed numstat line %q", hash, line)
		}

		added, err := parseCount(parts[0])
		if err != nil {
			return nil, dberrors.Wrapf(err, "commit %s numstat line %q", hash, line)
		}
		removed, err := parseCount(parts[1])
		if err != nil {
			return nil, dberrors.Wrapf(err, "commit %s numstat line %q", hash, line)
		}

		stats[parts[2]] = activity.FileStat{Added: added, Removed: removed}
	}

	if len(stats) == 0 {
		return nil, nil
	}
	return stats, nil
}

// parseCount parses a numstat count, where "-" marks a binary file.
func parseCount(s string) (int, error) {
	if s == "-" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// sortCommits orders ascending by timestamp, ties broken by hash so the
// order is total and runs are reproducible.
func sortCommits(commits []activity.CommitRecord) {
	sort.Slice(commits, func(i, j int) bool {
		if commits[i].Timestamp.Equal(commits[j].Timestamp) {
			return commits[i].Hash < commits[j].Hash
		}
		return commits[i].Timestamp.Before(commits[j].Timestamp)
	})
}

// capNewest truncates ascending-sorted commits to the max newest entries.
// Zero or negative max means unlimited.
func capNewest(commits []activity.CommitRecord, max int) []activity.CommitRecord {
	if max <= 0 || len(commits) <= max {
		return commits
	}
	return commits[len(commits)-max:]
}
