package activity

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	dberrors "thornfield.dev/daybook/pkg/errors"
)

// Default resource bounds for an aggregation run.
const (
	DefaultRepoTimeout = 30 * time.Second
	DefaultLookback    = 24 * time.Hour
)

// ProjectRef identifies one aggregation target: a directory to collect
// activity from and whether it has version-control metadata backing it.
type ProjectRef struct {
	Name              string
	Path              string
	HasVersionControl bool
}

// RepoSource lists aggregation targets beneath a workspace root.
type RepoSource interface {
	Targets(root string, forceRefresh bool) ([]ProjectRef, []Diagnostic, error)
}

// Extractor produces the commits a repository recorded inside a window.
type Extractor interface {
	Extract(ctx context.Context, repoRoot string, window Window) ([]CommitRecord, error)
}

// PlanReader collects plan artifacts modified inside a window.
type PlanReader interface {
	Read(repoRoot string, window Window) ([]PlanArtifact, []Diagnostic)
}

// FallbackScanner reports loose file changes for paths without usable
// version control.
type FallbackScanner interface {
	Scan(root string, window Window) ([]FileChangeRecord, []Diagnostic)
}

// StateTracker persists the incremental cursor between runs.
type StateTracker interface {
	LastRun(workspaceRoot string) *time.Time
	MarkRun(workspaceRoot string, coveredThrough time.Time) error
}

// Aggregator fans per-repository collection out over a worker pool and
// assembles the results into one WorkspaceActivity. Collaborators are
// interfaces so tests substitute fakes; constructors wire the real
// implementations.
type Aggregator struct {
	Source   RepoSource
	Commits  Extractor
	Plans    PlanReader
	Fallback FallbackScanner // nil disables the loose-file scan
	Tracker  StateTracker    // nil disables incremental bookkeeping

	Concurrency int           // parallel repository workers, 0 = GOMAXPROCS
	RepoTimeout time.Duration // per-repository budget, 0 = DefaultRepoTimeout
	Lookback    time.Duration // first-run window size, 0 = DefaultLookback

	// Now returns the current time. Injected so two runs over an unchanged
	// workspace with the same clock produce byte-identical documents.
	Now func() time.Time
}

// NewAggregator returns an Aggregator over the required collaborators.
// Fallback, Tracker, and the resource bounds are set on the returned
// value as needed.
func NewAggregator(source RepoSource, commits Extractor, plans PlanReader) *Aggregator {
	return &Aggregator{
		Source:      source,
		Commits:     commits,
		Plans:       plans,
		RepoTimeout: DefaultRepoTimeout,
		Lookback:    DefaultLookback,
		Now:         time.Now,
	}
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Aggregator) repoTimeout() time.Duration {
	if a.RepoTimeout > 0 {
		return a.RepoTimeout
	}
	return DefaultRepoTimeout
}

func (a *Aggregator) lookback() time.Duration {
	if a.Lookback > 0 {
		return a.Lookback
	}
	return DefaultLookback
}

// ResolveWindow returns the window an unqualified run should cover: from
// the last successful run's cursor up to now, or the configured lookback
// ending now when no prior run is recorded.
func (a *Aggregator) ResolveWindow(workspaceRoot string) Window {
	now := a.now()
	if a.Tracker != nil {
		if last := a.Tracker.LastRun(workspaceRoot); last != nil && last.Before(now) {
			return Window{Start: *last, End: now}
		}
	}
	return LookbackWindow(now, a.lookback())
}

// Aggregate collects activity for the incrementally derived window.
func (a *Aggregator) Aggregate(ctx context.Context, workspaceRoot string, forceRefresh bool) (WorkspaceActivity, error) {
	return a.AggregateWindow(ctx, workspaceRoot, a.ResolveWindow(workspaceRoot), forceRefresh)
}

// AggregateWindow collects activity for an explicit window.
//
// Per-repository failures surface as diagnostics on the affected project;
// only an unreadable workspace root fails the run. A cursor persistence
// failure after assembly is reported as a run-level diagnostic and the
// document is still returned.
func (a *Aggregator) AggregateWindow(ctx context.Context, workspaceRoot string, window Window, forceRefresh bool) (WorkspaceActivity, error) {
	if !window.Valid() {
		return WorkspaceActivity{}, dberrors.Newf("invalid window: end %s is not after start %s",
			window.End.Format(time.RFC3339), window.Start.Format(time.RFC3339))
	}

	refs, warnings, err := a.Source.Targets(workspaceRoot, forceRefresh)
	if err != nil {
		return WorkspaceActivity{}, err
	}

	// A workspace with no repositories can still hold reportable activity
	// when the fallback scan is on: the root itself becomes the one target.
	if len(refs) == 0 && a.Fallback != nil {
		refs = []ProjectRef{{Name: filepath.Base(workspaceRoot), Path: workspaceRoot}}
	}

	projects := a.collect(ctx, refs, window)
	if err := ctx.Err(); err != nil {
		return WorkspaceActivity{}, err
	}

	doc := WorkspaceActivity{
		Window:      window,
		Projects:    projects,
		GeneratedAt: a.now(),
		Diagnostics: warnings,
	}

	if a.Tracker != nil {
		if err := a.Tracker.MarkRun(workspaceRoot, window.End); err != nil {
			doc.Diagnostics = append(doc.Diagnostics, Diagnostic{
				Kind:    DiagStateFailure,
				Message: err.Error(),
			})
		}
	}

	return doc, nil
}

// collect runs per-repository collection over a bounded worker pool. Each
// worker writes only the result slots it drew from the work channel, so
// the output preserves discovery order with no locking.
func (a *Aggregator) collect(ctx context.Context, refs []ProjectRef, window Window) []ProjectActivity {
	projects := make([]ProjectActivity, len(refs))
	if len(refs) == 0 {
		return projects
	}

	numWorkers := a.Concurrency
	if numWorkers <= 0 || numWorkers > runtime.GOMAXPROCS(0) {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(refs) {
		numWorkers = len(refs)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	work := make(chan int, len(refs))
	for i := range refs {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				projects[idx] = a.collectOne(ctx, refs[idx], window)
			}
		}()
	}
	wg.Wait()

	return projects
}

// collectOne gathers one repository's activity. It never returns an error:
// every failure mode becomes a diagnostic on the returned project, so a
// broken repository cannot take down the run.
func (a *Aggregator) collectOne(ctx context.Context, ref ProjectRef, window Window) ProjectActivity {
	project := NewProjectActivity(ref.Path, ref.HasVersionControl)
	if ref.Name != "" {
		project.Name = ref.Name
	}

	repoCtx, cancel := context.WithTimeout(ctx, a.repoTimeout())
	defer cancel()

	extracted := false
	if ref.HasVersionControl && a.Commits != nil {
		commits, err := a.Commits.Extract(repoCtx, ref.Path, window)
		switch {
		case err == nil:
			if commits != nil {
				project.Commits = commits
			}
			extracted = true
		case dberrors.Is(repoCtx.Err(), context.DeadlineExceeded):
			project.Diagnostics = append(project.Diagnostics, Diagnostic{
				Kind:    DiagTimeout,
				Path:    ref.Path,
				Message: fmt.Sprintf("processing exceeded the %s budget", a.repoTimeout()),
			})
			return project
		case repoCtx.Err() != nil:
			// Run canceled; the caller discards partial results.
			return project
		default:
			project.Diagnostics = append(project.Diagnostics, Diagnostic{
				Kind:    DiagExtractionFailure,
				Path:    ref.Path,
				Message: err.Error(),
			})
		}
	}

	if a.Plans != nil {
		artifacts, diags := a.Plans.Read(ref.Path, window)
		if artifacts != nil {
			project.PlanUpdates = artifacts
		}
		project.Diagnostics = append(project.Diagnostics, diags...)
	}

	// The loose-file scan covers directories without version control and
	// repositories whose history was silent for the window. An extraction
	// failure does not trigger it.
	if a.Fallback != nil && (!ref.HasVersionControl || (extracted && len(project.Commits) == 0)) {
		changes, diags := a.Fallback.Scan(ref.Path, window)
		project.LooseFileChanges = changes
		project.Diagnostics = append(project.Diagnostics, diags...)
	}

	return project
}
