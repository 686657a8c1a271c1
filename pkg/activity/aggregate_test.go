package activity

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dberrors "thornfield.dev/daybook/pkg/errors"
)

func aggWindow() Window {
	return Window{
		Start: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
	}
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 1, 16, 8, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

type fakeSource struct {
	refs     []ProjectRef
	warnings []Diagnostic
	err      error
}

func (s *fakeSource) Targets(root string, forceRefresh bool) ([]ProjectRef, []Diagnostic, error) {
	return s.refs, s.warnings, s.err
}

// fakeExtractor serves canned commits per repository path. Paths listed in
// errs fail, paths listed in hangs block until the context expires.
type fakeExtractor struct {
	commits map[string][]CommitRecord
	errs    map[string]error
	hangs   map[string]bool

	mu    sync.Mutex
	calls []string
}

func (e *fakeExtractor) Extract(ctx context.Context, repoRoot string, window Window) ([]CommitRecord, error) {
	e.mu.Lock()
	e.calls = append(e.calls, repoRoot)
	e.mu.Unlock()

	if e.hangs[repoRoot] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := e.errs[repoRoot]; err != nil {
		return nil, err
	}
	return e.commits[repoRoot], nil
}

func (e *fakeExtractor) called(repoRoot string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.calls {
		if c == repoRoot {
			return true
		}
	}
	return false
}

type fakePlans struct {
	artifacts map[string][]PlanArtifact
	diags     map[string][]Diagnostic
}

func (p *fakePlans) Read(repoRoot string, window Window) ([]PlanArtifact, []Diagnostic) {
	return p.artifacts[repoRoot], p.diags[repoRoot]
}

type fakeFallback struct {
	changes map[string][]FileChangeRecord

	mu    sync.Mutex
	calls []string
}

func (f *fakeFallback) Scan(root string, window Window) ([]FileChangeRecord, []Diagnostic) {
	f.mu.Lock()
	f.calls = append(f.calls, root)
	f.mu.Unlock()
	return f.changes[root], nil
}

func (f *fakeFallback) called(root string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == root {
			return true
		}
	}
	return false
}

type fakeTracker struct {
	last    *time.Time
	saveErr error

	markedRoot string
	markedAt   time.Time
	marks      int
}

func (t *fakeTracker) LastRun(workspaceRoot string) *time.Time { return t.last }

func (t *fakeTracker) MarkRun(workspaceRoot string, coveredThrough time.Time) error {
	t.markedRoot = workspaceRoot
	t.markedAt = coveredThrough
	t.marks++
	return t.saveErr
}

func commitAt(hash string, at time.Time) CommitRecord {
	return CommitRecord{
		Hash:      hash,
		Author:    "Dev",
		Timestamp: at,
		Message:   "change " + hash,
	}
}

func TestAggregator_AggregateWindow(t *testing.T) {
	window := aggWindow()
	busy := ProjectRef{Name: "busy", Path: "/ws/busy", HasVersionControl: true}
	quiet := ProjectRef{Name: "quiet", Path: "/ws/quiet", HasVersionControl: true}

	extractor := &fakeExtractor{
		commits: map[string][]CommitRecord{
			"/ws/busy": {
				commitAt("aaa111", window.Start.Add(2*time.Hour)),
				commitAt("bbb222", window.Start.Add(5*time.Hour)),
			},
		},
	}
	plans := &fakePlans{
		artifacts: map[string][]PlanArtifact{
			"/ws/busy": {{Path: "/ws/busy/plans/x.plan.md", Title: "X", ModifiedAt: window.Start.Add(time.Hour)}},
		},
	}
	tracker := &fakeTracker{}

	agg := NewAggregator(&fakeSource{refs: []ProjectRef{busy, quiet}}, extractor, plans)
	agg.Tracker = tracker
	agg.Now = fixedClock()

	doc, err := agg.AggregateWindow(context.Background(), "/ws", window, false)
	if err != nil {
		t.Fatalf("AggregateWindow() error = %v", err)
	}

	if len(doc.Projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(doc.Projects))
	}
	if doc.Projects[0].Name != "busy" || doc.Projects[1].Name != "quiet" {
		t.Errorf("project order = %s, %s; want busy, quiet", doc.Projects[0].Name, doc.Projects[1].Name)
	}
	if len(doc.Projects[0].Commits) != 2 || len(doc.Projects[0].PlanUpdates) != 1 {
		t.Errorf("busy project has %d commits and %d plans, want 2 and 1",
			len(doc.Projects[0].Commits), len(doc.Projects[0].PlanUpdates))
	}

	// A scanned repository with nothing in the window is still reported,
	// with empty (not nil) sequences.
	silent := doc.Projects[1]
	if silent.Commits == nil || len(silent.Commits) != 0 {
		t.Errorf("quiet project commits = %v, want empty non-nil", silent.Commits)
	}
	if silent.PlanUpdates == nil || len(silent.PlanUpdates) != 0 {
		t.Errorf("quiet project plans = %v, want empty non-nil", silent.PlanUpdates)
	}
	if len(silent.Diagnostics) != 0 {
		t.Errorf("quiet project diagnostics = %v, want none", silent.Diagnostics)
	}

	if !doc.GeneratedAt.Equal(fixedClock()()) {
		t.Errorf("GeneratedAt = %v, want the injected clock's time", doc.GeneratedAt)
	}
	if tracker.markedRoot != "/ws" || !tracker.markedAt.Equal(window.End) {
		t.Errorf("cursor advanced to (%s, %v), want (/ws, %v)", tracker.markedRoot, tracker.markedAt, window.End)
	}
}

func TestAggregator_RepeatedRunsAreByteIdentical(t *testing.T) {
	window := aggWindow()
	refs := []ProjectRef{
		{Name: "a", Path: "/ws/a", HasVersionControl: true},
		{Name: "b", Path: "/ws/b", HasVersionControl: true},
		{Name: "c", Path: "/ws/c", HasVersionControl: true},
	}
	extractor := &fakeExtractor{
		commits: map[string][]CommitRecord{
			"/ws/a": {commitAt("a1", window.Start.Add(time.Hour))},
			"/ws/c": {commitAt("c1", window.Start.Add(2 * time.Hour)), commitAt("c2", window.Start.Add(3 * time.Hour))},
		},
	}

	run := func() []byte {
		agg := NewAggregator(&fakeSource{refs: refs}, extractor, &fakePlans{})
		agg.Now = fixedClock()
		agg.Concurrency = 2
		doc, err := agg.AggregateWindow(context.Background(), "/ws", window, false)
		if err != nil {
			t.Fatalf("AggregateWindow() error = %v", err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		return data
	}

	first := run()
	for i := 0; i < 5; i++ {
		if next := run(); string(next) != string(first) {
			t.Fatalf("run %d produced different bytes:\n%s\nvs\n%s", i+2, next, first)
		}
	}
}

func TestAggregator_FailureIsolation(t *testing.T) {
	window := aggWindow()
	refs := []ProjectRef{
		{Name: "broken", Path: "/ws/broken", HasVersionControl: true},
		{Name: "fine", Path: "/ws/fine", HasVersionControl: true},
	}
	extractor := &fakeExtractor{
		commits: map[string][]CommitRecord{
			"/ws/fine": {commitAt("f1", window.Start.Add(time.Hour))},
		},
		errs: map[string]error{
			"/ws/broken": dberrors.NewExtractionError("/ws/broken", "log", "object database corrupt"),
		},
	}

	agg := NewAggregator(&fakeSource{refs: refs}, extractor, &fakePlans{})
	agg.Now = fixedClock()

	doc, err := agg.AggregateWindow(context.Background(), "/ws", window, false)
	if err != nil {
		t.Fatalf("AggregateWindow() error = %v, want per-repo failure contained", err)
	}

	broken := doc.Projects[0]
	if len(broken.Commits) != 0 {
		t.Errorf("broken project commits = %v, want empty", broken.Commits)
	}
	if len(broken.Diagnostics) != 1 || broken.Diagnostics[0].Kind != DiagExtractionFailure {
		t.Fatalf("broken project diagnostics = %v, want one %s", broken.Diagnostics, DiagExtractionFailure)
	}
	if !strings.Contains(broken.Diagnostics[0].Message, "corrupt") {
		t.Errorf("diagnostic message = %q, want the underlying cause", broken.Diagnostics[0].Message)
	}

	if len(doc.Projects[1].Commits) != 1 {
		t.Errorf("fine project commits = %d, want 1", len(doc.Projects[1].Commits))
	}
}

func TestAggregator_RepoTimeout(t *testing.T) {
	window := aggWindow()
	refs := []ProjectRef{
		{Name: "hung", Path: "/ws/hung", HasVersionControl: true},
		{Name: "fine", Path: "/ws/fine", HasVersionControl: true},
	}
	extractor := &fakeExtractor{
		commits: map[string][]CommitRecord{
			"/ws/fine": {commitAt("f1", window.Start.Add(time.Hour))},
		},
		hangs: map[string]bool{"/ws/hung": true},
	}

	agg := NewAggregator(&fakeSource{refs: refs}, extractor, &fakePlans{})
	agg.Now = fixedClock()
	agg.RepoTimeout = 20 * time.Millisecond

	doc, err := agg.AggregateWindow(context.Background(), "/ws", window, false)
	if err != nil {
		t.Fatalf("AggregateWindow() error = %v", err)
	}

	hung := doc.Projects[0]
	if len(hung.Diagnostics) != 1 || hung.Diagnostics[0].Kind != DiagTimeout {
		t.Fatalf("hung project diagnostics = %v, want one %s", hung.Diagnostics, DiagTimeout)
	}
	if len(hung.Commits) != 0 || len(hung.PlanUpdates) != 0 {
		t.Errorf("hung project should carry empty results, got %d commits, %d plans",
			len(hung.Commits), len(hung.PlanUpdates))
	}
	if len(doc.Projects[1].Commits) != 1 {
		t.Errorf("fine project commits = %d, want 1; a hung sibling must not block it", len(doc.Projects[1].Commits))
	}
}

func TestAggregator_FallbackTrigger(t *testing.T) {
	window := aggWindow()
	change := FileChangeRecord{Path: "notes.md", ChangeKind: ChangeModified, ModifiedAt: window.Start.Add(time.Hour)}

	tests := []struct {
		name        string
		ref         ProjectRef
		commits     []CommitRecord
		extractErr  error
		wantScan    bool
		wantExtract bool
	}{
		{
			name:        "repo with commits is not rescanned",
			ref:         ProjectRef{Name: "busy", Path: "/ws/busy", HasVersionControl: true},
			commits:     []CommitRecord{commitAt("a1", window.Start.Add(time.Hour))},
			wantScan:    false,
			wantExtract: true,
		},
		{
			name:        "repo with zero commits gets supplemented",
			ref:         ProjectRef{Name: "quiet", Path: "/ws/quiet", HasVersionControl: true},
			wantScan:    true,
			wantExtract: true,
		},
		{
			name:        "extraction failure does not trigger the scan",
			ref:         ProjectRef{Name: "broken", Path: "/ws/broken", HasVersionControl: true},
			extractErr:  dberrors.NewExtractionError("/ws/broken", "log", "boom"),
			wantScan:    false,
			wantExtract: true,
		},
		{
			name:        "directory without version control skips extraction",
			ref:         ProjectRef{Name: "loose", Path: "/ws/loose", HasVersionControl: false},
			wantScan:    true,
			wantExtract: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := &fakeExtractor{
				commits: map[string][]CommitRecord{tt.ref.Path: tt.commits},
			}
			if tt.extractErr != nil {
				extractor.errs = map[string]error{tt.ref.Path: tt.extractErr}
			}
			fallback := &fakeFallback{
				changes: map[string][]FileChangeRecord{tt.ref.Path: {change}},
			}

			agg := NewAggregator(&fakeSource{refs: []ProjectRef{tt.ref}}, extractor, &fakePlans{})
			agg.Fallback = fallback
			agg.Now = fixedClock()

			doc, err := agg.AggregateWindow(context.Background(), "/ws", window, false)
			if err != nil {
				t.Fatalf("AggregateWindow() error = %v", err)
			}

			if got := fallback.called(tt.ref.Path); got != tt.wantScan {
				t.Errorf("fallback scanned = %v, want %v", got, tt.wantScan)
			}
			if got := extractor.called(tt.ref.Path); got != tt.wantExtract {
				t.Errorf("extractor called = %v, want %v", got, tt.wantExtract)
			}
			if tt.wantScan && len(doc.Projects[0].LooseFileChanges) != 1 {
				t.Errorf("loose changes = %v, want the scanned record", doc.Projects[0].LooseFileChanges)
			}
		})
	}
}

func TestAggregator_ResolveWindow(t *testing.T) {
	now := fixedClock()()
	cursor := now.Add(-3 * time.Hour)

	tests := []struct {
		name      string
		tracker   StateTracker
		lookback  time.Duration
		wantStart time.Time
	}{
		{
			name:      "cursor bounds the window",
			tracker:   &fakeTracker{last: &cursor},
			wantStart: cursor,
		},
		{
			name:      "no prior run falls back to lookback",
			tracker:   &fakeTracker{},
			lookback:  6 * time.Hour,
			wantStart: now.Add(-6 * time.Hour),
		},
		{
			name:      "no tracker falls back to default lookback",
			wantStart: now.Add(-DefaultLookback),
		},
		{
			name:      "future cursor is ignored",
			tracker:   &fakeTracker{last: timePtr(now.Add(time.Hour))},
			wantStart: now.Add(-DefaultLookback),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(&fakeSource{}, &fakeExtractor{}, &fakePlans{})
			agg.Tracker = tt.tracker
			agg.Lookback = tt.lookback
			agg.Now = fixedClock()

			got := agg.ResolveWindow("/ws")
			if !got.Start.Equal(tt.wantStart) {
				t.Errorf("window start = %v, want %v", got.Start, tt.wantStart)
			}
			if !got.End.Equal(now) {
				t.Errorf("window end = %v, want now (%v)", got.End, now)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestAggregator_EmptyWorkspaceWithFallback(t *testing.T) {
	window := aggWindow()
	fallback := &fakeFallback{
		changes: map[string][]FileChangeRecord{
			"/ws": {{Path: "scratch.txt", ChangeKind: ChangeModified, ModifiedAt: window.Start.Add(time.Hour)}},
		},
	}

	agg := NewAggregator(&fakeSource{}, &fakeExtractor{}, &fakePlans{})
	agg.Fallback = fallback
	agg.Now = fixedClock()

	doc, err := agg.AggregateWindow(context.Background(), "/ws", window, false)
	if err != nil {
		t.Fatalf("AggregateWindow() error = %v", err)
	}

	if len(doc.Projects) != 1 {
		t.Fatalf("got %d projects, want the workspace root as one target", len(doc.Projects))
	}
	root := doc.Projects[0]
	if root.Path != "/ws" || root.Name != "ws" || root.HasVersionControl {
		t.Errorf("root project = %+v, want /ws named ws without version control", root)
	}
	if len(root.LooseFileChanges) != 1 {
		t.Errorf("loose changes = %v, want 1", root.LooseFileChanges)
	}

	// Without the fallback there is nothing to collect from a bare root.
	agg.Fallback = nil
	doc, err = agg.AggregateWindow(context.Background(), "/ws", window, false)
	if err != nil {
		t.Fatalf("AggregateWindow() error = %v", err)
	}
	if len(doc.Projects) != 0 {
		t.Errorf("got %d projects with fallback disabled, want 0", len(doc.Projects))
	}
}

func TestAggregator_StateFailureIsRunLevelDiagnostic(t *testing.T) {
	window := aggWindow()
	tracker := &fakeTracker{
		saveErr: dberrors.NewStateError("save", "/state/abc.json", "disk full"),
	}

	agg := NewAggregator(&fakeSource{refs: []ProjectRef{{Name: "a", Path: "/ws/a", HasVersionControl: true}}},
		&fakeExtractor{}, &fakePlans{})
	agg.Tracker = tracker
	agg.Now = fixedClock()

	doc, err := agg.AggregateWindow(context.Background(), "/ws", window, false)
	if err != nil {
		t.Fatalf("AggregateWindow() error = %v, want the document despite the state failure", err)
	}
	if len(doc.Projects) != 1 {
		t.Errorf("got %d projects, want 1", len(doc.Projects))
	}
	if len(doc.Diagnostics) != 1 || doc.Diagnostics[0].Kind != DiagStateFailure {
		t.Fatalf("run diagnostics = %v, want one %s", doc.Diagnostics, DiagStateFailure)
	}
}

func TestAggregator_DiscoveryErrorIsFatal(t *testing.T) {
	source := &fakeSource{err: dberrors.NewDiscoveryError("/ws", "permission denied")}
	agg := NewAggregator(source, &fakeExtractor{}, &fakePlans{})
	agg.Now = fixedClock()

	_, err := agg.AggregateWindow(context.Background(), "/ws", aggWindow(), false)
	if !dberrors.IsDiscoveryError(err) {
		t.Fatalf("AggregateWindow() error = %v, want the discovery error through unchanged", err)
	}
}

func TestAggregator_InvalidWindow(t *testing.T) {
	agg := NewAggregator(&fakeSource{}, &fakeExtractor{}, &fakePlans{})
	agg.Now = fixedClock()

	_, err := agg.AggregateWindow(context.Background(), "/ws", Window{}, false)
	if err == nil {
		t.Fatal("AggregateWindow() with a zero window = nil, want error")
	}
}

func TestAggregator_ConcurrencyBound(t *testing.T) {
	window := aggWindow()
	refs := make([]ProjectRef, 16)
	for i := range refs {
		refs[i] = ProjectRef{Name: string(rune('a' + i)), Path: "/ws/" + string(rune('a'+i)), HasVersionControl: true}
	}

	var inFlight, peak atomic.Int64
	extractor := extractorFunc(func(ctx context.Context, repoRoot string, w Window) ([]CommitRecord, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	})

	agg := NewAggregator(&fakeSource{refs: refs}, extractor, &fakePlans{})
	agg.Now = fixedClock()
	agg.Concurrency = 2

	doc, err := agg.AggregateWindow(context.Background(), "/ws", window, false)
	if err != nil {
		t.Fatalf("AggregateWindow() error = %v", err)
	}
	if len(doc.Projects) != len(refs) {
		t.Fatalf("got %d projects, want %d", len(doc.Projects), len(refs))
	}
	for i, p := range doc.Projects {
		if p.Path != refs[i].Path {
			t.Fatalf("project %d = %s, want discovery order preserved (%s)", i, p.Path, refs[i].Path)
		}
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrent extractions = %d, want at most 2", got)
	}
}

type extractorFunc func(ctx context.Context, repoRoot string, window Window) ([]CommitRecord, error)

func (f extractorFunc) Extract(ctx context.Context, repoRoot string, window Window) ([]CommitRecord, error) {
	return f(ctx, repoRoot, window)
}

func TestAggregator_CancellationAbortsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := NewAggregator(&fakeSource{refs: []ProjectRef{{Name: "a", Path: "/ws/a", HasVersionControl: true}}},
		&fakeExtractor{}, &fakePlans{})
	agg.Now = fixedClock()

	_, err := agg.AggregateWindow(ctx, "/ws", aggWindow(), false)
	if !dberrors.Is(err, context.Canceled) {
		t.Fatalf("AggregateWindow() error = %v, want context.Canceled", err)
	}
}
