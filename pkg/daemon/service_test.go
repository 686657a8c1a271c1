package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"thornfield.dev/daybook/pkg/activity"
	"thornfield.dev/daybook/pkg/errors"
)

func testWorkspaceActivity(commits, planUpdates int) *activity.WorkspaceActivity {
	window := activity.Window{
		Start: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
	}

	project := activity.NewProjectActivity("/ws/api-server", true)
	for i := 0; i < commits; i++ {
		project.Commits = append(project.Commits, activity.CommitRecord{
			Hash:      "abc123",
			Author:    "Dev",
			Message:   "Fix things",
			Timestamp: window.Start.Add(time.Duration(i) * time.Minute),
		})
	}
	for i := 0; i < planUpdates; i++ {
		project.PlanUpdates = append(project.PlanUpdates, activity.PlanArtifact{
			Path:       "/ws/api-server/plans/roadmap.plan.md",
			ModifiedAt: window.Start.Add(time.Hour),
		})
	}

	return &activity.WorkspaceActivity{
		Window:      window,
		Projects:    []activity.ProjectActivity{project},
		GeneratedAt: window.End,
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{}, nil)
	if s.cfg.Interval != time.Hour {
		t.Errorf("interval = %v, want 1h", s.cfg.Interval)
	}
	if s.cfg.Addr != "127.0.0.1:7341" {
		t.Errorf("addr = %q, want 127.0.0.1:7341", s.cfg.Addr)
	}
	if s.cfg.EventsBuffer != 200 {
		t.Errorf("events buffer = %d, want 200", s.cfg.EventsBuffer)
	}
}

func TestPollOnce_SnapshotThenDelta(t *testing.T) {
	docs := []*activity.WorkspaceActivity{
		testWorkspaceActivity(2, 1),
		testWorkspaceActivity(2, 1), // no change, no event
		testWorkspaceActivity(5, 2),
	}
	i := 0
	s := New(Config{Interval: time.Hour}, func(context.Context) (*activity.WorkspaceActivity, error) {
		doc := docs[i]
		i++
		return doc, nil
	})

	for range docs {
		s.pollOnce(context.Background())
	}

	status := s.snapshotStatus()
	if status.PollCount != 3 {
		t.Errorf("poll count = %d, want 3", status.PollCount)
	}
	if status.Summary.Commits != 5 || status.Summary.PlanUpdates != 2 {
		t.Errorf("summary = %+v, want 5 commits / 2 plan updates", status.Summary)
	}
	if status.Summary.ActiveProjects != 1 {
		t.Errorf("active projects = %d, want 1", status.Summary.ActiveProjects)
	}

	if len(s.events) != 2 {
		t.Fatalf("got %d events, want 2 (snapshot + delta)", len(s.events))
	}
	if s.events[0].Type != "snapshot" {
		t.Errorf("first event type = %q, want snapshot", s.events[0].Type)
	}
	if s.events[1].Type != "activity_delta" {
		t.Errorf("second event type = %q, want activity_delta", s.events[1].Type)
	}
	if d := s.events[1].Delta; d.Commits != 3 || d.PlanUpdates != 1 {
		t.Errorf("delta = %+v, want 3 commits / 1 plan update", d)
	}
	if s.events[0].ID == "" || s.events[0].ID == s.events[1].ID {
		t.Error("event IDs should be unique and non-empty")
	}
}

func TestPollOnce_ErrorRecorded(t *testing.T) {
	s := New(Config{Interval: time.Hour}, func(context.Context) (*activity.WorkspaceActivity, error) {
		return nil, errors.New("git unavailable")
	})

	s.pollOnce(context.Background())

	status := s.snapshotStatus()
	if status.LastError != "git unavailable" {
		t.Errorf("last error = %q, want \"git unavailable\"", status.LastError)
	}
	if len(s.events) != 0 {
		t.Errorf("got %d events after failed poll, want 0", len(s.events))
	}

	// A successful poll clears the error.
	s.poll = func(context.Context) (*activity.WorkspaceActivity, error) {
		return testWorkspaceActivity(1, 0), nil
	}
	s.pollOnce(context.Background())
	if got := s.snapshotStatus().LastError; got != "" {
		t.Errorf("last error after recovery = %q, want empty", got)
	}
}

func TestEventBuffer_Capped(t *testing.T) {
	commits := 0
	s := New(Config{Interval: time.Hour, EventsBuffer: 5}, func(context.Context) (*activity.WorkspaceActivity, error) {
		commits++
		return testWorkspaceActivity(commits, 0), nil
	})

	for i := 0; i < 10; i++ {
		s.pollOnce(context.Background())
	}

	if len(s.events) != 5 {
		t.Fatalf("got %d buffered events, want 5", len(s.events))
	}
	// Oldest events were dropped; the newest snapshot survives at the end.
	if got := s.events[len(s.events)-1].Snapshot.Commits; got != 10 {
		t.Errorf("newest buffered snapshot commits = %d, want 10", got)
	}
}

func TestHandleStatus(t *testing.T) {
	s := New(Config{Interval: 30 * time.Second}, func(context.Context) (*activity.WorkspaceActivity, error) {
		return testWorkspaceActivity(3, 1), nil
	})
	s.pollOnce(context.Background())

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.PollIntervalSec != 30 {
		t.Errorf("poll interval = %d, want 30", status.PollIntervalSec)
	}
	if status.Summary.Commits != 3 {
		t.Errorf("summary commits = %d, want 3", status.Summary.Commits)
	}
}

func TestHandleEvents(t *testing.T) {
	s := New(Config{Interval: time.Hour}, func(context.Context) (*activity.WorkspaceActivity, error) {
		return testWorkspaceActivity(1, 0), nil
	})
	s.pollOnce(context.Background())

	rec := httptest.NewRecorder()
	s.handleEvents(rec, httptest.NewRequest(http.MethodGet, "/v1/events", nil))

	var events []Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}
	if len(events) != 1 || events[0].Type != "snapshot" {
		t.Fatalf("events = %+v, want one snapshot event", events)
	}
}

func TestHandleStream_InitialSnapshot(t *testing.T) {
	s := New(Config{Interval: time.Hour}, func(context.Context) (*activity.WorkspaceActivity, error) {
		return testWorkspaceActivity(2, 0), nil
	})
	s.pollOnce(context.Background())

	server := httptest.NewServer(http.HandlerFunc(s.handleStream))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q, want text/event-stream", ct)
	}

	reader := bufio.NewReader(resp.Body)
	eventLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read event line: %v", err)
	}
	if strings.TrimSpace(eventLine) != "event: snapshot" {
		t.Errorf("event line = %q, want \"event: snapshot\"", strings.TrimSpace(eventLine))
	}

	dataLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read data line: %v", err)
	}
	var ev Event
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(dataLine), "data: ")), &ev); err != nil {
		t.Fatalf("failed to decode stream event: %v", err)
	}
	if ev.Snapshot.Commits != 2 {
		t.Errorf("streamed snapshot commits = %d, want 2", ev.Snapshot.Commits)
	}
}

func TestStreamSubscriber_ReceivesPublishedEvents(t *testing.T) {
	s := New(Config{Interval: time.Hour}, nil)

	ch := make(chan Event, 1)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	s.publishEvent(Event{ID: "e1", Type: "activity_delta"})

	select {
	case ev := <-ch:
		if ev.ID != "e1" {
			t.Errorf("received event ID = %q, want e1", ev.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the published event")
	}
}

func TestLifecycle_IdleShutdown(t *testing.T) {
	s := New(Config{Interval: time.Hour}, nil)
	s.mu.Lock()
	s.lastActivity = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	lc := NewLifecycle(s, 15*time.Minute)
	lc.checkIdle()

	select {
	case <-lc.ShutdownCh():
	default:
		t.Error("expected shutdown after idle timeout elapsed")
	}
}

func TestLifecycle_SubscribersBlockShutdown(t *testing.T) {
	s := New(Config{Interval: time.Hour}, nil)
	s.mu.Lock()
	s.lastActivity = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	ch := make(chan Event, 1)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	lc := NewLifecycle(s, 15*time.Minute)
	lc.checkIdle()

	select {
	case <-lc.ShutdownCh():
		t.Error("shutdown triggered while a subscriber was connected")
	default:
	}
}

func TestTriggerPoll_Coalesces(t *testing.T) {
	s := New(Config{Interval: time.Hour}, nil)
	s.TriggerPoll()
	s.TriggerPoll() // must not block

	select {
	case <-s.kick:
	default:
		t.Error("expected a pending kick")
	}
	select {
	case <-s.kick:
		t.Error("kicks should coalesce to one pending request")
	default:
	}
}
