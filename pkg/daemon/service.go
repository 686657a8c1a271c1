// Package daemon provides the long-running scheduled aggregation service.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"thornfield.dev/daybook/pkg/activity"
)

// PollFunc runs one incremental aggregation and returns the resulting
// document. The daemon owns scheduling; the caller owns what a poll does.
type PollFunc func(ctx context.Context) (*activity.WorkspaceActivity, error)

// Config controls the daemon runtime behavior.
type Config struct {
	Interval     time.Duration
	Addr         string
	EventsBuffer int

	// IdleTimeout shuts the daemon down after this long without any HTTP
	// client activity. Zero disables the reaper; autostarted daemons set it
	// so a forgotten daemon does not poll forever.
	IdleTimeout time.Duration
}

// Snapshot is a compact activity state for status/event payloads.
type Snapshot struct {
	At             time.Time `json:"at"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	Projects       int       `json:"projects"`
	ActiveProjects int       `json:"active_projects"`
	Commits        int       `json:"commits"`
	PlanUpdates    int       `json:"plan_updates"`
	Diagnostics    int       `json:"diagnostics"`
}

// Delta captures what changed between polls.
type Delta struct {
	Commits     int `json:"commits"`
	PlanUpdates int `json:"plan_updates"`
}

func (d Delta) isZero() bool {
	return d.Commits == 0 && d.PlanUpdates == 0
}

// Event is emitted whenever the activity snapshot updates.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg  Config
	poll PollFunc

	// kick requests an early poll, used by the plan watcher.
	kick chan struct{}

	mu           sync.RWMutex
	startedAt    time.Time
	lastPollAt   time.Time
	lastActivity time.Time
	pollCount    int64
	lastError    string
	hasSnapshot  bool
	snapshot     Snapshot
	events       []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config, poll PollFunc) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = time.Hour
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7341"
	}

	now := time.Now()
	return &Service{
		cfg:          cfg,
		poll:         poll,
		kick:         make(chan struct{}, 1),
		startedAt:    now,
		lastActivity: now,
		subs:         make(map[int]chan Event),
	}
}

// TriggerPoll requests an early poll. Safe to call from any goroutine; a
// request while one is already pending coalesces.
func (s *Service) TriggerPoll() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run starts HTTP endpoints and polling until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.touching(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	var reaper <-chan struct{}
	if s.cfg.IdleTimeout > 0 {
		lc := NewLifecycle(s, s.cfg.IdleTimeout)
		go lc.Run(ctx)
		reaper = lc.ShutdownCh()
	}

	// Seed initial snapshot so status is useful immediately.
	s.pollOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.shutdown(server)
		case <-reaper:
			log.Printf("daybook daemon idle, shutting down")
			return s.shutdown(server)
		case <-ticker.C:
			s.pollOnce(ctx)
		case <-s.kick:
			s.pollOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

func (s *Service) shutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Service) pollOnce(ctx context.Context) {
	doc, err := s.poll(ctx)
	now := time.Now()

	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastPollAt = now
		s.pollCount++
		s.mu.Unlock()
		log.Printf("daybook daemon poll error: %v", err)
		return
	}

	snap := snapshotFromActivity(doc, now)

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = now
	s.pollCount++
	s.lastError = ""

	if !prevExists {
		ev = Event{
			ID:        uuid.NewString(),
			Type:      "snapshot",
			Timestamp: now,
			Snapshot:  snap,
		}
		publish = true
	} else {
		delta := diffSnapshots(prev, snap)
		if !delta.isZero() {
			ev = Event{
				ID:        uuid.NewString(),
				Type:      "activity_delta",
				Timestamp: now,
				Snapshot:  snap,
				Delta:     delta,
			}
			publish = true
		}
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

func snapshotFromActivity(doc *activity.WorkspaceActivity, at time.Time) Snapshot {
	planUpdates := 0
	diagnostics := len(doc.Diagnostics)
	for i := range doc.Projects {
		planUpdates += len(doc.Projects[i].PlanUpdates)
		diagnostics += len(doc.Projects[i].Diagnostics)
	}

	return Snapshot{
		At:             at,
		WindowStart:    doc.Window.Start,
		WindowEnd:      doc.Window.End,
		Projects:       len(doc.Projects),
		ActiveProjects: doc.ActiveProjects(),
		Commits:        doc.TotalCommits(),
		PlanUpdates:    planUpdates,
		Diagnostics:    diagnostics,
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Commits:     curr.Commits - prev.Commits,
		PlanUpdates: curr.PlanUpdates - prev.PlanUpdates,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

// touching wraps a handler to record client activity for the idle reaper.
func (s *Service) touching(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.lastActivity = time.Now()
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

// idleState reports the last client activity and subscriber count for the
// lifecycle reaper.
func (s *Service) idleState() (time.Time, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity, len(s.subs)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		ID:        uuid.NewString(),
		Type:      "snapshot",
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
