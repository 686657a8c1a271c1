package daemon

import (
	"context"
	"sync"
	"time"
)

// Lifecycle shuts an autostarted daemon down after a stretch with no HTTP
// clients and no stream subscribers.
type Lifecycle struct {
	service     *Service
	idleTimeout time.Duration
	shutdown    chan struct{}
	stopOnce    sync.Once
}

func NewLifecycle(s *Service, idleTimeout time.Duration) *Lifecycle {
	if idleTimeout == 0 {
		idleTimeout = 15 * time.Minute
	}
	return &Lifecycle{
		service:     s,
		idleTimeout: idleTimeout,
		shutdown:    make(chan struct{}),
	}
}

// Run starts the background reaper goroutine.
func (l *Lifecycle) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.shutdown:
			return
		case <-ticker.C:
			l.checkIdle()
		}
	}
}

func (l *Lifecycle) checkIdle() {
	lastActivity, subscribers := l.service.idleState()
	if subscribers == 0 && time.Since(lastActivity) > l.idleTimeout {
		l.Stop()
	}
}

// Stop signals the lifecycle to shut down. Safe to call multiple times.
func (l *Lifecycle) Stop() {
	l.stopOnce.Do(func() {
		close(l.shutdown)
	})
}

// ShutdownCh returns a channel that is closed when the lifecycle triggers shutdown.
func (l *Lifecycle) ShutdownCh() <-chan struct{} {
	return l.shutdown
}
