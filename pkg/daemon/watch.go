package daemon

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// planWatchDebounce batches bursts of filesystem events (editors often write
// a file several times in quick succession) into one poll.
const planWatchDebounce = 2 * time.Second

// WatchPlans watches the plan directory of each repository and triggers an
// early poll when any plan file changes. Repositories without a plan
// directory are skipped; the ticker still covers them. Runs until ctx is
// canceled.
func (s *Service) WatchPlans(ctx context.Context, repoPaths []string, planDirName string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := 0
	for _, repo := range repoPaths {
		dir := filepath.Join(repo, planDirName)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Printf("daybook daemon: cannot watch %s: %v", dir, err)
			continue
		}
		watched++
	}
	if watched == 0 {
		return nil
	}

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".plan.md") {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(planWatchDebounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(planWatchDebounce)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			s.TriggerPoll()

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; the interval ticker still polls.
		}
	}
}
