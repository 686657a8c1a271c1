package daemon

import (
	"context"
	"os/exec"
	"time"

	"thornfield.dev/daybook/pkg/errors"
)

// Detach configures cmd to run independently of the caller's session.
func Detach(cmd *exec.Cmd) {
	configureSysProcAttr(cmd)
}

// EnsureRunning checks if the daemon is running and starts it if not.
// Daemons started this way get --idle-exit so they reap themselves once
// nothing has talked to them for a while. Returns a connected client.
func EnsureRunning(ctx context.Context, binPath, addr string) (*Client, error) {
	client := NewClient(addr)

	if IsRunning() {
		if client.Healthy(ctx) {
			return client, nil
		}
		// Stale PID? Remove it and start fresh.
		_ = RemovePIDFile()
	}

	cmd := exec.Command(binPath, "daemon", "start", "--foreground", "--idle-exit")
	Detach(cmd)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start daemon")
	}

	timeout := time.After(2 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, errors.New("timeout waiting for daemon to start")
		case <-ticker.C:
			if client.Healthy(ctx) {
				return client, nil
			}
		}
	}
}
