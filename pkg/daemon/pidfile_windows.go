//go:build windows

package daemon

import (
	"os"
)

// isProcessRunning reports whether a process with the given PID exists.
// FindProcess always succeeds on Windows, so this is best-effort only.
func isProcessRunning(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
