//go:build !windows

package daemon

import (
	"os"
	"syscall"
)

// isProcessRunning reports whether a process with the given PID exists.
// On Unix, signal 0 probes for existence without delivering anything.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
