//go:build !windows

package daemon

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr detaches the daemon from the caller's session so it
// survives the parent exiting.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
