//go:build windows

package daemon

import "os/exec"

// configureSysProcAttr is a no-op on Windows; the daemon process is not
// detached from the caller's session.
func configureSysProcAttr(_ *exec.Cmd) {}
