//go:build unix

package osutil

import (
	"os/exec"
	"syscall"
)

// SetProcessGroup runs cmd in its own process group so that package
// managers spawned from it (npm, cargo) can be stopped as a tree.
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// SetProcessGroupKill makes context cancellation kill the whole group.
// Must be called after SetProcessGroup and before cmd.Start().
func SetProcessGroupKill(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
