//go:build unix

package checks

import (
	"os/exec"
	"syscall"
	"time"
)

// killProcessGroup makes cancellation kill the whole process group, so test
// runners that fork workers do not outlive the timeout.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second
}
