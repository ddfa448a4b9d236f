//go:build unix

package transport

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

// childWaitDelay bounds how long Wait keeps draining the child's pipes after
// the process group was killed.
const childWaitDelay = 2 * time.Second

// The child runs in its own process group so npx and the node process it
// spawns are killed together.
func setupProcessHandling(cmd *exec.Cmd) groupCleanup {
	cmd.SysProcAttr = childSysProcAttr()
	cmd.Cancel = func() error {
		return killProcessGroup(cmd.Process)
	}
	cmd.WaitDelay = childWaitDelay
	return func() {
		_ = killProcessGroup(cmd.Process)
	}
}

func killProcessGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	if err := syscall.Kill(-proc.Pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return err
	}
	return nil
}
