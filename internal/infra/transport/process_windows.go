//go:build windows

package transport

import (
	"errors"
	"os"
	"os/exec"
	"time"
)

// npx on Windows is a .cmd shim, so the child usually runs under cmd.exe and
// only the direct process can be killed here.
func setupProcessHandling(cmd *exec.Cmd) groupCleanup {
	cmd.Cancel = func() error {
		return killProcess(cmd.Process)
	}
	cmd.WaitDelay = 2 * time.Second
	return func() {
		_ = killProcess(cmd.Process)
	}
}

func killProcess(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
