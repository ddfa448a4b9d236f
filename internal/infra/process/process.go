package process

import (
	"context"
	"errors"
	"os/exec"
)

// Wait waits for cmd to exit or ctx to end. A child killed by a signal is
// treated as stopped, not failed: the gateway only signals it on shutdown.
func Wait(ctx context.Context, cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	select {
	case err := <-done:
		if ExitCode(err) == -1 {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExitCode reports the child's exit status carried by err: 0 for nil, -1 when
// the child was ended by a signal, and -2 when err is not an exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -2
}
