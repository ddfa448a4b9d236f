//go:build linux

package transport

import "syscall"

// Pdeathsig takes the child down with the gateway even when it is killed
// without a chance to run the stop sequence.
func childSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}
