//go:build unix

// Package procgroup runs child processes in their own process group so a
// cancelled run can take down everything the child spawned.
package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultWaitDelay bounds how long Wait blocks on output pipes after the
// group was signalled.
const DefaultWaitDelay = 5 * time.Second

// Configure places cmd in a new process group and makes context
// cancellation kill the whole group instead of only the direct child.
func Configure(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.Cancel = func() error {
		return Kill(cmd.Process)
	}
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
}

// Kill sends SIGKILL to the process group led by proc.
func Kill(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	err := unix.Kill(-proc.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

// Terminate asks the process group led by proc to stop.
func Terminate(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	err := unix.Kill(-proc.Pid, unix.SIGTERM)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
