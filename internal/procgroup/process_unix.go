//go:build unix

package procgroup

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Setup makes the current process the leader of its own process group.
// Children inherit the group.
func Setup() error {
	if unix.Getpgrp() == unix.Getpid() {
		return nil
	}
	if err := unix.Setpgid(0, 0); err != nil {
		return fmt.Errorf("setpgid: %w", err)
	}
	return nil
}

// Kill sends SIGKILL to every process in the caller's process group.
func Kill() error {
	return unix.Kill(0, unix.SIGKILL)
}

// Signals returns the signals that trigger cancellation.
func Signals() []os.Signal {
	return []os.Signal{unix.SIGINT, unix.SIGTERM}
}
