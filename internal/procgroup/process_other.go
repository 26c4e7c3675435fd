//go:build !unix

package procgroup

import "os"

// Setup is a no-op without process group support.
func Setup() error {
	return nil
}

// Kill terminates the current process. Children are stopped through their
// command contexts.
func Kill() error {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return err
	}
	return p.Kill()
}

// Signals returns the signals that trigger cancellation.
func Signals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
