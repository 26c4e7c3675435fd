package magetasks

import (
	"errors"
	"os/exec"
	"strings"

	"github.com/magefile/mage/sh"
)

// Run prints a header and runs cmd with its output streamed.
func Run(title, cmd string, args ...string) error {
	PrintH2Header(title)
	if err := sh.RunV(cmd, args...); err != nil {
		PrintError(title + " failed")
		return err
	}
	return nil
}

// IsCommandNotFound reports whether err means the tool is not installed.
func IsCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "executable file not found") ||
		strings.Contains(msg, "no such file or directory")
}
