package magetasks

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/magefile/mage/sh"
)

// BuildAll builds the sweep binary with version information stamped in.
func BuildAll() error {
	PrintH2Header("Build")

	if err := sh.RunV("go", "build", "-ldflags", LDFlags(gitVersion(), gitCommit(), time.Now().UTC()), "-o", BinPath, MainPackage); err != nil {
		PrintError("build failed")
		return err
	}
	PrintSuccess(fmt.Sprintf("built %s", BinPath))
	return nil
}

// LDFlags returns the linker flags setting the internal/version variables.
func LDFlags(version, commit string, built time.Time) string {
	pkg := ModulePath + "/internal/version"
	return fmt.Sprintf("-s -w -X '%s.Version=%s' -X '%s.CommitHash=%s' -X '%s.BuildDate=%s'",
		pkg, version, pkg, commit, pkg, built.Format(time.RFC3339))
}

// Clean removes build and coverage artifacts.
func Clean() error {
	PrintH2Header("Clean")

	for _, path := range []string{"./bin", "coverage.out"} {
		if err := os.RemoveAll(path); err != nil {
			return err
		}
	}
	PrintSuccess("cleaned build artifacts")
	return nil
}

func gitVersion() string {
	out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty", "--match=v*")
	if err != nil {
		return "dev"
	}
	return strings.TrimSpace(out)
}

func gitCommit() string {
	out, err := sh.Output("git", "rev-parse", "--short", "HEAD")
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(out)
}
