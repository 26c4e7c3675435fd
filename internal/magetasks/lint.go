package magetasks

import (
	"errors"
	"fmt"
	"strings"

	"github.com/magefile/mage/sh"
)

// golangciDisabled are the linters that fight the codebase's conventions.
const golangciDisabled = "--disable=exhaustruct,varnamelen,ireturn,wrapcheck,nlreturn,gochecknoglobals,mnd,depguard,tagalign"

// LintAll runs every linter. Optional linters that are not installed are
// reported and skipped.
func LintAll() error {
	var errs []error
	for _, lint := range []func() error{LintFormat, LintVet, LintStaticcheck, LintGolangci} {
		if err := lint(); err != nil && !IsCommandNotFound(err) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	PrintSuccess("all linters passed")
	return nil
}

// LintFormat fails when gofmt would change any file.
func LintFormat() error {
	PrintH2Header("Go Format")
	out, err := sh.Output("gofmt", "-l", "cmd", "internal")
	if err != nil {
		return err
	}
	if out = strings.TrimSpace(out); out != "" {
		PrintError("unformatted files:\n" + out)
		return fmt.Errorf("gofmt: %d files need formatting", len(strings.Split(out, "\n")))
	}
	return nil
}

// LintVet runs go vet.
func LintVet() error {
	return Run("Go Vet", "go", "vet", "./...")
}

// LintStaticcheck runs staticcheck when installed.
func LintStaticcheck() error {
	return optional("Staticcheck", "honnef.co/go/tools/cmd/staticcheck@latest", "staticcheck", "./...")
}

// LintGolangci runs golangci-lint when installed.
func LintGolangci() error {
	return optional("Golangci-lint", "github.com/golangci/golangci-lint/cmd/golangci-lint@latest",
		"golangci-lint", "run", golangciDisabled, "--timeout=5m", "./...")
}

// LintGolangciFix runs golangci-lint with auto-fixes.
func LintGolangciFix() error {
	return optional("Golangci-lint Fix", "github.com/golangci/golangci-lint/cmd/golangci-lint@latest",
		"golangci-lint", "run", "--fix", golangciDisabled, "--timeout=5m", "./...")
}

func optional(title, install, cmd string, args ...string) error {
	err := Run(title, cmd, args...)
	if IsCommandNotFound(err) {
		PrintWarning(fmt.Sprintf("%s not found (install: go install %s)", cmd, install))
		return err
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", cmd, err)
	}
	return nil
}
