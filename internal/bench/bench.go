// Package bench resolves and interrogates the benchmark executable and the
// profiler it runs under.
package bench

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// UnknownVersion is reported when the executable prints no version.
const UnknownVersion = "unknown"

var (
	// ErrNotExecutable is returned by Resolve for paths that cannot be run.
	ErrNotExecutable = errors.New("benchmark executable not usable")
	// ErrUnknownMethod is returned by Validate for methods the executable
	// does not implement.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrDuplicateMethod is returned by Validate for a method listed twice.
	ErrDuplicateMethod = errors.New("method listed more than once")
	// ErrToolNotFound is returned by RequireTool.
	ErrToolNotFound = errors.New("required tool not found")
)

// Info is what the executable reports about itself.
type Info struct {
	Path             string
	Version          string
	ThresholdMethods []string
	PlainMethods     []string
}

// Resolve returns the absolute path of an existing, executable regular file.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: no path given", ErrNotExecutable)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotExecutable, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotExecutable, err)
	}
	if st.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotExecutable, abs)
	}
	if st.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("%w: %s is not executable", ErrNotExecutable, abs)
	}
	return abs, nil
}

// Probe asks the executable for its method catalogue and version.
func Probe(ctx context.Context, path string) (*Info, error) {
	info := &Info{Path: path}

	var err error
	if info.ThresholdMethods, err = listMethods(ctx, path, "threshold"); err != nil {
		return nil, err
	}
	if info.PlainMethods, err = listMethods(ctx, path, "nonthreshold"); err != nil {
		return nil, err
	}
	if len(info.ThresholdMethods)+len(info.PlainMethods) == 0 {
		return nil, fmt.Errorf("%s reported no methods", path)
	}
	info.Version = probeVersion(ctx, path)
	return info, nil
}

func listMethods(ctx context.Context, path, kind string) ([]string, error) {
	out, err := exec.CommandContext(ctx, path, "--show-methods="+kind).Output()
	if err != nil {
		return nil, fmt.Errorf("list %s methods of %s: %w", kind, path, err)
	}
	var methods []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if m := strings.TrimSpace(sc.Text()); m != "" {
			methods = append(methods, m)
		}
	}
	return methods, sc.Err()
}

func probeVersion(ctx context.Context, path string) string {
	if out, err := exec.CommandContext(ctx, path, "--version-json").Output(); err == nil {
		var v struct {
			Version string `json:"version"`
		}
		if json.Unmarshal(out, &v) == nil && v.Version != "" {
			return v.Version
		}
	}
	if out, err := exec.CommandContext(ctx, path, "--version").Output(); err == nil {
		if v := strings.TrimSpace(string(out)); v != "" {
			return v
		}
	}
	return UnknownVersion
}

// Methods returns the whole catalogue, threshold-aware methods first.
func (i *Info) Methods() []string {
	out := make([]string, 0, len(i.ThresholdMethods)+len(i.PlainMethods))
	out = append(out, i.ThresholdMethods...)
	return append(out, i.PlainMethods...)
}

// ThresholdAware reports whether method takes a threshold.
func (i *Info) ThresholdAware(method string) bool {
	for _, m := range i.ThresholdMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Validate rejects repeated methods and methods missing from the catalogue,
// naming all of the missing ones.
func (i *Info) Validate(methods []string) error {
	known := make(map[string]bool)
	for _, m := range i.Methods() {
		known[m] = true
	}
	var unknown []string
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		if seen[m] {
			return fmt.Errorf("%w: %s", ErrDuplicateMethod, m)
		}
		seen[m] = true
		if !known[m] {
			unknown = append(unknown, m)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s (available: %s)", ErrUnknownMethod,
			strings.Join(unknown, ", "), strings.Join(i.Methods(), ", "))
	}
	return nil
}

// RequireTool resolves a helper binary such as the profiler.
func RequireTool(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolNotFound, name, err)
	}
	return path, nil
}
