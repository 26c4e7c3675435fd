// Package factory enumerates the benchmark combination space into a queue of
// jobs.
package factory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkoosis/sweep/internal/job"
	"github.com/dkoosis/sweep/internal/queue"
)

// Expansion selects how requested modes map onto jobs.
type Expansion int

const (
	// PerMode builds one job per mode for every test case, each with its own id.
	PerMode Expansion = iota
	// Combined builds one job per test case carrying every requested mode.
	Combined
)

func (e Expansion) String() string {
	if e == Combined {
		return "combined"
	}
	return "per-mode"
}

// DefaultInputExts are the extensions of eligible input files.
var DefaultInputExts = []string{".gz"}

// ErrInvalidOptions is wrapped by every validation failure of Options.
var ErrInvalidOptions = errors.New("invalid job options")

// Options describes the combination space.
type Options struct {
	DataDir string
	Exec    string
	// Methods to benchmark, in the order they are enumerated.
	Methods []string
	// ThresholdMethods is the threshold-aware subset of Methods.
	ThresholdMethods []string
	Thresholds       []int
	Runs             int
	Output           string
	Modes            []job.Mode
	Expansion        Expansion
	InputExts        []string
	ProfileDir       string
	Profiler         string
	ProfilerOpts     []string
}

// Validate checks the options without touching the filesystem.
func (o Options) Validate() error {
	switch {
	case o.DataDir == "":
		return fmt.Errorf("%w: data directory is required", ErrInvalidOptions)
	case o.Exec == "":
		return fmt.Errorf("%w: executable is required", ErrInvalidOptions)
	case len(o.Methods) == 0:
		return fmt.Errorf("%w: at least one method is required", ErrInvalidOptions)
	case o.Runs <= 0:
		return fmt.Errorf("%w: runs must be positive, got %d", ErrInvalidOptions, o.Runs)
	case len(o.Thresholds) == 0:
		return fmt.Errorf("%w: threshold list is empty", ErrInvalidOptions)
	}
	seenThreshold := make(map[int]bool, len(o.Thresholds))
	for _, t := range o.Thresholds {
		if t <= 0 {
			return fmt.Errorf("%w: threshold %d is not positive", ErrInvalidOptions, t)
		}
		if seenThreshold[t] {
			return fmt.Errorf("%w: threshold %d is listed twice", ErrInvalidOptions, t)
		}
		seenThreshold[t] = true
	}
	// A repeated method would address the same command twice.
	seenMethod := make(map[string]bool, len(o.Methods))
	for _, m := range o.Methods {
		if seenMethod[m] {
			return fmt.Errorf("%w: method %q is listed twice", ErrInvalidOptions, m)
		}
		seenMethod[m] = true
	}
	return nil
}

// Plan is the enumerated work of one dispatch.
type Plan struct {
	Queue    *queue.Queue[*job.Job]
	Inputs   int
	Jobs     int
	Commands int
	// Modes is the normalized mode set every test case is expanded into.
	Modes []job.Mode
}

// Build walks the data directory and enumerates every input × method ×
// threshold × mode combination. Ids come from one counter shared across the
// whole enumeration, starting at 0.
func Build(opts Options) (*Plan, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	inputs, err := Inputs(opts.DataDir, opts.InputExts)
	if err != nil {
		return nil, err
	}

	thresholdAware := make(map[string]bool, len(opts.ThresholdMethods))
	for _, m := range opts.ThresholdMethods {
		thresholdAware[m] = true
	}

	modes := job.NormalizeModes(opts.Modes)
	groups := [][]job.Mode{modes}
	if opts.Expansion == PerMode {
		groups = groups[:0]
		for _, m := range modes {
			groups = append(groups, []job.Mode{m})
		}
	}

	plan := &Plan{Queue: queue.New[*job.Job](), Inputs: len(inputs), Modes: modes}
	nextID := 0
	for _, input := range inputs {
		category := job.Classify(relativeTo(opts.DataDir, input))
		for _, method := range opts.Methods {
			thresholds := []int{job.NoThreshold}
			if thresholdAware[method] {
				thresholds = opts.Thresholds
			}
			for _, t := range thresholds {
				for _, g := range groups {
					j := job.New(nextID, job.Params{
						Exec:         opts.Exec,
						Input:        input,
						Category:     category,
						Method:       method,
						Threshold:    t,
						Runs:         opts.Runs,
						Output:       opts.Output,
						Modes:        g,
						ProfileDir:   opts.ProfileDir,
						Profiler:     opts.Profiler,
						ProfilerOpts: opts.ProfilerOpts,
					})
					nextID++
					plan.Queue.Push(j)
					plan.Jobs++
					plan.Commands += j.Len()
				}
			}
		}
	}
	return plan, nil
}

// Inputs lists the eligible input files under dir in lexical walk order.
func Inputs(dir string, exts []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dir)
	}
	if len(exts) == 0 {
		exts = DefaultInputExts
	}

	var inputs []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasExt(path, exts) {
			return nil
		}
		inputs = append(inputs, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk data directory: %w", err)
	}
	return inputs, nil
}

func hasExt(path string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// relativeTo strips dir from path so classification only sees directories
// inside the data directory.
func relativeTo(dir, path string) string {
	if rel, err := filepath.Rel(dir, path); err == nil {
		return rel
	}
	return path
}
