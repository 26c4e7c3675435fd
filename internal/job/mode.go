package job

import (
	"fmt"
	"sort"
	"strings"
)

// Mode is one way of executing a benchmark: a plain timed run or one of the
// valgrind instrumentation tools.
type Mode int

const (
	ModeBase Mode = iota
	ModeCallgrind
	ModeCachegrind
	ModeMassif
)

var modeNames = [...]string{
	ModeBase:       "base",
	ModeCallgrind:  "callgrind",
	ModeCachegrind: "cachegrind",
	ModeMassif:     "massif",
}

// modeArgv maps each mode to the pure function producing its argv.
var modeArgv = [...]func(j *Job, m Mode) []string{
	ModeBase: func(j *Job, m Mode) []string { return j.baseArgs(m) },
	ModeCallgrind: profiled(func(out string) []string {
		return []string{
			"--tool=callgrind",
			"--callgrind-out-file=" + out,
			"--dump-line=yes",
			"--dump-instr=yes",
			"--instr-atstart=yes",
			"--collect-atstart=yes",
			"--collect-jumps=yes",
			"--collect-systime=yes",
			"--collect-bus=yes",
			"--cache-sim=yes",
			"--branch-sim=yes",
		}
	}),
	ModeCachegrind: profiled(func(out string) []string {
		return []string{
			"--tool=cachegrind",
			"--cachegrind-out-file=" + out,
			"--cache-sim=yes",
			"--branch-sim=yes",
		}
	}),
	ModeMassif: profiled(func(out string) []string {
		return []string{
			"--tool=massif",
			"--massif-out-file=" + out,
			"--stacks=yes",
		}
	}),
}

// profiled wraps the base argv in a profiler invocation writing to the job's
// per-mode output file.
func profiled(toolArgs func(out string) []string) func(j *Job, m Mode) []string {
	return func(j *Job, m Mode) []string {
		args := []string{j.profiler(), "--time-stamp=yes", "--quiet"}
		args = append(args, toolArgs(j.ProfileOutput(m))...)
		args = append(args, j.p.ProfilerOpts...)
		args = append(args, "--")
		return append(args, j.baseArgs(m)...)
	}
}

// AllModes returns every mode in canonical order.
func AllModes() []Mode {
	return []Mode{ModeBase, ModeCallgrind, ModeCachegrind, ModeMassif}
}

func (m Mode) valid() bool { return m >= ModeBase && int(m) < len(modeNames) }

func (m Mode) String() string {
	if !m.valid() {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// Profiled reports whether the mode runs under the profiler.
func (m Mode) Profiled() bool { return m != ModeBase }

// ParseMode resolves a mode name.
func ParseMode(name string) (Mode, error) {
	for _, m := range AllModes() {
		if strings.EqualFold(name, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown execution mode %q", name)
}

// NormalizeModes deduplicates modes into canonical order. When no profiled
// mode is present the result is exactly [ModeBase], so every job has at least
// one runnable command.
func NormalizeModes(modes []Mode) []Mode {
	seen := make(map[Mode]bool, len(modes))
	out := make([]Mode, 0, len(modes)+1)
	profiledSeen := false
	for _, m := range modes {
		if !m.valid() || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
		profiledSeen = profiledSeen || m.Profiled()
	}
	if !profiledSeen {
		return []Mode{ModeBase}
	}
	sort.Slice(out, func(i, k int) bool { return out[i] < out[k] })
	return out
}
