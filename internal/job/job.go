// Package job describes one benchmark invocation and renders it into the
// child-process command lines that realise it.
package job

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// NoThreshold is passed to methods that ignore the threshold so every
// command line carries a numeric --threshold.
const NoThreshold = 1

// DefaultProfiler is the profiler binary used when Params.Profiler is empty.
const DefaultProfiler = "valgrind"

// PassthroughColumns names the columns the executable appends to every
// result row from the --vals argument.
const PassthroughColumns = "id,description,run_type"

// Params holds everything needed to build a Job.
type Params struct {
	Exec         string
	Input        string
	Category     Category
	Method       string
	Threshold    int
	Runs         int
	Output       string
	Modes        []Mode
	ProfileDir   string
	Profiler     string
	ProfilerOpts []string
}

// Job is an immutable benchmark invocation plus its execution modes.
type Job struct {
	id int
	p  Params
}

// New builds a job. Exec and Input are made absolute, modes are normalized
// so that a job without profiled modes runs the base mode.
func New(id int, p Params) *Job {
	p.Exec = absOrSelf(p.Exec)
	p.Input = absOrSelf(p.Input)
	if p.Category == "" {
		p.Category = Unknown
	}
	p.Modes = NormalizeModes(p.Modes)
	p.ProfilerOpts = append([]string(nil), p.ProfilerOpts...)
	return &Job{id: id, p: p}
}

func absOrSelf(path string) string {
	if path == "" {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// ID is the dispatch-unique identifier, also used to name profiler outputs.
func (j *Job) ID() int { return j.id }

// Exec is the absolute path of the benchmark executable.
func (j *Job) Exec() string { return j.p.Exec }

// Input is the absolute path of the dataset.
func (j *Job) Input() string { return j.p.Input }

// Category is the input's dataset category.
func (j *Job) Category() Category { return j.p.Category }

// Method is the sorting method passed as --method.
func (j *Job) Method() string { return j.p.Method }

// Threshold is the --threshold value, NoThreshold for methods without one.
func (j *Job) Threshold() int { return j.p.Threshold }

// Runs is the number of repetitions the executable performs per command.
func (j *Job) Runs() int { return j.p.Runs }

// Output is the CSV sink every command appends to.
func (j *Job) Output() string { return j.p.Output }

// Modes returns a copy of the job's execution modes in canonical order.
func (j *Job) Modes() []Mode { return append([]Mode(nil), j.p.Modes...) }

// Len is the number of commands the job expands into.
func (j *Job) Len() int { return len(j.p.Modes) }

func (j *Job) String() string {
	return fmt.Sprintf("job %d (%s %s t=%d)", j.id, j.p.Method, filepath.Base(j.p.Input), j.p.Threshold)
}

func (j *Job) profiler() string {
	if j.p.Profiler == "" {
		return DefaultProfiler
	}
	return j.p.Profiler
}

// ProfileOutput is the file the profiler writes for mode m. Named by job id
// and mode so concurrent jobs never share an output path.
func (j *Job) ProfileOutput(m Mode) string {
	return filepath.Join(j.p.ProfileDir, fmt.Sprintf("%d_%s.out", j.id, m))
}

// baseArgs is the plain benchmark invocation tagged with mode m.
func (j *Job) baseArgs(m Mode) []string {
	vals := strings.Join([]string{strconv.Itoa(j.id), string(j.p.Category), m.String()}, ",")
	return []string{
		j.p.Exec,
		j.p.Input,
		"--method", j.p.Method,
		"--output", j.p.Output,
		"--runs", strconv.Itoa(j.p.Runs),
		"--threshold", strconv.Itoa(j.p.Threshold),
		"--cols", PassthroughColumns,
		"--vals", vals,
	}
}

// Command is one child-process invocation of a job.
type Command struct {
	Mode Mode
	Args []string
}

// String renders the command the way it is echoed before running.
func (c Command) String() string { return strings.Join(c.Args, " ") }

// Commands returns one command per mode: base first, then the profilers.
func (j *Job) Commands() []Command {
	cmds := make([]Command, 0, len(j.p.Modes))
	for _, m := range j.p.Modes {
		cmds = append(cmds, Command{Mode: m, Args: modeArgv[m](j, m)})
	}
	return cmds
}

// CLI returns the commands as POSIX shell-quoted lines for batch files.
// Local execution never goes through a shell and uses Commands instead.
func (j *Job) CLI() []string {
	cmds := j.Commands()
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = shellquote.Join(c.Args...)
	}
	return lines
}
