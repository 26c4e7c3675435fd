package job

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DefaultMaxTail is the number of output lines kept per command for error
// reports.
const DefaultMaxTail = 200

// ErrNonZeroExit is matched by CommandErrors whose process ran and exited
// non-zero. Use errors.Is(err, ErrNonZeroExit).
var ErrNonZeroExit = errors.New("command exited with non-zero code")

// CommandError reports one failed command of a job together with the
// captured output needed to diagnose it without rerunning.
type CommandError struct {
	JobID    int
	Mode     Mode
	Args     []string
	ExitCode int
	Output   []string
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("job %d (%s): exit code %d: %s", e.JobID, e.Mode, e.ExitCode, strings.Join(e.Args, " "))
	}
	return fmt.Sprintf("job %d (%s): %v: %s", e.JobID, e.Mode, e.Err, strings.Join(e.Args, " "))
}

func (e *CommandError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrNonZeroExit.
func (e *CommandError) Is(target error) bool {
	return target == ErrNonZeroExit && e.ExitCode > 0
}

// Report renders the command and its captured output.
func (e *CommandError) Report() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(e.Args, " "))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 80))
	sb.WriteString("\n")
	for _, line := range e.Output {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Repeat("-", 80))
	sb.WriteString("\n")
	return sb.String()
}

// CommandResult describes one finished command.
type CommandResult struct {
	JobID    int
	Mode     Mode
	Args     []string
	ExitCode int
	Duration time.Duration
	Err      error
}

// RunOptions tunes Job.Run.
type RunOptions struct {
	// Quiet suppresses echoing each command line to Echo before it runs.
	Quiet bool
	Echo  io.Writer
	// MaxTail bounds the captured output kept per command.
	MaxTail int
	// OnCommand is called after every command, successful or not.
	OnCommand func(CommandResult)
}

// Run executes the job's commands one after another. Commands are never
// overlapped: the benchmark measures its own wall and CPU time. A failing
// command does not stop the remaining commands of the job; all failures are
// returned together once the last command has finished. Cancelling ctx kills
// the running command and skips the rest.
func (j *Job) Run(ctx context.Context, opts RunOptions) error {
	if opts.MaxTail <= 0 {
		opts.MaxTail = DefaultMaxTail
	}

	var result *multierror.Error
	for _, c := range j.Commands() {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, &CommandError{JobID: j.id, Mode: c.Mode, Args: c.Args, Err: err})
			break
		}
		if !opts.Quiet && opts.Echo != nil {
			fmt.Fprintln(opts.Echo, c.String())
		}

		start := time.Now()
		exitCode, output, err := runCommand(ctx, c.Args, opts.MaxTail)
		if opts.OnCommand != nil {
			opts.OnCommand(CommandResult{
				JobID:    j.id,
				Mode:     c.Mode,
				Args:     c.Args,
				ExitCode: exitCode,
				Duration: time.Since(start),
				Err:      err,
			})
		}
		if err != nil {
			result = multierror.Append(result, &CommandError{
				JobID:    j.id,
				Mode:     c.Mode,
				Args:     c.Args,
				ExitCode: exitCode,
				Output:   output,
				Err:      err,
			})
		}
	}
	return result.ErrorOrNil()
}

// runCommand runs argv without a shell, capturing combined stdout and stderr.
func runCommand(ctx context.Context, argv []string, maxTail int) (int, []string, error) {
	if len(argv) == 0 || argv[0] == "" {
		return -1, nil, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	pipeReader, pipeWriter := io.Pipe()
	cmd.Stdout = pipeWriter
	cmd.Stderr = pipeWriter

	scanner := bufio.NewScanner(pipeReader)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	tail := newTailBuffer(maxTail)

	if err := cmd.Start(); err != nil {
		_ = pipeWriter.Close()
		_ = pipeReader.Close()
		return -1, nil, err
	}

	var readWG sync.WaitGroup
	readWG.Add(1)
	go func() {
		defer readWG.Done()
		for scanner.Scan() {
			tail.add(scanner.Text())
		}
		// Keep draining so an overlong line cannot block the child.
		_, _ = io.Copy(io.Discard, pipeReader)
	}()

	waitErr := cmd.Wait()
	_ = pipeWriter.Close()
	readWG.Wait()
	_ = pipeReader.Close()

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), tail.lines(), waitErr
		}
		return -1, tail.lines(), waitErr
	}
	return 0, tail.lines(), nil
}
