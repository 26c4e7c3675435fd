// Package submit hands batch files to the cluster scheduler, one array job
// per file.
package submit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dkoosis/sweep/internal/batch"
	"github.com/dkoosis/sweep/internal/manifest"
)

var (
	// ErrNoBatches is returned when the directory holds no batch files.
	ErrNoBatches = errors.New("no batch files found")
	// ErrPartition is returned for a partition outside the allow-list.
	ErrPartition = errors.New("invalid partition")
)

// Runner executes one scheduler command in dir and returns its output.
type Runner func(ctx context.Context, dir string, argv []string) ([]byte, error)

// Options configures a submission.
type Options struct {
	BatchDir  string
	Partition string
	// Partitions, when not empty, is the allow-list for Partition.
	Partitions []string
	Script     string
	Sbatch     string
	Exclusive  bool
	Constraint string
	// Wait is the pause between consecutive submissions.
	Wait time.Duration
	// ResultsRoot receives one staged results directory per submission.
	ResultsRoot string
	DryRun      bool
	Runner      Runner
	Log         logrus.FieldLogger
	Now         func() time.Time
}

// Submission is one array job.
type Submission struct {
	File   string
	Lines  int
	Args   []string
	Output string
}

// Result is the outcome of a submission run.
type Result struct {
	ResultsDir  string
	Submissions []Submission
	Skipped     []string
}

// Jobs returns the total number of array tasks submitted.
func (r Result) Jobs() int {
	n := 0
	for _, s := range r.Submissions {
		n += s.Lines
	}
	return n
}

// Validate checks the options without touching the filesystem beyond reads.
func (o Options) Validate() error {
	if o.Partition == "" {
		return fmt.Errorf("%w: partition is required", ErrPartition)
	}
	if len(o.Partitions) > 0 && !slices.Contains(o.Partitions, o.Partition) {
		return fmt.Errorf("%w: %q (allowed: %s)", ErrPartition, o.Partition, strings.Join(o.Partitions, ", "))
	}
	if st, err := os.Stat(o.Script); err != nil || st.IsDir() {
		return fmt.Errorf("batch script %q not found", o.Script)
	}
	if st, err := os.Stat(o.BatchDir); err != nil || !st.IsDir() {
		return fmt.Errorf("batch directory %q not found", o.BatchDir)
	}
	return nil
}

// Files lists the batch files of dir in numeric index order with their line
// counts.
func Files(dir string) ([]batch.File, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+batch.FileExt))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return fileIndex(matches[i]) < fileIndex(matches[j])
	})

	files := make([]batch.File, 0, len(matches))
	for _, m := range matches {
		n, err := countLines(m)
		if err != nil {
			return nil, err
		}
		files = append(files, batch.File{Path: m, Lines: n})
	}
	return files, nil
}

// fileIndex parses "<n>.dat"; unparsable names sort last.
func fileIndex(path string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(filepath.Base(path), batch.FileExt))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, 1024*1024)
	n := 0
	for {
		c, err := f.Read(buf)
		n += bytes.Count(buf[:c], []byte{'\n'})
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("count lines of %s: %w", path, err)
		}
	}
}

// Command builds the scheduler invocation for one batch file. Array indices
// are zero-based, so a file of n lines maps to tasks 0..n-1.
func Command(o Options, file batch.File) []string {
	argv := []string{o.sbatch()}
	if o.Constraint != "" {
		argv = append(argv, "--constraint="+o.Constraint)
	}
	if o.Exclusive {
		argv = append(argv, "--exclusive")
	}
	return append(argv,
		"--array", fmt.Sprintf("0-%d", file.Lines-1),
		"--partition", o.Partition,
		o.Script,
		file.Path,
	)
}

func (o Options) sbatch() string {
	if o.Sbatch == "" {
		return "sbatch"
	}
	return o.Sbatch
}

// Submit stages a results directory and submits every non-empty batch file,
// pausing between submissions. A dry run only reports what would happen.
func Submit(ctx context.Context, o Options) (*Result, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	if o.Runner == nil {
		o.Runner = execRunner
	}
	if o.Now == nil {
		o.Now = time.Now
	}

	files, err := Files(o.BatchDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoBatches, o.BatchDir)
	}

	script, err := filepath.Abs(o.Script)
	if err != nil {
		return nil, err
	}
	o.Script = script

	res := &Result{ResultsDir: resultsDir(o)}
	if !o.DryRun {
		if err := stage(o, res.ResultsDir); err != nil {
			return res, err
		}
	}

	first := true
	for _, f := range files {
		if f.Lines == 0 {
			o.Log.WithField("file", f.Path).Warn("skipping empty batch file")
			res.Skipped = append(res.Skipped, f.Path)
			continue
		}
		if abs, err := filepath.Abs(f.Path); err == nil {
			f.Path = abs
		}
		if !first && !o.DryRun {
			if err := sleep(ctx, o.Wait); err != nil {
				return res, err
			}
		}
		first = false

		sub := Submission{File: f.Path, Lines: f.Lines, Args: Command(o, f)}
		o.Log.WithFields(logrus.Fields{"file": filepath.Base(f.Path), "tasks": f.Lines}).Debug(strings.Join(sub.Args, " "))
		if !o.DryRun {
			out, err := o.Runner(ctx, res.ResultsDir, sub.Args)
			sub.Output = strings.TrimSpace(string(out))
			if err != nil {
				res.Submissions = append(res.Submissions, sub)
				return res, fmt.Errorf("submit %s: %w", f.Path, err)
			}
		}
		res.Submissions = append(res.Submissions, sub)
	}
	return res, nil
}

// resultsDir is <root>/<timestamp>_<partition>_<batch dir name>.
func resultsDir(o Options) string {
	root := o.ResultsRoot
	if root == "" {
		root = "results"
	}
	name := fmt.Sprintf("%s_%s_%s", o.Now().Format("2006-01-02_15-04-05"), o.Partition, filepath.Base(filepath.Clean(o.BatchDir)))
	return filepath.Join(root, name)
}

// stage lays out the results directory the array jobs run in: json and
// valgrind subdirectories, the run manifest, a copy of the batch directory
// and the partition name.
func stage(o Options, dir string) error {
	for _, sub := range []string{"json", "valgrind"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("stage results: %w", err)
		}
	}
	src := filepath.Join(o.BatchDir, manifest.FileName)
	if _, err := os.Stat(src); err == nil {
		if err := copyFile(src, filepath.Join(dir, manifest.FileName)); err != nil {
			return err
		}
	}
	if err := copyDir(o.BatchDir, filepath.Join(dir, filepath.Base(filepath.Clean(o.BatchDir)))); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "partition"), []byte(o.Partition+"\n"), 0o644)
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func execRunner(ctx context.Context, dir string, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
