// Package dispatch turns a validated request into either a local run or a
// directory of batch files. Every check happens in Prepare, before anything
// is written.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dkoosis/sweep/internal/batch"
	"github.com/dkoosis/sweep/internal/bench"
	"github.com/dkoosis/sweep/internal/executor"
	"github.com/dkoosis/sweep/internal/factory"
	"github.com/dkoosis/sweep/internal/history"
	"github.com/dkoosis/sweep/internal/job"
	"github.com/dkoosis/sweep/internal/manifest"
	"github.com/dkoosis/sweep/internal/metrics"
	"github.com/dkoosis/sweep/internal/progress"
)

// CPUJobs requests one worker per CPU, leaving one CPU free.
const CPUJobs = "CPU"

// timestampLayout names output files and results directories.
const timestampLayout = "2006-01-02_15-04-05"

// Kind is where the jobs run.
type Kind string

const (
	Local Kind = "local"
	Batch Kind = "batch"
)

// Request is a dispatch as given on the command line.
type Request struct {
	DataDir string
	Exec    string
	// Jobs is a worker count or CPUJobs. Empty means one worker.
	Jobs         string
	Methods      []string
	Runs         int
	Thresholds   []string
	Output       string
	BatchDir     string
	MaxBatch     int
	Progress     bool
	Modes        []job.Mode
	Combine      bool
	Profiler     string
	ProfilerOpts []string
	Partition    string
	MetricsFile  string
	InputExts    []string
	ResultsRoot  string
	// Args is the command line recorded in the manifest.
	Args []string
}

// Env carries the collaborators of a dispatch.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Log    logrus.FieldLogger
	// History records finished runs when enabled.
	History *history.Store
	Now     func() time.Time
	// Probe and LookupTool default to the bench package.
	Probe      func(ctx context.Context, path string) (*bench.Info, error)
	LookupTool func(name string) (string, error)
	// ExecutorOptions are appended to the executor's options.
	ExecutorOptions []executor.Option
	// TTY forces the progress display mode.
	TTY *bool
}

func (e *Env) defaults() {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.Log == nil {
		e.Log = logrus.StandardLogger()
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Probe == nil {
		e.Probe = bench.Probe
	}
	if e.LookupTool == nil {
		e.LookupTool = bench.RequireTool
	}
}

// Plan is a validated dispatch ready to run.
type Plan struct {
	Kind       Kind
	Workers    int
	Output     string
	ResultsDir string
	BatchDir   string
	MaxBatch   int
	Info       *bench.Info
	Work       *factory.Plan

	req      Request
	env      Env
	manifest *manifest.Manifest
}

// Summary describes a finished dispatch.
type Summary struct {
	Kind           Kind
	RunID          string
	Jobs           int
	Commands       int
	ExpectedRows   int
	FailedJobs     int
	FailedCommands int
	Workers        int
	Duration       time.Duration
	Output         string
	ManifestPath   string
	BatchFiles     []batch.File
}

// Prepare validates req and enumerates its jobs. It reads the data
// directory and probes the executable but writes nothing; every error it
// returns is a *ConfigError.
func Prepare(ctx context.Context, req Request, env Env) (*Plan, error) {
	env.defaults()
	p := &Plan{req: req, env: env, Kind: Local}

	if req.BatchDir != "" {
		p.Kind = Batch
		if req.Jobs != "" {
			return nil, configErrorf("--jobs and --slurm are mutually exclusive")
		}
		if req.MaxBatch <= 0 {
			return nil, configErrorf("max batch size must be positive, got %d", req.MaxBatch)
		}
		if err := batch.CheckDir(req.BatchDir); err != nil {
			return nil, configError(err)
		}
		p.BatchDir = req.BatchDir
		p.MaxBatch = req.MaxBatch
	} else {
		workers, err := ParseJobs(req.Jobs)
		if err != nil {
			return nil, configError(err)
		}
		p.Workers = workers
	}

	if req.Runs <= 0 {
		return nil, configErrorf("runs must be positive, got %d", req.Runs)
	}
	thresholds, err := factory.ParseThresholds(req.Thresholds)
	if err != nil {
		return nil, configError(err)
	}
	if st, err := os.Stat(req.DataDir); err != nil || !st.IsDir() {
		return nil, configErrorf("data directory %q not found", req.DataDir)
	}
	if req.Partition != "" && !jsonValid(req.Partition) {
		return nil, configErrorf("--partition must be JSON, got %q", req.Partition)
	}

	execPath, err := bench.Resolve(req.Exec)
	if err != nil {
		return nil, configError(err)
	}

	modes := job.NormalizeModes(req.Modes)
	profiler := req.Profiler
	if profiler == "" {
		profiler = job.DefaultProfiler
	}
	if hasProfiled(modes) && p.Kind == Local {
		if profiler, err = env.LookupTool(profiler); err != nil {
			return nil, configError(err)
		}
	}

	if p.Info, err = env.Probe(ctx, execPath); err != nil {
		return nil, configError(err)
	}
	methods := req.Methods
	if len(methods) == 0 {
		methods = p.Info.Methods()
	} else if err := p.Info.Validate(methods); err != nil {
		return nil, configError(err)
	}

	now := env.Now()
	p.Output, p.ResultsDir = outputPaths(req, p.Kind, now)
	if p.Kind == Local {
		if _, err := os.Stat(filepath.Join(p.ResultsDir, manifest.FileName)); err == nil {
			return nil, configErrorf("%s already holds a run manifest", p.ResultsDir)
		}
	}

	expansion := factory.PerMode
	if req.Combine {
		expansion = factory.Combined
	}
	p.Work, err = factory.Build(factory.Options{
		DataDir:          req.DataDir,
		Exec:             execPath,
		Methods:          methods,
		ThresholdMethods: p.Info.ThresholdMethods,
		Thresholds:       thresholds,
		Runs:             req.Runs,
		Output:           p.Output,
		Modes:            modes,
		Expansion:        expansion,
		InputExts:        req.InputExts,
		ProfileDir:       filepath.Join(filepath.Dir(p.Output), "valgrind"),
		Profiler:         profiler,
		ProfilerOpts:     req.ProfilerOpts,
	})
	if err != nil {
		return nil, configError(err)
	}
	if p.Work.Jobs == 0 {
		return nil, configErrorf("no input files under %s", req.DataDir)
	}
	// The executor never starts more workers than jobs; the manifest records
	// the count that actually runs.
	if p.Kind == Local {
		p.Workers = min(p.Workers, p.Work.Jobs)
	}

	concurrency := manifest.ClusterManaged()
	if p.Kind == Local {
		concurrency = manifest.Local(p.Workers)
	}
	p.manifest, err = manifest.New(manifest.Options{
		Args:        req.Args,
		Concurrency: concurrency,
		Runs:        req.Runs,
		Jobs:        p.Work.Jobs,
		Commands:    p.Work.Commands,
		Version:     p.Info.Version,
		Executable:  execPath,
		Output:      p.Output,
		Modes:       p.Work.Modes,
		DataDir:     req.DataDir,
		Partition:   req.Partition,
	})
	if err != nil {
		return nil, configError(err)
	}
	return p, nil
}

// ParseJobs resolves a worker count. CPUJobs means all CPUs but one.
func ParseJobs(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, nil
	}
	if strings.EqualFold(s, CPUJobs) {
		return max(runtime.NumCPU()-1, 1), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("jobs must be a positive integer or %s, got %q", CPUJobs, s)
	}
	return n, nil
}

// outputPaths picks the CSV sink and the directory receiving the manifest.
// Batch output stays relative: array tasks run inside their staged results
// directory.
func outputPaths(req Request, kind Kind, now time.Time) (output, resultsDir string) {
	stamp := now.Format(timestampLayout)
	switch {
	case req.Output != "":
		output = req.Output
	case kind == Batch:
		output = "output_" + stamp + ".csv"
	default:
		root := req.ResultsRoot
		if root == "" {
			root = "results"
		}
		host, _ := os.Hostname()
		output = filepath.Join(root, stamp+"_"+host, "output_"+stamp+".csv")
	}
	if kind == Batch {
		return output, req.BatchDir
	}
	if abs, err := filepath.Abs(output); err == nil {
		output = abs
	}
	return output, filepath.Dir(output)
}

func hasProfiled(modes []job.Mode) bool {
	for _, m := range modes {
		if m.Profiled() {
			return true
		}
	}
	return false
}

// Run executes the plan.
func (p *Plan) Run(ctx context.Context) (*Summary, error) {
	var (
		sum *Summary
		err error
	)
	if p.Kind == Batch {
		sum, err = p.emit()
	} else {
		sum, err = p.runLocal(ctx)
	}
	p.record(sum, err)
	return sum, err
}

func (p *Plan) summary() *Summary {
	return &Summary{
		Kind:         p.Kind,
		RunID:        p.manifest.RunID,
		Jobs:         p.Work.Jobs,
		Commands:     p.Work.Commands,
		ExpectedRows: p.manifest.ExpectedSamples(),
		Workers:      p.Workers,
		Output:       p.Output,
	}
}

func (p *Plan) emit() (*Summary, error) {
	start := time.Now()
	sum := p.summary()

	if err := batch.PrepareDir(p.BatchDir); err != nil {
		return sum, err
	}
	path, err := p.manifest.Write(p.BatchDir)
	if err != nil {
		return sum, err
	}
	sum.ManifestPath = path

	files, err := batch.Emit(p.BatchDir, p.Work.Queue, p.MaxBatch)
	sum.BatchFiles = files
	sum.Duration = time.Since(start)
	if err != nil {
		return sum, err
	}
	for _, f := range files {
		p.env.Log.WithField("lines", f.Lines).Info(f.Path)
	}
	if p.req.MetricsFile != "" {
		p.env.Log.Warn("--metrics-file is ignored for batch output")
	}
	return sum, nil
}

func (p *Plan) runLocal(ctx context.Context) (*Summary, error) {
	sum := p.summary()

	if err := os.MkdirAll(filepath.Join(p.ResultsDir, "valgrind"), 0o755); err != nil {
		return sum, fmt.Errorf("create results directory: %w", err)
	}
	path, err := p.manifest.Write(p.ResultsDir)
	if err != nil {
		return sum, err
	}
	sum.ManifestPath = path

	p.env.Log.WithFields(logrus.Fields{
		"jobs":    p.Work.Jobs,
		"workers": p.Workers,
	}).Infof("about to run %d commands", p.Work.Commands)

	var reporter progress.Reporter = progress.Nop{}
	if p.req.Progress {
		reporter = progress.New(progress.Options{Total: p.Work.Commands, Out: p.env.Stderr, TTY: p.env.TTY})
	}
	m := metrics.New()
	m.SetWorkers(p.Workers)

	opts := []executor.Option{
		executor.WithWorkers(p.Workers),
		executor.WithStdout(p.env.Stdout),
		executor.WithQuiet(p.req.Progress),
		executor.WithLogger(p.env.Log),
		executor.WithOnEvent(func(e executor.Event) {
			reporter.Observe(e)
			m.Observe(e)
		}),
	}
	opts = append(opts, p.env.ExecutorOptions...)

	res, runErr := executor.New(opts...).Run(ctx, p.Work.Queue)
	reporter.Close()

	sum.Workers = res.Workers
	sum.Duration = res.Duration()
	sum.FailedJobs = res.FailedJobs
	sum.FailedCommands = res.FailedCommands

	if p.req.MetricsFile != "" {
		if err := m.WriteTextfile(p.req.MetricsFile); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("write metrics: %w", err))
		}
	}
	return sum, runErr
}

func (p *Plan) record(sum *Summary, runErr error) {
	if p.env.History == nil || !p.env.History.Enabled() || sum == nil {
		return
	}
	location := p.ResultsDir
	exitCode := 0
	if runErr != nil {
		exitCode = 1
	}
	err := p.env.History.Record(history.Run{
		RunID:      sum.RunID,
		Started:    p.manifest.Started,
		Kind:       string(p.Kind),
		Command:    p.manifest.Command,
		Jobs:       sum.Jobs,
		Commands:   sum.Commands,
		FailedJobs: sum.FailedJobs,
		Duration:   sum.Duration,
		ExitCode:   exitCode,
		Location:   location,
	})
	if err != nil {
		p.env.Log.WithError(err).Warn("could not record run history")
	}
}
