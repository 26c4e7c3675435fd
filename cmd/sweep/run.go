package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkoosis/sweep/internal/dispatch"
	"github.com/dkoosis/sweep/internal/history"
	"github.com/dkoosis/sweep/internal/job"
	"github.com/dkoosis/sweep/internal/ui"
)

// errJobsFailed is returned after a run in which at least one job failed.
// The failures themselves are logged as they happen.
var errJobsFailed = errors.New("jobs failed")

type runFlags struct {
	exec         string
	jobs         string
	methods      []string
	runs         int
	thresholds   []string
	output       string
	slurm        string
	maxBatch     int
	progress     bool
	base         bool
	callgrind    bool
	cachegrind   bool
	massif       bool
	valgrind     string
	valgrindOpts []string
	combine      bool
	partition    string
	metricsFile  string
}

func (a *app) runCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run DATA_DIR",
		Short: "Run a sweep locally or write it to batch files",
		Long: `Enumerate every input file under DATA_DIR against each method and
threshold. Without --slurm the commands run on local workers; with --slurm
they are written to numbered batch files for "sweep submit".`,
		Example: `  sweep run data/ -e ./QST -j CPU -t 2,64,2 --callgrind
  sweep run data/ -e ./QST -m qsort_c,std_sort -r 5 -s slurm.d`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := a.request(cmd, args[0], f)
			return a.dispatch(cmd, req)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.exec, "exec", "e", "", "benchmark executable")
	fs.StringVarP(&f.jobs, "jobs", "j", "", `local workers, or "CPU" for all CPUs but one`)
	fs.StringSliceVarP(&f.methods, "methods", "m", nil, "methods to run (default: all the executable reports)")
	fs.IntVarP(&f.runs, "runs", "r", 0, "repetitions per input")
	fs.StringArrayVarP(&f.thresholds, "threshold", "t", nil, "threshold value or min,max[,step]; repeatable")
	fs.StringVarP(&f.output, "output", "o", "", "CSV file the executable appends results to")
	fs.StringVarP(&f.slurm, "slurm", "s", "", "write batch files to this directory instead of running")
	fs.IntVar(&f.maxBatch, "max-batch", 0, "commands per batch file")
	fs.BoolVarP(&f.progress, "progress", "p", false, "show a progress bar instead of echoing commands")
	fs.BoolVar(&f.base, "base", false, "plain timed runs (default unless a profiler mode is given)")
	fs.BoolVar(&f.callgrind, "callgrind", false, "also run under callgrind")
	fs.BoolVar(&f.cachegrind, "cachegrind", false, "also run under cachegrind")
	fs.BoolVar(&f.massif, "massif", false, "also run under massif")
	fs.StringVar(&f.valgrind, "valgrind", "", "profiler executable")
	fs.StringArrayVar(&f.valgrindOpts, "valgrind-opt", nil, "extra profiler option; repeatable")
	fs.BoolVar(&f.combine, "combine-modes", false, "one job per tuple carrying every mode")
	fs.StringVar(&f.partition, "partition", "", "cluster partition descriptor (JSON) recorded in the manifest")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	return cmd
}

// request merges flags over the resolved configuration.
func (a *app) request(cmd *cobra.Command, dataDir string, f runFlags) dispatch.Request {
	cfg := a.cfg
	changed := cmd.Flags().Changed
	pick := func(flag string, set, fallback string) string {
		if changed(flag) {
			return set
		}
		return fallback
	}

	req := dispatch.Request{
		DataDir:      dataDir,
		Exec:         pick("exec", f.exec, cfg.Exec),
		Methods:      cfg.Methods,
		Runs:         cfg.Runs,
		Thresholds:   f.thresholds,
		Output:       f.output,
		BatchDir:     f.slurm,
		MaxBatch:     cfg.MaxBatch,
		Progress:     f.progress,
		Combine:      f.combine,
		Profiler:     pick("valgrind", f.valgrind, cfg.Valgrind),
		ProfilerOpts: cfg.ValgrindOpts,
		Partition:    f.partition,
		MetricsFile:  f.metricsFile,
		InputExts:    cfg.InputExts,
		ResultsRoot:  cfg.ResultsRoot,
		Args:         a.args,
	}
	// The configured worker count only applies to local runs; an explicit
	// --jobs with --slurm is rejected by Prepare.
	switch {
	case changed("jobs"):
		req.Jobs = f.jobs
	case f.slurm == "":
		req.Jobs = cfg.Jobs
	}
	if changed("methods") {
		req.Methods = f.methods
	}
	if changed("runs") {
		req.Runs = f.runs
	}
	if changed("max-batch") {
		req.MaxBatch = f.maxBatch
	}
	if changed("valgrind-opt") {
		req.ProfilerOpts = f.valgrindOpts
	}
	for mode, on := range map[job.Mode]bool{
		job.ModeBase:       f.base,
		job.ModeCallgrind:  f.callgrind,
		job.ModeCachegrind: f.cachegrind,
		job.ModeMassif:     f.massif,
	} {
		if on {
			req.Modes = append(req.Modes, mode)
		}
	}
	return req
}

func (a *app) dispatch(cmd *cobra.Command, req dispatch.Request) error {
	store, err := a.openHistory(a.cfg.History)
	if err != nil {
		a.log.WithError(err).Warn("run history disabled")
		store = nil
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	env := dispatch.Env{
		Stdout:          a.stdout,
		Stderr:          a.stderr,
		Log:             a.log,
		History:         store,
		Now:             a.now,
		ExecutorOptions: a.executorOptions,
	}
	plan, err := dispatch.Prepare(cmd.Context(), req, env)
	if err != nil {
		return err
	}
	sum, err := plan.Run(cmd.Context())
	if sum != nil {
		a.printSummary(sum)
	}
	if err != nil && sum != nil && sum.FailedJobs > 0 {
		return fmt.Errorf("%w: %d of %d", errJobsFailed, sum.FailedJobs, sum.Jobs)
	}
	return err
}

// openHistory opens the run history when enabled. A nil store means none.
func (a *app) openHistory(enabled bool) (*history.Store, error) {
	if !enabled {
		return nil, nil
	}
	path := a.cfg.HistoryPath
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return history.Open(path)
}

func (a *app) printSummary(sum *dispatch.Summary) {
	rows := []ui.Row{
		{Key: "run id", Value: sum.RunID},
		{Key: "jobs", Value: ui.Count(sum.Jobs)},
		{Key: "commands", Value: ui.Count(sum.Commands)},
		{Key: "expected rows", Value: ui.Count(sum.ExpectedRows)},
		{Key: "output", Value: sum.Output},
		{Key: "manifest", Value: sum.ManifestPath},
	}
	if sum.Kind == dispatch.Batch {
		lines := 0
		for _, f := range sum.BatchFiles {
			lines += f.Lines
		}
		rows = append(rows,
			ui.Row{Key: "batch files", Value: ui.Count(len(sum.BatchFiles))},
			ui.Row{Key: "batch lines", Value: ui.Count(lines), Status: ui.StatusOK},
		)
		a.printer.Summary("batch written", rows)
		return
	}

	failed := ui.Row{Key: "failed jobs", Value: ui.Count(sum.FailedJobs), Status: ui.StatusOK}
	if sum.FailedJobs > 0 {
		failed.Status = ui.StatusFail
	}
	rows = append(rows,
		ui.Row{Key: "workers", Value: ui.Count(sum.Workers)},
		ui.Row{Key: "duration", Value: sum.Duration.Round(time.Millisecond).String()},
		failed,
	)
	a.printer.Summary("local run", rows)
}
