package main

import (
	"fmt"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/dkoosis/sweep/internal/submit"
	"github.com/dkoosis/sweep/internal/ui"
)

func (a *app) submitCommand() *cobra.Command {
	var (
		partition   string
		script      string
		wait        time.Duration
		dryRun      bool
		exclusive   bool
		constraint  string
		resultsRoot string
	)
	cmd := &cobra.Command{
		Use:   "submit BATCH_DIR",
		Short: "Submit batch files as Slurm array jobs",
		Long: `Submit every <n>.dat file of BATCH_DIR, in index order, as one sbatch
array job whose task i runs line i of the file. The batch directory and its
run manifest are staged into a fresh results directory first.`,
		Example: `  sweep submit slurm.d --partition teton
  sweep submit slurm.d --partition moran --exclusive --dry-run`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			o := submit.Options{
				BatchDir:    args[0],
				Partition:   partition,
				Partitions:  a.cfg.Partitions,
				Script:      a.cfg.SbatchScript,
				Sbatch:      a.cfg.Sbatch,
				Exclusive:   exclusive,
				Constraint:  constraint,
				Wait:        a.cfg.SubmitWait,
				ResultsRoot: a.cfg.ResultsRoot,
				DryRun:      dryRun,
				Runner:      a.submitRunner,
				Log:         a.log,
				Now:         a.now,
			}
			if changed("script") {
				o.Script = script
			}
			if changed("wait") {
				o.Wait = wait
			}
			if changed("results-root") {
				o.ResultsRoot = resultsRoot
			}
			if err := o.Validate(); err != nil {
				return usageError{err}
			}

			res, err := submit.Submit(cmd.Context(), o)
			if res != nil {
				a.printSubmission(res, dryRun)
			}
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&partition, "partition", "", "Slurm partition to submit to")
	fs.StringVar(&script, "script", "", "sbatch script run by every array task")
	fs.DurationVar(&wait, "wait", 0, "pause between submissions")
	fs.BoolVar(&dryRun, "dry-run", false, "print the sbatch commands without running them")
	fs.BoolVar(&exclusive, "exclusive", false, "request exclusive nodes")
	fs.StringVar(&constraint, "constraint", "", "node feature constraint")
	fs.StringVar(&resultsRoot, "results-root", "", "directory receiving the staged results directory")
	return cmd
}

func (a *app) printSubmission(res *submit.Result, dryRun bool) {
	for _, s := range res.Submissions {
		if dryRun {
			a.printer.Mutedf("%s", shellquote.Join(s.Args...))
			continue
		}
		if s.Output != "" {
			fmt.Fprintln(a.stdout, s.Output)
		}
	}
	title := "submitted"
	if dryRun {
		title = "dry run"
	}
	a.printer.Summary(title, []ui.Row{
		{Key: "results", Value: res.ResultsDir},
		{Key: "array jobs", Value: ui.Count(len(res.Submissions)), Status: ui.StatusOK},
		{Key: "tasks", Value: ui.Count(res.Jobs())},
		{Key: "skipped files", Value: ui.Count(len(res.Skipped))},
	})
}
