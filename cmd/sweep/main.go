// Command sweep dispatches benchmark sweeps: it enumerates every combination
// of input file, method, threshold and execution mode, then either runs the
// resulting commands on local workers or writes them to batch files for a
// cluster scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dkoosis/sweep/internal/config"
	"github.com/dkoosis/sweep/internal/dispatch"
	"github.com/dkoosis/sweep/internal/executor"
	"github.com/dkoosis/sweep/internal/logging"
	"github.com/dkoosis/sweep/internal/submit"
	"github.com/dkoosis/sweep/internal/ui"
	"github.com/dkoosis/sweep/internal/version"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks bad flags, arguments and configuration.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

func usageErrorf(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the exit code, so tests can drive it
// without os.Exit.
func run(args []string, stdout, stderr io.Writer) int {
	return newApp(stdout, stderr).execute(args)
}

type app struct {
	stdout io.Writer
	stderr io.Writer
	lookup config.LookupFunc

	configPath string
	debug      bool
	noColor    bool

	cfg     *config.AppConfig
	log     *logrus.Logger
	printer *ui.Printer
	args    []string

	// Test hooks.
	executorOptions []executor.Option
	submitRunner    submit.Runner
	now             func() time.Time
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, lookup: os.LookupEnv, now: time.Now}
}

func (a *app) execute(args []string) int {
	a.args = append([]string{"sweep"}, args...)
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return exitOK
	}
	noColor := a.cfg == nil || a.cfg.NoColor
	ui.NewPrinter(a.stderr, noColor).Errorf("%v", err)

	var ue usageError
	if errors.As(err, &ue) || dispatch.IsConfigError(err) {
		return exitUsage
	}
	return exitFailure
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "sweep",
		Short: "Dispatch benchmark sweeps locally or to a cluster",
		Long: `sweep enumerates every combination of input file, method, threshold and
execution mode for a benchmark executable and runs the resulting commands on
local workers, or writes them to batch files for a Slurm array job.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "configuration file (default .sweep.yaml)")
	pf.BoolVar(&a.debug, "debug", false, "verbose logging")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		a.runCommand(),
		a.submitCommand(),
		a.verifyCommand(),
		a.historyCommand(),
		a.versionCommand(),
	)
	return root
}

// setup resolves configuration: flags > environment > file > defaults.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return usageError{err}
	}
	if err := config.ApplyEnv(cfg, a.lookup); err != nil {
		return usageError{err}
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = a.debug
	}
	if cmd.Flags().Changed("no-color") {
		cfg.NoColor = a.noColor
	}
	a.cfg = cfg
	a.log = logging.New(logging.Options{Out: a.stderr, Debug: cfg.Debug, NoColor: cfg.NoColor})
	a.printer = ui.NewPrinter(a.stdout, cfg.NoColor)
	if cfg.Path != "" {
		a.log.WithField("path", cfg.Path).Debug("loaded configuration")
	}
	return nil
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.String())
		},
	}
}
