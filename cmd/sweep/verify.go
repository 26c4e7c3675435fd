package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkoosis/sweep/internal/dispatch"
	"github.com/dkoosis/sweep/internal/ui"
)

var errIncomplete = errors.New("results are incomplete")

func (a *app) verifyCommand() *cobra.Command {
	var csv string
	cmd := &cobra.Command{
		Use:   "verify RESULTS_DIR",
		Short: "Compare collected samples with the run manifest",
		Long: `Read job_details.json from RESULTS_DIR and count the result rows of the
CSV it names. Exits non-zero when samples are missing.`,
		Args: exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := dispatch.Verify(args[0], csv)
			if err != nil {
				return err
			}
			status := ui.StatusOK
			if !v.Complete() {
				status = ui.StatusFail
			}
			a.printer.Summary("verify", []ui.Row{
				{Key: "run id", Value: v.Manifest.RunID},
				{Key: "csv", Value: v.CSV},
				{Key: "expected", Value: ui.Count(v.Expected)},
				{Key: "actual", Value: ui.Count(v.Actual)},
				{Key: "missing", Value: ui.Count(v.Missing()), Status: status},
			})
			if !v.Complete() {
				return fmt.Errorf("%w: %s", errIncomplete, v.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csv, "csv", "", "results CSV (default: the output named in the manifest)")
	return cmd
}
