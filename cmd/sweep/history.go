package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkoosis/sweep/internal/config"
	"github.com/dkoosis/sweep/internal/ui"
)

func (a *app) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent dispatches",
		Args:  exactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			if limit <= 0 {
				return usageErrorf("--limit must be positive, got %d", limit)
			}
			store, err := a.openHistory(true)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				a.printer.Mutedf("no runs recorded; enable with history: true in %s", config.FileName)
				return nil
			}
			rows := make([]ui.Row, 0, len(runs))
			for _, r := range runs {
				status := ui.StatusOK
				if r.ExitCode != 0 {
					status = ui.StatusFail
				}
				rows = append(rows, ui.Row{
					Key: r.Started.Local().Format(time.DateTime),
					Value: fmt.Sprintf("%-5s %s jobs  %d failed  %s  %s",
						r.Kind, ui.Count(r.Jobs), r.FailedJobs, r.Duration.Round(time.Second), r.Location),
					Status: status,
				})
			}
			a.printer.Summary("recent runs", rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}
