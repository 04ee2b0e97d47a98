package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"librabench/internal/config"
	"librabench/internal/runlog"
)

func newHistoryCommand(defaults config.Defaults) *cobra.Command {
	var historyDB string
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past runs, or the invocations of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := runlog.Open(historyDB)
			if err != nil {
				return configErr(err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if len(args) == 1 {
				recs, err := store.Invocations(ctx, args[0])
				if err != nil {
					return configErr(err)
				}
				if len(recs) == 0 {
					fmt.Fprintf(out, "no invocations recorded for run %s\n", args[0])
					return nil
				}
				for _, rec := range recs {
					fmt.Fprintf(out, "%3d  %-40s %-16s exit=%-3d %6dms  %s\n",
						rec.Seq, rec.Name, rec.Outcome, rec.ExitCode, rec.DurationMS, rec.LogPath)
				}
				return nil
			}

			runs, err := store.RecentRuns(ctx, limit)
			if err != nil {
				return configErr(err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs recorded")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-20s %-10s total=%-3d failed=%-3d skipped=%-3d %s\n",
					r.ID, r.Suite, r.Status, r.Total, r.Failed, r.Skipped,
					r.StartedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&historyDB, "history-db", defaults.HistoryDB, "run history SQLite database")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}
