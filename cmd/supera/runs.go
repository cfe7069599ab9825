package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/voxlabel/internal/storage/sqlite"
)

func (a *app) runsCmd() *cobra.Command {
	var (
		dbPath string
		runID  string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored labeling runs, or the events of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := cmd.Context()

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if runID != "" {
				if _, err := store.GetRun(ctx, runID); err != nil {
					return err
				}
				events, err := store.ListEvents(ctx, runID)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "EVENT\tPARTICLES\tVOXELS\tENERGY\tDROPPED")
				for _, e := range events {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%.6g\t%d\n", e.EventID, e.NumParticles, e.NumVoxels, e.TotalEnergy, e.DroppedDeposits)
				}
				return nil
			}

			runs, err := store.ListRuns(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "RUN\tBBOX\tLABEL\tEVENTS\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.RunID, r.BBoxAlgorithm, r.LabelAlgorithm, r.NumEvents, r.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite label store")
	cmd.Flags().StringVar(&runID, "run", "", "List the events of this run")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
