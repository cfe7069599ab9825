package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/voxlabel/internal/batch"
	"github.com/banshee-data/voxlabel/internal/config"
	"github.com/banshee-data/voxlabel/internal/driver"
	"github.com/banshee-data/voxlabel/internal/monitoring"
	"github.com/banshee-data/voxlabel/internal/storage/sqlite"
	"github.com/banshee-data/voxlabel/internal/truth"
)

func driverFactory(rc config.RunConfig) batch.NewDriver {
	return func() (*driver.Driver, error) {
		d := driver.New(nil)
		if err := d.Configure(rc); err != nil {
			return nil, err
		}
		return d, nil
	}
}

// labelEvents runs the batch with the configured worker count.
func (a *app) labelEvents(ctx context.Context, eventsPath, configPath string, workers int) (config.RunConfig, []*truth.RawEvent, []batch.Result, error) {
	rc, err := a.loadRunConfig(configPath)
	if err != nil {
		return rc, nil, nil, err
	}
	events, err := a.loadEvents(eventsPath)
	if err != nil {
		return rc, nil, nil, err
	}
	if workers <= 0 {
		workers = rc.GetWorkers()
	}
	results, err := batch.Run(ctx, events, driverFactory(rc), batch.Options{
		Workers: workers,
		Log:     monitoring.NewLogger("batch", monitoring.LevelInfo),
	})
	return rc, events, results, err
}

func (a *app) labelCmd() *cobra.Command {
	var (
		eventsPath string
		configPath string
		dbPath     string
		workers    int
		dump       bool
	)
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Label events and print or store the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rc, _, results, err := a.labelEvents(ctx, eventsPath, configPath, workers)
			if err != nil {
				return err
			}

			var store *sqlite.Store
			var runID string
			if dbPath != "" {
				store, err = sqlite.Open(dbPath)
				if err != nil {
					return err
				}
				defer store.Close()
				run, err := store.CreateRun(ctx, rc)
				if err != nil {
					return err
				}
				runID = run.RunID
				fmt.Fprintf(a.stdout, "run %s\n", runID)
			}

			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(a.stdout, "%s: FAILED: %v\n", r.EventID, r.Err)
					continue
				}
				if dump {
					fmt.Fprint(a.stdout, r.Meta.Dump())
					fmt.Fprint(a.stdout, r.Label.Dump())
				} else {
					fmt.Fprintf(a.stdout, "%s: %d particles, %d voxels, energy %.6g, dropped %d\n",
						r.EventID, len(r.Label.Particles), r.Label.Energy.Len(), r.Label.TotalEnergy(), r.Label.DroppedDeposits)
				}
				if store != nil {
					if err := store.SaveEvent(ctx, runID, r.Label); err != nil {
						return err
					}
				}
			}

			if s := batch.Summarize(results); s.Failed > 0 {
				return fmt.Errorf("%d of %d events failed", s.Failed, s.Events)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventsPath, "events", "", "Path to events JSON file")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to run config JSON (default: regression settings)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite label store to save results into")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent workers (default: config value or GOMAXPROCS)")
	cmd.Flags().BoolVar(&dump, "dump", false, "Print full grid and label dumps")
	_ = cmd.MarkFlagRequired("events")
	return cmd
}
