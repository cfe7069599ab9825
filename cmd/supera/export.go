package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/voxlabel/internal/export"
)

func (a *app) exportCmd() *cobra.Command {
	var (
		eventsPath string
		configPath string
		outDir     string
		pkg        string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Label events and write them as Go test fixtures",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, events, results, err := a.labelEvents(cmd.Context(), eventsPath, configPath, 0)
			if err != nil {
				return err
			}
			for i, r := range results {
				if r.Err != nil {
					return fmt.Errorf("event %s: %w", r.EventID, r.Err)
				}
				path, err := export.WriteGoFixture(a.fs, outDir, pkg, export.Fixture{
					Event: events[i],
					Meta:  r.Meta,
					Label: r.Label,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventsPath, "events", "", "Path to events JSON file")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to run config JSON (default: regression settings)")
	cmd.Flags().StringVar(&outDir, "out", ".", "Output directory for generated files")
	cmd.Flags().StringVar(&pkg, "package", "fixtures", "Package name of the generated files")
	_ = cmd.MarkFlagRequired("events")
	return cmd
}
