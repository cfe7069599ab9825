package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/voxlabel/internal/driver"
	"github.com/banshee-data/voxlabel/internal/testevents"
	"github.com/banshee-data/voxlabel/internal/verify"
)

func (a *app) verifyCmd() *cobra.Command {
	var (
		names  []string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the built-in test events and compare against expected labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(names) == 0 {
				names = testevents.Names()
			}
			opts := verify.DefaultOptions()
			opts.Strict = strict

			failed := 0
			for _, name := range names {
				c, ok := testevents.Get(name)
				if !ok {
					return fmt.Errorf("unknown test event %q (known: %v)", name, testevents.Names())
				}
				d := driver.New(nil)
				if err := d.Configure(c.Config); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				meta, l, err := d.Process(c.Event)
				if err != nil {
					failed++
					fmt.Fprintf(a.stdout, "%s: FAILED: %v\n", name, err)
					continue
				}
				report := verify.CompareMeta(c.Meta, meta, opts)
				report.Diffs = append(report.Diffs, verify.CompareLabels(c.Label, l, opts).Diffs...)
				if !report.OK() {
					failed++
				}
				fmt.Fprintf(a.stdout, "%s: %s\n", name, report)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d test events differ", failed, len(names))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&names, "event", nil, "Test event to run (repeatable; default: all)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Compare voxel values one by one instead of counts and sums")
	return cmd
}
