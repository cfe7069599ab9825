package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/banshee-data/voxlabel/internal/config"
	"github.com/banshee-data/voxlabel/internal/fsutil"
	"github.com/banshee-data/voxlabel/internal/monitoring"
	"github.com/banshee-data/voxlabel/internal/truth"
)

// app carries what every subcommand shares.
type app struct {
	fs     fsutil.FileSystem
	stdout io.Writer
	stderr io.Writer

	diag  bool
	trace bool
	quiet bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{fs: fsutil.OSFileSystem{}, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:          "supera",
		Short:        "Voxelize and label particle-detector simulation events",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.setupLogging()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().BoolVar(&a.diag, "diag", false, "Write diagnostic logs to stderr")
	root.PersistentFlags().BoolVar(&a.trace, "trace", false, "Write per-deposit trace logs to stderr")
	root.PersistentFlags().BoolVar(&a.quiet, "quiet", false, "Suppress warnings and errors from the ops log")

	root.AddCommand(
		a.labelCmd(),
		a.verifyCmd(),
		a.exportCmd(),
		a.runsCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) setupLogging() {
	w := monitoring.LogWriters{Ops: a.stderr}
	if a.quiet {
		w.Ops = nil
	}
	if a.diag {
		w.Diag = a.stderr
	}
	if a.trace {
		w.Trace = a.stderr
	}
	monitoring.SetLogWriters(w)
}

// loadRunConfig returns the config at path, or the default regression
// settings when path is empty.
func (a *app) loadRunConfig(path string) (config.RunConfig, error) {
	if path == "" {
		return *config.DefaultRunConfig(), nil
	}
	rc, err := config.LoadRunConfig(a.fs, path)
	if err != nil {
		return config.RunConfig{}, err
	}
	return *rc, nil
}

func (a *app) loadEvents(path string) ([]*truth.RawEvent, error) {
	events, err := truth.LoadEvents(a.fs, path)
	if err != nil {
		return nil, err
	}
	out := make([]*truth.RawEvent, len(events))
	for i := range events {
		out[i] = &events[i]
	}
	return out, nil
}
