// Package batch labels many events concurrently. Each worker owns one
// driver, since a driver holds per-event state.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/voxlabel/internal/driver"
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/monitoring"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// NewDriver builds a configured driver for one worker.
type NewDriver func() (*driver.Driver, error)

// Result is the outcome for one input event.
type Result struct {
	Index   int
	EventID string
	Meta    voxel.ImageMeta
	Label   *label.Label
	Err     error
}

// Options controls a batch run.
type Options struct {
	// Workers is the number of concurrent drivers; zero means GOMAXPROCS.
	Workers int
	Log     *monitoring.Logger

	// OnResult, if set, is called once per event from the worker that
	// produced it, so calls may be concurrent. Returning an error cancels
	// the run.
	OnResult func(Result) error
}

// Summary counts the outcomes of a run.
type Summary struct {
	Events int
	Failed int
}

// Summarize counts failed results.
func Summarize(results []Result) Summary {
	s := Summary{Events: len(results)}
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
		}
	}
	return s
}

// Run labels events and returns one result per event in input order.
// Per-event failures are recorded in the result; the returned error is
// reserved for driver construction failures, OnResult errors and context
// cancellation.
func Run(ctx context.Context, events []*truth.RawEvent, newDriver NewDriver, opts Options) ([]Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(events) {
		workers = len(events)
	}
	log := opts.Log
	if log == nil {
		log = monitoring.NewLogger("batch", monitoring.LevelWarning)
	}

	results := make([]Result, len(events))
	var next atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			d, err := newDriver()
			if err != nil {
				return fmt.Errorf("worker driver: %w", err)
			}
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				i := int(next.Add(1) - 1)
				if i >= len(events) {
					return nil
				}
				r := process(d, i, events[i])
				if r.Err != nil {
					log.Warnf("event %d (%s): %v", i, r.EventID, r.Err)
				} else {
					log.Debugf("event %d (%s): %d particles, %d voxels", i, r.EventID, len(r.Label.Particles), r.Label.Energy.Len())
				}
				results[i] = r
				if opts.OnResult != nil {
					if err := opts.OnResult(r); err != nil {
						return err
					}
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func process(d *driver.Driver, i int, ev *truth.RawEvent) Result {
	r := Result{Index: i}
	if ev == nil {
		r.Err = fmt.Errorf("event %d is nil", i)
		return r
	}
	r.EventID = ev.ID
	r.Meta, r.Label, r.Err = d.Process(ev)
	return r
}
