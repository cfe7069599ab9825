package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/voxlabel/internal/config"
	"github.com/banshee-data/voxlabel/internal/driver"
	"github.com/banshee-data/voxlabel/internal/errs"
	"github.com/banshee-data/voxlabel/internal/testevents"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/verify"
)

func factory(rc config.RunConfig) NewDriver {
	return func() (*driver.Driver, error) {
		d := driver.New(nil)
		if err := d.Configure(rc); err != nil {
			return nil, err
		}
		return d, nil
	}
}

func cubeEvents(t *testing.T) (config.RunConfig, []testevents.Case) {
	t.Helper()
	var cases []testevents.Case
	for _, name := range []string{"single_deposit", "weighted_dedx", "muon_decay"} {
		c, ok := testevents.Get(name)
		require.True(t, ok)
		cases = append(cases, c)
	}
	// The cube cases share a grid, so one config serves all of them.
	return cases[2].Config, cases
}

func TestRunPreservesOrder(t *testing.T) {
	t.Parallel()
	for _, workers := range []int{1, 2, 8} {
		c, ok := testevents.Get("single_deposit")
		require.True(t, ok)
		events := make([]*truth.RawEvent, 20)
		for i := range events {
			ev := *c.Event
			ev.ID = string(rune('a' + i))
			events[i] = &ev
		}
		results, err := Run(context.Background(), events, factory(c.Config), Options{Workers: workers})
		require.NoError(t, err)
		require.Len(t, results, len(events))
		for i, r := range results {
			assert.Equal(t, i, r.Index)
			assert.Equal(t, events[i].ID, r.EventID)
			require.NoError(t, r.Err)
			assert.Equal(t, events[i].ID, r.Label.EventID)
		}
	}
}

func TestRunMatchesSequentialDriver(t *testing.T) {
	t.Parallel()
	rc, cases := cubeEvents(t)
	events := make([]*truth.RawEvent, len(cases))
	for i, c := range cases {
		events[i] = c.Event
	}
	results, err := Run(context.Background(), events, factory(rc), Options{Workers: 3})
	require.NoError(t, err)

	d := driver.New(nil)
	require.NoError(t, d.Configure(rc))
	for i, ev := range events {
		meta, want, err := d.Process(ev)
		require.NoError(t, err)
		assert.True(t, verify.VerifyEventMeta(meta, results[i].Meta))
		assert.True(t, verify.VerifyEventLabels(want, results[i].Label), ev.ID)
	}
}

func TestRunRecordsPerEventErrors(t *testing.T) {
	t.Parallel()
	c, ok := testevents.Get("single_deposit")
	require.True(t, ok)
	bad := &truth.RawEvent{
		ID:        "bad",
		Particles: []truth.ParticleRecord{{TrackID: 1}, {TrackID: 1}},
	}
	events := []*truth.RawEvent{c.Event, bad, nil, c.Event}

	results, err := Run(context.Background(), events, factory(c.Config), Options{Workers: 2})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, errs.ErrData)
	assert.Error(t, results[2].Err)
	assert.NoError(t, results[3].Err)
	assert.Equal(t, Summary{Events: 4, Failed: 2}, Summarize(results))
}

func TestRunDriverFactoryError(t *testing.T) {
	t.Parallel()
	c, _ := testevents.Get("single_deposit")
	boom := errors.New("boom")
	_, err := Run(context.Background(), []*truth.RawEvent{c.Event}, func() (*driver.Driver, error) {
		return nil, boom
	}, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestRunOnResultStops(t *testing.T) {
	t.Parallel()
	c, _ := testevents.Get("single_deposit")
	events := make([]*truth.RawEvent, 50)
	for i := range events {
		events[i] = c.Event
	}
	stop := errors.New("stop")
	var mu sync.Mutex
	seen := 0
	_, err := Run(context.Background(), events, factory(c.Config), Options{
		Workers: 1,
		OnResult: func(Result) error {
			mu.Lock()
			defer mu.Unlock()
			seen++
			if seen == 3 {
				return stop
			}
			return nil
		},
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, seen)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()
	c, _ := testevents.Get("single_deposit")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, []*truth.RawEvent{c.Event}, factory(c.Config), Options{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunEmpty(t *testing.T) {
	t.Parallel()
	results, err := Run(context.Background(), nil, factory(*config.DefaultRunConfig()), Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
