package labeling

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/voxlabel/internal/config"
	"github.com/banshee-data/voxlabel/internal/errs"
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

func configured(t *testing.T, params config.Params) *MLReco3D {
	t.Helper()
	m := NewMLReco3D()
	require.NoError(t, m.Configure(params))
	return m
}

func TestConfigureDefaults(t *testing.T) {
	m := configured(t, config.Params{"LogLevel": "ERROR"})
	assert.Equal(t, DefaultOptions(), m.Options())
	assert.Equal(t, Name, m.Name())
}

func TestConfigureParsesOptions(t *testing.T) {
	m := configured(t, config.Params{
		"EnergyDepositThreshold":    "0.5",
		"UseSimEnergyDeposit":       "False",
		"UseSimEnergyDepositPoints": "True",
		"SemanticPriority":          "[1, 0, 2]",
		"InheritAmbiguousClass":     "false",
		"OrphanPolicy":              "detach",
		"ComptonSize":               "4",
		"DeltaSize":                 "3",
		"TouchDistance":             "2",
		"MergeIonizations":          "false",
		"MergeDeltas":               "false",
		"MergeTouchingLEScatter":    "false",
		"MergeConversions":          "false",
		"MergeShowerFamilyTouching": "false",
		"MergeShowerTouching":       "false",
	})
	opts := m.Options()
	assert.Equal(t, 0.5, opts.EnergyDepositThreshold)
	assert.False(t, opts.UseSimEnergyDeposit)
	assert.True(t, opts.UseSimEnergyDepositPoints)
	assert.Equal(t, []label.SemanticType{label.Track, label.Shower, label.Michel}, opts.SemanticPriority)
	assert.False(t, opts.InheritAmbiguousClass)
	assert.Equal(t, OrphanDetach, opts.OrphanPolicy)
	assert.Equal(t, GroupOptions{ComptonSize: 4, DeltaSize: 3, TouchDistance: 2}, opts.Group)
}

func TestConfigureErrors(t *testing.T) {
	tests := []struct {
		name   string
		params config.Params
		option string
	}{
		{"unknown option", config.Params{"Threshold": "1"}, "Threshold"},
		{"negative threshold", config.Params{"EnergyDepositThreshold": "-1"}, "EnergyDepositThreshold"},
		{"malformed threshold", config.Params{"EnergyDepositThreshold": "lots"}, "EnergyDepositThreshold"},
		{"both deposit sources", config.Params{"UseSimEnergyDepositPoints": "True"}, "UseSimEnergyDepositPoints"},
		{"no deposit source", config.Params{"UseSimEnergyDeposit": "False"}, "UseSimEnergyDeposit"},
		{"semantic out of range", config.Params{"SemanticPriority": "[0, 6]"}, "SemanticPriority"},
		{"bad orphan policy", config.Params{"OrphanPolicy": "adopt"}, "OrphanPolicy"},
		{"bad log level", config.Params{"LogLevel": "LOUD"}, "LogLevel"},
		{"negative delta size", config.Params{"DeltaSize": "-2"}, "DeltaSize"},
		{"fractional compton size", config.Params{"ComptonSize": "10.7"}, "ComptonSize"},
		{"fractional touch distance", config.Params{"TouchDistance": "1.5"}, "TouchDistance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMLReco3D()
			err := m.Configure(tt.params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrConfiguration))
			var ce *errs.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, Name, ce.Algorithm)
			assert.Equal(t, tt.option, ce.Option)
		})
	}
}

func TestBuildLabelRequiresConfigure(t *testing.T) {
	_, err := NewMLReco3D().BuildLabel(&truth.RawEvent{}, cube(t))
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestBuildLabelRejectsInvalidMeta(t *testing.T) {
	m := configured(t, nil)
	_, err := m.BuildLabel(&truth.RawEvent{}, voxel.ImageMeta{})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestBuildLabelRejectsBadEvents(t *testing.T) {
	m := configured(t, nil)
	ev := &truth.RawEvent{
		ID:        "bad",
		Particles: []truth.ParticleRecord{rec(1, 0, 13, "primary")},
		Deposits:  []truth.Deposit{dep(2, 1, 1, 1, 1, 1)},
	}
	_, err := m.BuildLabel(ev, cube(t))
	assert.True(t, errors.Is(err, errs.ErrData))

	ev.Deposits = []truth.Deposit{dep(1, 1, 1, 1, -1, 1)}
	_, err = m.BuildLabel(ev, cube(t))
	assert.True(t, errors.Is(err, errs.ErrData))
}

func scenarioEvent() *truth.RawEvent {
	return &truth.RawEvent{
		ID:        "scenario",
		Particles: []truth.ParticleRecord{rec(1, 1, 13, "primary")},
		Deposits:  []truth.Deposit{dep(1, 10, 10, 10, 3.0, 1.0), dep(1, 10, 10, 10, 1.0, 1.0)},
	}
}

func TestBuildLabelScenarios(t *testing.T) {
	meta := cube(t)
	voxelID := meta.ID(voxel.Point3D{X: 10, Y: 10, Z: 10})

	t.Run("single deposit", func(t *testing.T) {
		ev := &truth.RawEvent{
			Particles: []truth.ParticleRecord{rec(1, 1, 13, "primary")},
			Deposits:  []truth.Deposit{dep(1, 10, 10, 10, 5.0, 2.0)},
		}
		l, err := configured(t, config.Params{"EnergyDepositThreshold": "0"}).BuildLabel(ev, meta)
		require.NoError(t, err)
		e, _ := l.Energy.Get(voxelID)
		d, _ := l.DEDX.Get(voxelID)
		assert.Equal(t, 5.0, e)
		assert.InDelta(t, 2.5, d, 1e-9)
		p, ok := l.Particle(1)
		require.True(t, ok)
		assert.True(t, p.IsRoot())
		assert.Equal(t, 5.0, p.EnergyDeposit)
	})

	t.Run("weighted dedx", func(t *testing.T) {
		l, err := configured(t, config.Params{"EnergyDepositThreshold": "0"}).BuildLabel(scenarioEvent(), meta)
		require.NoError(t, err)
		e, _ := l.Energy.Get(voxelID)
		d, _ := l.DEDX.Get(voxelID)
		assert.Equal(t, 4.0, e)
		assert.InDelta(t, 2.5, d, 1e-9)
	})

	t.Run("threshold removes particle", func(t *testing.T) {
		for _, policy := range []string{"reparent", "detach"} {
			l, err := configured(t, config.Params{
				"EnergyDepositThreshold": "10.0",
				"OrphanPolicy":           policy,
			}).BuildLabel(scenarioEvent(), meta)
			require.NoError(t, err)
			assert.Empty(t, l.Particles, policy)
			assert.Zero(t, l.TotalEnergy(), policy)
		}
	})
}

func TestBuildLabelUsesPoints(t *testing.T) {
	ev := &truth.RawEvent{
		Particles: []truth.ParticleRecord{rec(1, 0, 13, "primary")},
		Deposits:  []truth.Deposit{dep(1, 1, 1, 1, 1, 1)},
		Points:    []truth.Deposit{dep(1, 2, 2, 2, 7, 1), dep(1, 3, 3, 3, 2, 1)},
	}
	m := configured(t, config.Params{
		"UseSimEnergyDeposit":       "False",
		"UseSimEnergyDepositPoints": "True",
	})
	l, err := m.BuildLabel(ev, cube(t))
	require.NoError(t, err)
	assert.Equal(t, 9.0, l.TotalEnergy())
	assert.Equal(t, 2, l.Energy.Len())
}

func TestBuildLabelCountsOutOfGridDeposits(t *testing.T) {
	ev := scenarioEvent()
	ev.Deposits = append(ev.Deposits, dep(1, 150, 10, 10, 2, 1), dep(1, -1, 10, 10, 2, 1))
	l, err := configured(t, nil).BuildLabel(ev, cube(t))
	require.NoError(t, err)
	assert.Equal(t, 2, l.DroppedDeposits)
	assert.Equal(t, 4.0, l.TotalEnergy())
}

func TestSemanticsUsesConfiguredPriority(t *testing.T) {
	ev := &truth.RawEvent{
		Particles: []truth.ParticleRecord{rec(1, 0, 13, "primary"), rec(2, 0, 22, "primary")},
		Deposits:  concat(line(1, 0, 5, 5, 12), line(2, 0, 5, 5, 12)),
	}
	meta := cube(t)
	shared := meta.ID(voxel.Point3D{X: 0.5, Y: 5, Z: 5})

	m := configured(t, nil)
	l, err := m.BuildLabel(ev, meta)
	require.NoError(t, err)
	v, _ := m.Semantics(l).Get(shared)
	assert.Equal(t, float64(label.Shower), v)

	m = configured(t, config.Params{"SemanticPriority": "[1, 0]"})
	l, err = m.BuildLabel(ev, meta)
	require.NoError(t, err)
	v, _ = m.Semantics(l).Get(shared)
	assert.Equal(t, float64(label.Track), v)
}
