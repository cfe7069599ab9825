package voxel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFixedRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   float64
	}{
		{"zero", 0},
		{"small", 0.125},
		{"negative", -3.75},
		{"nanounit", 1e-9},
		{"large", 1e10},
		{"very large", 1e18},
		{"negative very large", -1e18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ToFixed(tt.in)
			require.NoError(t, err)
			assert.InEpsilon(t, 1+tt.in, 1+f.Float(), 1e-12)
		})
	}
}

func TestToFixedRejects(t *testing.T) {
	tests := []struct {
		name string
		in   float64
	}{
		{"nan", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
		{"above range", 1e19},
		{"below range", -1e19},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToFixed(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestFixedCmp(t *testing.T) {
	mk := func(v float64) Fixed {
		f, err := ToFixed(v)
		require.NoError(t, err)
		return f
	}
	tests := []struct {
		name string
		a, b float64
		want int
	}{
		{"equal", 2.5, 2.5, 0},
		{"less", 1, 2, -1},
		{"greater", 2, 1, 1},
		{"negative below positive", -1, 1, -1},
		{"large against small", 1e18, 1e-9, 1},
		{"negative large", -1e18, -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mk(tt.a).Cmp(mk(tt.b)))
		})
	}
	assert.True(t, mk(0).IsZero())
	assert.True(t, mk(3).Add(mk(-3)).IsZero())
}

func TestAccumulatorLargeValues(t *testing.T) {
	tests := []struct {
		name       string
		energy     float64
		dedx       float64
		wantEnergy float64
		wantDEDX   float64
	}{
		{"steep stopping power", 5, 5e9, 5, 5e9},
		{"large energy", 1e10, 2, 1e10, 2},
		{"large weighted product", 1e9, 1e9, 1e9, 1e9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Accumulator
			require.NoError(t, a.Add(tt.energy, tt.dedx, true))
			assert.InEpsilon(t, tt.wantEnergy, a.EnergyValue(), 1e-12)
			assert.InEpsilon(t, tt.wantDEDX, a.DEDX(), 1e-12)
			assert.Positive(t, a.DEDX())
		})
	}
}

func TestAccumulatorRejectsUnrepresentable(t *testing.T) {
	tests := []struct {
		name   string
		energy float64
		dedx   float64
	}{
		{"energy out of range", 1e20, 1},
		{"weighted product out of range", 1e10, 1e10},
		{"nan energy", math.NaN(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Accumulator
			require.NoError(t, a.Add(1, 2, true))
			before := a
			assert.Error(t, a.Add(tt.energy, tt.dedx, true))
			assert.Equal(t, before, a)
		})
	}
}

func TestAccumulatorLargeSumsAreOrderIndependent(t *testing.T) {
	values := []float64{9e18, 9e18, 1e-9, 9e18, 0.5, 9e18}

	var fwd, rev Accumulator
	for _, v := range values {
		require.NoError(t, fwd.Add(v, 0, false))
	}
	for i := len(values) - 1; i >= 0; i-- {
		require.NoError(t, rev.Add(values[i], 0, false))
	}
	assert.Equal(t, fwd, rev)
	assert.InEpsilon(t, 3.6e19, fwd.EnergyValue(), 1e-12)
	assert.Equal(t, 1, fwd.Energy.Cmp(Fixed{}))
}
