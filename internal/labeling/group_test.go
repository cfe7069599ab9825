package labeling

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/truth"
)

// line deposits n unit-energy steps along x starting at (x0, y, z).
func line(id truth.TrackID, x0, y, z float64, n int) []truth.Deposit {
	out := make([]truth.Deposit, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, dep(id, x0+float64(i)+0.5, y, z, 1.0, 1.0))
	}
	return out
}

func concat(groups ...[]truth.Deposit) []truth.Deposit {
	var out []truth.Deposit
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func TestGroupMergesIonizationElectrons(t *testing.T) {
	ev := &truth.RawEvent{
		Particles: []truth.ParticleRecord{
			rec(1, 0, 13, "primary"),
			rec(2, 1, 11, "eIoni"),
			rec(3, 2, 22, "eBrem"),
		},
		Deposits: concat(line(1, 0, 5, 5, 20), line(2, 40, 40, 40, 2), line(3, 70, 70, 70, 12)),
	}
	a := aggregate(t, ev, cube(t))
	a.Group(DefaultGroupOptions(), 0, nil)

	assert.Equal(t, []truth.TrackID{2}, a.Merged(1))
	l := a.Label()
	_, ok := l.Particle(2)
	assert.False(t, ok)

	mu, _ := l.Particle(1)
	assert.Equal(t, 22.0, mu.EnergyDeposit)
	assert.Equal(t, []truth.TrackID{2}, mu.Merged)
	assert.Equal(t, []truth.TrackID{3}, mu.Children)

	gamma, ok := l.Particle(3)
	require.True(t, ok)
	assert.Equal(t, truth.TrackID(1), gamma.ParentID)
	assert.Equal(t, label.Shower, gamma.Semantic)
}

func TestGroupMergesSmallDeltas(t *testing.T) {
	ev := &truth.RawEvent{
		Particles: []truth.ParticleRecord{
			rec(1, 0, 13, "primary"),
			rec(2, 1, 11, "muIoni"),
			rec(3, 1, 11, "muIoni"),
		},
		Deposits: concat(line(1, 0, 5, 5, 20), line(2, 30, 30, 30, 3), line(3, 50, 50, 50, 12)),
	}
	a := aggregate(t, ev, cube(t))
	a.Group(DefaultGroupOptions(), 0, nil)

	l := a.Label()
	_, ok := l.Particle(2)
	assert.False(t, ok, "small delta is merged")
	big, ok := l.Particle(3)
	require.True(t, ok, "large delta survives")
	assert.Equal(t, label.Delta, big.Semantic)
	assert.Equal(t, 12, big.Voxels.Len())
}

func TestGroupMergesDeltaOverlappingParent(t *testing.T) {
	// Twelve voxels, all but two shared with the muon.
	ev := &truth.RawEvent{
		Particles: []truth.ParticleRecord{rec(1, 0, 13, "primary"), rec(2, 1, 11, "muIoni")},
		Deposits:  concat(line(1, 0, 5, 5, 20), line(2, 10, 5, 5, 12)),
	}
	a := aggregate(t, ev, cube(t))
	a.Group(DefaultGroupOptions(), 0, nil)
	assert.Equal(t, []truth.TrackID{2}, a.Merged(1))
}

func TestGroupComptonPromotionAndTouching(t *testing.T) {
	ev := &truth.RawEvent{
		Particles: []truth.ParticleRecord{
			rec(1, 0, 22, "primary"),
			rec(2, 1, 11, "compt"),
			rec(3, 1, 11, "compt"),
			rec(4, 1, 11, "compt"),
		},
		Deposits: concat(
			line(1, 50, 50.5, 50.5, 1),
			line(2, 10, 10.5, 10.5, 11),
			line(3, 51, 50.5, 50.5, 3),
			line(4, 80, 80.5, 80.5, 2),
		),
	}
	a := aggregate(t, ev, cube(t))
	a.Group(DefaultGroupOptions(), 0, nil)
	l := a.Label()

	he, ok := l.Particle(2)
	require.True(t, ok)
	assert.Equal(t, label.ProcessComptonHE, he.ProcessType)
	assert.Equal(t, label.Shower, he.Semantic)

	_, ok = l.Particle(3)
	assert.False(t, ok, "touching low-energy scatter is merged into the photon")
	gamma, _ := l.Particle(1)
	assert.Equal(t, []truth.TrackID{3}, gamma.Merged)
	assert.Equal(t, 4, gamma.Voxels.Len())

	far, ok := l.Particle(4)
	require.True(t, ok, "distant scatter is kept")
	assert.Equal(t, label.LEScatter, far.Semantic)
	assert.Equal(t, label.ProcessCompton, far.ProcessType)
}

func TestGroupMergesCanBeDisabled(t *testing.T) {
	ev := &truth.RawEvent{
		Particles: []truth.ParticleRecord{
			rec(1, 0, 13, "primary"),
			rec(2, 1, 11, "eIoni"),
			rec(3, 1, 11, "muIoni"),
		},
		Deposits: concat(line(1, 0, 5, 5, 20), line(2, 1, 5, 5, 2), line(3, 2, 5, 5, 2)),
	}
	a := aggregate(t, ev, cube(t))
	opts := DefaultGroupOptions()
	opts.MergeIonizations = false
	opts.MergeDeltas = false
	opts.MergeTouchingLEScatter = false
	a.Group(opts, 0, nil)

	assert.Empty(t, a.Merged(1))
	assert.Len(t, a.Label().Particles, 3)
}

func TestGroupConservesEnergy(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 4, 5} {
		a := aggregate(t, randomEvent(rand.New(rand.NewSource(seed)), 2000), cube(t))
		before := a.VoxelTotals()
		energy := a.TotalEnergy()

		a.Group(DefaultGroupOptions(), 0, nil)

		assert.Equal(t, before, a.VoxelTotals(), "seed %d", seed)
		assert.Equal(t, energy, a.TotalEnergy(), "seed %d", seed)
		assert.InDelta(t, energy, a.Label().ParticleEnergy(), 1e-6, "seed %d", seed)
	}
}

func TestGroupShowerMerges(t *testing.T) {
	tests := []struct {
		name    string
		ev      *truth.RawEvent
		disable func(*GroupOptions)
		into    truth.TrackID
		merged  []truth.TrackID
	}{
		{
			name: "conversion electron",
			ev: &truth.RawEvent{
				Particles: []truth.ParticleRecord{rec(1, 0, 22, "primary"), rec(2, 1, 11, "conv")},
				Deposits:  concat(line(1, 10, 10.5, 10.5, 12), line(2, 10, 60.5, 60.5, 12)),
			},
			disable: func(o *GroupOptions) { o.MergeConversions = false },
			into:    1,
			merged:  []truth.TrackID{2},
		},
		{
			name: "shower touching its michel parent",
			ev: &truth.RawEvent{
				Particles: []truth.ParticleRecord{
					rec(1, 0, 13, "primary"),
					rec(2, 1, 11, "Decay"),
					rec(3, 2, 22, "eBrem"),
				},
				Deposits: concat(line(1, 0, 50.5, 50.5, 20), line(2, 30, 10.5, 10.5, 12), line(3, 42, 10.5, 10.5, 12)),
			},
			disable: func(o *GroupOptions) { o.MergeShowerFamilyTouching = false },
			into:    2,
			merged:  []truth.TrackID{3},
		},
		{
			name: "touching sibling showers",
			ev: &truth.RawEvent{
				Particles: []truth.ParticleRecord{
					rec(1, 0, 22, "primary"),
					rec(2, 1, 22, "eBrem"),
					rec(3, 1, 22, "eBrem"),
				},
				Deposits: concat(line(1, 10, 60.5, 60.5, 12), line(2, 30, 10.5, 10.5, 12), line(3, 42, 10.5, 10.5, 5)),
			},
			disable: func(o *GroupOptions) { o.MergeShowerTouching = false },
			into:    2,
			merged:  []truth.TrackID{3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := aggregate(t, tt.ev, cube(t))
			energy := a.TotalEnergy()
			a.Group(DefaultGroupOptions(), 0, nil)
			assert.Equal(t, tt.merged, a.Merged(tt.into))
			assert.Equal(t, energy, a.TotalEnergy())
			for _, id := range tt.merged {
				_, ok := a.Label().Particle(id)
				assert.False(t, ok, "track %d is merged", id)
			}

			a = aggregate(t, tt.ev, cube(t))
			opts := DefaultGroupOptions()
			tt.disable(&opts)
			a.Group(opts, 0, nil)
			assert.Empty(t, a.Merged(tt.into))
			assert.Len(t, a.Label().Particles, len(tt.ev.Particles))
		})
	}
}

func TestGroupShowerTouchingKeepsLargerShower(t *testing.T) {
	ev := &truth.RawEvent{
		Particles: []truth.ParticleRecord{
			rec(1, 0, 22, "primary"),
			rec(2, 1, 22, "eBrem"),
			rec(3, 1, 22, "eBrem"),
		},
		Deposits: concat(line(1, 10, 60.5, 60.5, 12), line(2, 30, 10.5, 10.5, 4), line(3, 34, 10.5, 10.5, 15)),
	}
	a := aggregate(t, ev, cube(t))
	a.Group(DefaultGroupOptions(), 0, nil)

	assert.Equal(t, []truth.TrackID{2}, a.Merged(3))
	p, ok := a.Label().Particle(3)
	require.True(t, ok)
	assert.Equal(t, 19, p.Voxels.Len())
}

func TestGroupShowerTouchingStopsAtTrack(t *testing.T) {
	// The showers only share a muon ancestor, so they stay apart.
	ev := &truth.RawEvent{
		Particles: []truth.ParticleRecord{
			rec(1, 0, 13, "primary"),
			rec(2, 1, 22, "eBrem"),
			rec(3, 1, 22, "eBrem"),
		},
		Deposits: concat(line(1, 0, 60.5, 60.5, 20), line(2, 30, 10.5, 10.5, 12), line(3, 42, 10.5, 10.5, 12)),
	}
	a := aggregate(t, ev, cube(t))
	a.Group(DefaultGroupOptions(), 0, nil)

	assert.Empty(t, a.Merged(2))
	assert.Empty(t, a.Merged(3))
	assert.Len(t, a.Label().Particles, 3)
}

func TestGroupPromotesAfterThreshold(t *testing.T) {
	// Six strong and six faint voxels: promoted only while the faint ones
	// survive the threshold.
	deposits := line(2, 30, 30.5, 30.5, 6)
	for i := 0; i < 6; i++ {
		deposits = append(deposits, dep(2, 36.5+float64(i), 30.5, 30.5, 0.001, 1))
	}
	ev := &truth.RawEvent{
		Particles: []truth.ParticleRecord{rec(1, 0, 22, "primary"), rec(2, 1, 11, "compt")},
		Deposits:  deposits,
	}

	tests := []struct {
		name      string
		threshold float64
		process   label.ProcessType
		semantic  label.SemanticType
		voxels    int
	}{
		{"no threshold", 0, label.ProcessComptonHE, label.Shower, 12},
		{"faint voxels removed", 0.01, label.ProcessCompton, label.LEScatter, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := aggregate(t, ev, cube(t))
			a.Group(DefaultGroupOptions(), tt.threshold, nil)
			p, ok := a.Label().Particle(2)
			require.True(t, ok)
			assert.Equal(t, tt.process, p.ProcessType)
			assert.Equal(t, tt.semantic, p.Semantic)
			assert.Equal(t, tt.voxels, p.Voxels.Len())
		})
	}
}

func TestGroupThresholdDropsClearedParticles(t *testing.T) {
	ev := &truth.RawEvent{
		Particles: []truth.ParticleRecord{
			rec(1, 0, 13, "primary"),
			rec(2, 1, 2212, "muonNuclear"),
			rec(3, 1, 2112, "neutronInelastic"),
		},
		Deposits: concat(line(1, 0, 5.5, 5.5, 20), []truth.Deposit{dep(2, 50.5, 50.5, 50.5, 0.2, 1)}),
	}
	a := aggregate(t, ev, cube(t))
	a.Group(DefaultGroupOptions(), 1, nil)
	l := a.Label()

	_, ok := l.Particle(2)
	assert.False(t, ok, "particle without voxels above threshold is dropped")
	_, ok = l.Particle(3)
	assert.True(t, ok, "particle that never deposited is kept")
	assert.Equal(t, 20.0, l.TotalEnergy())
}
