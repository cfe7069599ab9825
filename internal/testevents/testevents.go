// Package testevents holds small hand-checked events together with the
// grid and label they must produce.
package testevents

import (
	"sort"

	"github.com/banshee-data/voxlabel/internal/config"
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// Case is one regression event with its configuration and expected output.
type Case struct {
	Name   string
	Config config.RunConfig
	Event  *truth.RawEvent
	Meta   voxel.ImageMeta
	Label  *label.Label
}

// step is a deposit used to build both the event and the expected sums.
type step struct {
	track  truth.TrackID
	pos    voxel.Point3D
	energy float64
	path   float64
}

func runConfig(bbox config.Params, threshold string) config.RunConfig {
	return config.RunConfig{
		BBox: config.AlgorithmConfig{Name: "BBoxInteraction", Params: bbox},
		Label: config.AlgorithmConfig{Name: "LArTPCMLReco3D", Params: config.Params{
			"LogLevel":               "WARNING",
			"EnergyDepositThreshold": threshold,
		}},
	}
}

func cubeParams() config.Params {
	return config.Params{
		"BBoxBottom": "[0, 0, 0]",
		"BBoxSize":   "[100, 100, 100]",
		"VoxelSize":  "[1, 1, 1]",
	}
}

func cubeMeta() voxel.ImageMeta {
	m, err := voxel.NewImageMeta(voxel.Point3D{}, voxel.Point3D{X: 1, Y: 1, Z: 1}, 100, 100, 100)
	if err != nil {
		panic(err)
	}
	return m
}

func deposits(steps []step) []truth.Deposit {
	out := make([]truth.Deposit, len(steps))
	for i, s := range steps {
		out[i] = truth.Deposit{TrackID: s.track, Position: s.pos, Energy: s.energy, PathLength: s.path}
	}
	return out
}

// line returns n unit-path steps of the given energy along x.
func line(track truth.TrackID, x0, y, z float64, n int, energy float64) []step {
	out := make([]step, n)
	for i := range out {
		out[i] = step{track: track, pos: voxel.Point3D{X: x0 + float64(i) + 0.5, Y: y, Z: z}, energy: energy, path: 1}
	}
	return out
}

// sums bins steps into energy and energy-weighted dE/dx sets.
func sums(meta voxel.ImageMeta, steps []step) (energy, dedx voxel.Set) {
	e := make(map[voxel.ID]float64)
	w := make(map[voxel.ID]float64)
	for _, s := range steps {
		id := meta.ID(s.pos)
		e[id] += s.energy
		w[id] += s.energy * (s.energy / s.path)
	}
	d := make(map[voxel.ID]float64, len(w))
	for id, v := range w {
		d[id] = v / e[id]
	}
	return voxel.SetFromMap(e), voxel.SetFromMap(d)
}

func particle(meta voxel.ImageMeta, id, parent truth.TrackID, pdg int32, sem label.SemanticType, steps []step, children ...truth.TrackID) label.Particle {
	energy, dedx := sums(meta, steps)
	var total, weighted float64
	for _, s := range steps {
		total += s.energy
		weighted += s.energy * (s.energy / s.path)
	}
	var mean float64
	if total > 0 {
		mean = weighted / total
	}
	return label.Particle{
		ID:            id,
		ParentID:      parent,
		AncestorID:    id,
		GroupID:       id,
		PDG:           pdg,
		Semantic:      sem,
		EnergyDeposit: total,
		DEDX:          mean,
		Voxels:        energy,
		VoxelDEDX:     dedx,
		Children:      children,
	}
}

func expected(name string, meta voxel.ImageMeta, steps []step, particles ...label.Particle) *label.Label {
	energy, dedx := sums(meta, steps)
	sort.Slice(particles, func(i, j int) bool { return particles[i].ID < particles[j].ID })
	return &label.Label{EventID: name, Meta: meta, Particles: particles, Energy: energy, DEDX: dedx}
}

func concat(groups ...[]step) []step {
	var out []step
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func singleDeposit() Case {
	meta := cubeMeta()
	steps := []step{{track: 1, pos: voxel.Point3D{X: 10, Y: 10, Z: 10}, energy: 5, path: 2}}
	return Case{
		Name:   "single_deposit",
		Config: runConfig(cubeParams(), "0"),
		Event: &truth.RawEvent{
			ID:        "single_deposit",
			Particles: []truth.ParticleRecord{{TrackID: 1, PDG: 13, Process: "primary"}},
			Deposits:  deposits(steps),
		},
		Meta: meta,
		Label: expected("single_deposit", meta, steps,
			particle(meta, 1, label.NoParent, 13, label.Track, steps)),
	}
}

func weightedDEDX() Case {
	meta := cubeMeta()
	steps := []step{
		{track: 1, pos: voxel.Point3D{X: 10, Y: 10, Z: 10}, energy: 3, path: 1},
		{track: 1, pos: voxel.Point3D{X: 10.5, Y: 10.5, Z: 10.5}, energy: 1, path: 1},
	}
	return Case{
		Name:   "weighted_dedx",
		Config: runConfig(cubeParams(), "0"),
		Event: &truth.RawEvent{
			ID:        "weighted_dedx",
			Particles: []truth.ParticleRecord{{TrackID: 1, ParentTrackID: 1, PDG: 13, Process: "primary"}},
			Deposits:  deposits(steps),
		},
		Meta: meta,
		Label: expected("weighted_dedx", meta, steps,
			particle(meta, 1, label.NoParent, 13, label.Track, steps)),
	}
}

func thresholdDrop() Case {
	c := weightedDEDX()
	c.Name = "threshold_drop"
	c.Event.ID = c.Name
	c.Config = runConfig(cubeParams(), "10.0")
	c.Label = expected(c.Name, c.Meta, nil)
	return c
}

func muonDecay() Case {
	meta := cubeMeta()
	muon := line(1, 20, 50.5, 50.5, 20, 1.0)
	delta := line(2, 30, 51.5, 50.5, 3, 0.5)
	michel := line(3, 40, 50.5, 50.5, 12, 0.2)
	gamma := line(4, 70, 70.5, 70.5, 2, 0.005)
	all := concat(muon, delta, michel, gamma)

	mu := particle(meta, 1, label.NoParent, 13, label.Track, concat(muon, delta), 3, 5)
	mu.Merged = []truth.TrackID{2}
	e := particle(meta, 3, 1, 11, label.Michel, michel)
	e.AncestorID = 1
	n := particle(meta, 5, 1, 2112, label.LEScatter, nil)
	n.AncestorID = 1

	return Case{
		Name:   "muon_decay",
		Config: runConfig(cubeParams(), "0.01"),
		Event: &truth.RawEvent{
			ID: "muon_decay",
			Particles: []truth.ParticleRecord{
				{TrackID: 1, PDG: 13, Process: "primary"},
				{TrackID: 2, ParentTrackID: 1, PDG: 11, Process: "muIoni"},
				{TrackID: 3, ParentTrackID: 1, PDG: 11, Process: "Decay"},
				{TrackID: 4, ParentTrackID: 3, PDG: 22, Process: "eBrem"},
				{TrackID: 5, ParentTrackID: 1, PDG: 2112, Process: "muonNuclear"},
			},
			Deposits: deposits(all),
		},
		Meta:  meta,
		Label: expected("muon_decay", meta, concat(muon, delta, michel), mu, e, n),
	}
}

func interactionBox() Case {
	meta, err := voxel.NewImageMeta(voxel.Point3D{X: 17, Y: 16, Z: 15.5}, voxel.Point3D{X: 1, Y: 1, Z: 1}, 10, 10, 10)
	if err != nil {
		panic(err)
	}
	steps := []step{
		{track: 1, pos: voxel.Point3D{X: 20, Y: 20, Z: 20}, energy: 1, path: 0.5},
		{track: 1, pos: voxel.Point3D{X: 24, Y: 22, Z: 21}, energy: 2, path: 1},
	}
	return Case{
		Name: "interaction_box",
		Config: runConfig(config.Params{
			"BBoxSize":  "[10, 10, 10]",
			"VoxelSize": "[1, 1, 1]",
			"Seed":      "0",
		}, "0"),
		Event: &truth.RawEvent{
			ID:        "interaction_box",
			Particles: []truth.ParticleRecord{{TrackID: 1, PDG: 2212, Process: "primary"}},
			Deposits:  deposits(steps),
		},
		Meta: meta,
		Label: expected("interaction_box", meta, steps,
			particle(meta, 1, label.NoParent, 2212, label.Track, steps)),
	}
}

// All returns fresh copies of every case, ordered by name.
func All() []Case {
	cases := []Case{singleDeposit(), weightedDEDX(), thresholdDrop(), muonDecay(), interactionBox()}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Name < cases[j].Name })
	return cases
}

// Get returns the case with the given name.
func Get(name string) (Case, bool) {
	for _, c := range All() {
		if c.Name == name {
			return c, true
		}
	}
	return Case{}, false
}

// Names lists the case names in order.
func Names() []string {
	cases := All()
	out := make([]string, len(cases))
	for i, c := range cases {
		out[i] = c.Name
	}
	return out
}
