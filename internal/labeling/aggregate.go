package labeling

import (
	"sort"

	"github.com/banshee-data/voxlabel/internal/errs"
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/monitoring"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// particleAgg is the mutable working state of one particle between
// aggregation and label construction.
type particleAgg struct {
	node   *Node
	parent truth.TrackID

	processType label.ProcessType
	semantic    label.SemanticType

	voxels map[voxel.ID]voxel.Accumulator

	hasSteps    bool
	first, last voxel.Vertex

	merged   []truth.TrackID
	absorbed bool

	// cleared is set when the threshold removed every voxel.
	cleared bool
}

// Aggregation holds per-particle, per-voxel sums for one event.
type Aggregation struct {
	EventID string
	Meta    voxel.ImageMeta
	// Dropped counts deposits outside the grid.
	Dropped int
	// MinShowerVoxels relabels shower particles with fewer voxels as
	// low-energy scatters when the label is built. Zero disables it.
	MinShowerVoxels int

	forest    *Forest
	order     []truth.TrackID
	particles map[truth.TrackID]*particleAgg
}

// Aggregate bins deposits into the voxels of meta and attributes them to
// their particles. Deposits outside the grid are counted and skipped. A
// deposit naming a particle absent from the forest is a DataError.
func Aggregate(eventID string, f *Forest, meta voxel.ImageMeta, deposits []truth.Deposit, log *monitoring.Logger) (*Aggregation, error) {
	a := &Aggregation{
		EventID:   eventID,
		Meta:      meta,
		forest:    f,
		order:     f.Order(),
		particles: make(map[truth.TrackID]*particleAgg, f.Len()),
	}
	for _, id := range a.order {
		n := f.nodes[id]
		a.particles[id] = &particleAgg{
			node:        n,
			parent:      n.Parent,
			processType: n.ProcessType,
			semantic:    n.Semantic,
			voxels:      make(map[voxel.ID]voxel.Accumulator),
		}
	}

	for i, d := range deposits {
		p, ok := a.particles[d.TrackID]
		if !ok {
			return nil, errs.Data(eventID, "deposit %d references unknown track id %d", i, d.TrackID)
		}
		vid := meta.ID(d.Position)
		if vid == voxel.InvalidID {
			a.Dropped++
			if log != nil {
				log.Tracef("event %s: deposit %d of track %d at %v is outside the grid", eventID, i, d.TrackID, d.Position)
			}
			continue
		}
		dedx, hasDEDX := d.StoppingPower()
		acc := p.voxels[vid]
		if err := acc.Add(d.Energy, dedx, hasDEDX); err != nil {
			return nil, errs.Data(eventID, "deposit %d of track %d: %v", i, d.TrackID, err)
		}
		p.voxels[vid] = acc
		p.recordStep(voxel.Vertex{Point3D: d.Position, T: d.Time})
	}
	if a.Dropped > 0 && log != nil {
		log.Debugf("event %s: %d of %d deposits outside the grid", eventID, a.Dropped, len(deposits))
	}
	return a, nil
}

// recordStep tracks the earliest and latest in-grid deposit. Ties on time
// are broken by position so the result does not depend on input order.
func (p *particleAgg) recordStep(v voxel.Vertex) {
	if !p.hasSteps {
		p.first, p.last, p.hasSteps = v, v, true
		return
	}
	if vertexBefore(v, p.first) {
		p.first = v
	}
	if vertexBefore(p.last, v) {
		p.last = v
	}
}

func vertexBefore(a, b voxel.Vertex) bool {
	if a.T != b.T {
		return a.T < b.T
	}
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// Forest returns the hierarchy the aggregation was built on.
func (a *Aggregation) Forest() *Forest { return a.forest }

// VoxelTotals returns the per-voxel sums over all particles.
func (a *Aggregation) VoxelTotals() map[voxel.ID]voxel.Accumulator {
	out := make(map[voxel.ID]voxel.Accumulator)
	for _, p := range a.particles {
		for id, acc := range p.voxels {
			t := out[id]
			t.Merge(acc)
			out[id] = t
		}
	}
	return out
}

// TotalEnergy returns the energy of every in-grid deposit.
func (a *Aggregation) TotalEnergy() float64 {
	var sum voxel.Fixed
	for _, p := range a.particles {
		for _, acc := range p.voxels {
			sum = sum.Add(acc.Energy)
		}
	}
	return sum.Float()
}

// live returns the particles not absorbed by a merge, in hierarchy order.
func (a *Aggregation) live() []*particleAgg {
	out := make([]*particleAgg, 0, len(a.particles))
	for _, id := range a.order {
		if p := a.particles[id]; !p.absorbed {
			out = append(out, p)
		}
	}
	return out
}

func sortedIDs(m map[voxel.ID]voxel.Accumulator) []voxel.ID {
	ids := make([]voxel.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
