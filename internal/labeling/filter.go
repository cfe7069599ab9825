package labeling

import (
	"fmt"
	"sort"
	"strings"

	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// OrphanPolicy decides the parent of a particle whose parent was dropped
// by the threshold filter.
type OrphanPolicy int

const (
	// OrphanReparent links the particle to its nearest surviving ancestor,
	// or makes it a root when none survives.
	OrphanReparent OrphanPolicy = iota
	// OrphanDetach makes the particle a root.
	OrphanDetach
)

func (o OrphanPolicy) String() string {
	if o == OrphanDetach {
		return "detach"
	}
	return "reparent"
}

// ParseOrphanPolicy accepts "reparent" or "detach", case-insensitive.
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reparent":
		return OrphanReparent, nil
	case "detach":
		return OrphanDetach, nil
	}
	return OrphanReparent, fmt.Errorf("unknown orphan policy %q (want reparent or detach)", s)
}

// Label builds the unfiltered label from the current aggregation state.
func (a *Aggregation) Label() *label.Label {
	return a.build(func(voxel.Accumulator) bool { return true }, OrphanReparent)
}

// Filter builds the label keeping only per-particle voxel contributions
// whose energy is at least threshold. A particle that loses all of its
// voxels is dropped; particles that never had in-grid energy are kept.
// The aggregation itself is not modified. A threshold beyond the
// fixed-point range removes every contribution.
func (a *Aggregation) Filter(threshold float64, policy OrphanPolicy) *label.Label {
	min, err := voxel.ToFixed(threshold)
	if err != nil {
		return a.build(func(voxel.Accumulator) bool { return false }, policy)
	}
	return a.build(func(acc voxel.Accumulator) bool { return acc.Energy.Cmp(min) >= 0 }, policy)
}

type kept struct {
	src      *particleAgg
	voxels   map[voxel.ID]voxel.Accumulator
	semantic label.SemanticType
	parent   truth.TrackID
}

func (a *Aggregation) build(keep func(voxel.Accumulator) bool, policy OrphanPolicy) *label.Label {
	survivors := make(map[truth.TrackID]*kept)
	var ids []truth.TrackID
	for _, p := range a.live() {
		voxels := make(map[voxel.ID]voxel.Accumulator, len(p.voxels))
		for id, acc := range p.voxels {
			if keep(acc) {
				voxels[id] = acc
			}
		}
		if (len(p.voxels) > 0 || p.cleared) && len(voxels) == 0 {
			continue
		}
		semantic := p.semantic
		if semantic == label.Shower && len(voxels) < a.MinShowerVoxels {
			semantic = label.LEScatter
		}
		id := p.node.Record.TrackID
		survivors[id] = &kept{src: p, voxels: voxels, semantic: semantic}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		k := survivors[id]
		parent := k.src.parent
		for parent != label.NoParent {
			if _, ok := survivors[parent]; ok {
				break
			}
			if policy == OrphanDetach {
				parent = label.NoParent
				break
			}
			parent = a.particles[parent].parent
		}
		k.parent = parent
	}

	children := make(map[truth.TrackID][]truth.TrackID)
	for _, id := range ids {
		if p := survivors[id].parent; p != label.NoParent {
			children[p] = append(children[p], id)
		}
	}

	out := &label.Label{
		EventID:         a.EventID,
		Meta:            a.Meta,
		Particles:       make([]label.Particle, 0, len(ids)),
		DroppedDeposits: a.Dropped,
	}
	totals := make(map[voxel.ID]voxel.Accumulator)
	owners := make(map[voxel.ID][]truth.TrackID)
	for _, id := range ids {
		k := survivors[id]
		n := k.src.node

		var sum voxel.Accumulator
		energy := make([]voxel.Value, 0, len(k.voxels))
		dedx := make([]voxel.Value, 0, len(k.voxels))
		for _, vid := range sortedIDs(k.voxels) {
			acc := k.voxels[vid]
			sum.Merge(acc)
			energy = append(energy, voxel.Value{ID: vid, V: acc.EnergyValue()})
			dedx = append(dedx, voxel.Value{ID: vid, V: acc.DEDX()})

			t := totals[vid]
			t.Merge(acc)
			totals[vid] = t
			owners[vid] = append(owners[vid], id)
		}

		merged := append([]truth.TrackID(nil), k.src.merged...)
		sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
		out.Particles = append(out.Particles, label.Particle{
			ID:            id,
			ParentID:      k.parent,
			AncestorID:    n.Ancestor,
			GroupID:       groupOf(id, survivors),
			PDG:           n.Record.PDG,
			Process:       n.Record.Process,
			ProcessType:   k.src.processType,
			Semantic:      k.semantic,
			EnergyInit:    n.Record.EnergyInit,
			EnergyDeposit: sum.EnergyValue(),
			DEDX:          sum.DEDX(),
			Voxels:        voxel.NewSet(energy),
			VoxelDEDX:     voxel.NewSet(dedx),
			Children:      children[id],
			Merged:        merged,
			HasSteps:      k.src.hasSteps,
			FirstStep:     k.src.first,
			LastStep:      k.src.last,
		})
	}

	energy := make([]voxel.Value, 0, len(totals))
	dedx := make([]voxel.Value, 0, len(totals))
	for _, vid := range sortedIDs(totals) {
		acc := totals[vid]
		energy = append(energy, voxel.Value{ID: vid, V: acc.EnergyValue()})
		dedx = append(dedx, voxel.Value{ID: vid, V: acc.DEDX()})
		out.Owners = append(out.Owners, label.VoxelOwners{ID: vid, Tracks: owners[vid]})
	}
	out.Energy = voxel.NewSet(energy)
	out.DEDX = voxel.NewSet(dedx)
	return out
}

// groupOf returns the head of the chain of shower particles containing id:
// a shower whose parent is also a shower joins the parent's group.
func groupOf(id truth.TrackID, survivors map[truth.TrackID]*kept) truth.TrackID {
	for {
		k := survivors[id]
		if k.semantic != label.Shower || k.parent == label.NoParent {
			return id
		}
		if survivors[k.parent].semantic != label.Shower {
			return id
		}
		id = k.parent
	}
}
