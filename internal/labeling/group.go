package labeling

import (
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/monitoring"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// GroupOptions controls how shower fragments are folded into the
// particles that produced them.
type GroupOptions struct {
	// ComptonSize is the voxel count above which Compton and other shower
	// electrons count as high-energy showers.
	ComptonSize int
	// DeltaSize is the voxel count below which delta rays merge into their
	// parent.
	DeltaSize int
	// TouchDistance is the Chebyshev voxel distance at which two particles
	// touch.
	TouchDistance int

	MergeIonizations       bool
	MergeTouchingLEScatter bool
	MergeConversions       bool
	MergeDeltas            bool

	// MergeShowerFamilyTouching folds a shower into a touching parent of
	// shower, delta or Michel class.
	MergeShowerFamilyTouching bool

	// MergeShowerTouching folds together touching showers that share a
	// shower ancestor.
	MergeShowerTouching bool
}

// DefaultGroupOptions returns the standard grouping configuration.
func DefaultGroupOptions() GroupOptions {
	return GroupOptions{
		ComptonSize:               10,
		DeltaSize:                 10,
		TouchDistance:             1,
		MergeIonizations:          true,
		MergeTouchingLEScatter:    true,
		MergeConversions:          true,
		MergeShowerFamilyTouching: true,
		MergeShowerTouching:       true,
		MergeDeltas:               true,
	}
}

// Group folds shower fragments into the particles that produced them. The
// stages run in a fixed order:
//
//  1. ionization electrons merge into their nearest surviving ancestor
//  2. low-energy scatters merge into a touching ancestor
//  3. per-particle voxel contributions below threshold are removed, then
//     large Compton and other shower electrons are promoted
//  4. conversion electrons merge into their nearest surviving ancestor
//  5. showers merge into a touching shower, delta or Michel parent
//  6. touching showers with a common shower ancestor merge
//  7. small delta rays merge into their parent
//
// Merges conserve energy; only the threshold stage removes any.
func (a *Aggregation) Group(opts GroupOptions, threshold float64, log *monitoring.Logger) {
	if opts.MergeIonizations {
		a.mergeIntoAncestor(label.ProcessIonization, log, "ionization")
	}
	if opts.MergeTouchingLEScatter {
		a.mergeTouchingLEScatter(opts.TouchDistance, log)
	}
	a.applyThreshold(threshold, log)
	a.promote(opts.ComptonSize)
	if opts.MergeConversions {
		a.mergeIntoAncestor(label.ProcessConversion, log, "conversion")
	}
	if opts.MergeShowerFamilyTouching {
		a.mergeShowerFamilyTouching(opts.TouchDistance, log)
	}
	if opts.MergeShowerTouching {
		a.mergeShowerTouching(opts.TouchDistance, log)
	}
	if opts.MergeDeltas {
		a.mergeDeltas(opts.DeltaSize, log)
	}
}

func (a *Aggregation) mergeIntoAncestor(pt label.ProcessType, log *monitoring.Logger, reason string) {
	for _, p := range a.live() {
		if p.processType != pt {
			continue
		}
		if dst := a.survivingAncestor(p); dst != nil {
			a.absorb(p, dst, log, reason)
		}
	}
}

func (a *Aggregation) mergeTouchingLEScatter(dist int, log *monitoring.Logger) {
	for _, p := range a.live() {
		if p.semantic != label.LEScatter || len(p.voxels) == 0 {
			continue
		}
		for _, anc := range a.forest.Ancestors(p.node.Record.TrackID) {
			dst := a.particles[anc]
			if dst.absorbed {
				continue
			}
			if a.touching(p, dst, dist) {
				a.absorb(p, dst, log, "touching")
				break
			}
		}
	}
}

// applyThreshold removes voxel contributions below threshold. A particle
// left without voxels is marked so the label drops it.
func (a *Aggregation) applyThreshold(threshold float64, log *monitoring.Logger) {
	if threshold <= 0 {
		return
	}
	min, err := voxel.ToFixed(threshold)
	for _, p := range a.live() {
		if len(p.voxels) == 0 {
			continue
		}
		for id, acc := range p.voxels {
			if err != nil || acc.Energy.Cmp(min) < 0 {
				delete(p.voxels, id)
			}
		}
		if len(p.voxels) == 0 {
			p.cleared = true
			if log != nil {
				log.Tracef("event %s: track %d has no voxel above %g", a.EventID, p.node.Record.TrackID, threshold)
			}
		}
	}
}

// promote relabels Compton and other shower electrons with more than size
// voxels as high-energy showers.
func (a *Aggregation) promote(size int) {
	for _, p := range a.live() {
		promoted := p.processType
		switch {
		case p.processType == label.ProcessCompton && len(p.voxels) > size:
			promoted = label.ProcessComptonHE
		case p.processType == label.ProcessOtherShower && len(p.voxels) > size:
			promoted = label.ProcessOtherShowerHE
		}
		if promoted != p.processType {
			p.processType = promoted
			if !p.node.Inherited {
				p.semantic = SemanticOf(promoted, p.node.Record.PDG, a.parentPDG(p))
			}
		}
	}
}

func (a *Aggregation) mergeShowerFamilyTouching(dist int, log *monitoring.Logger) {
	for merged := true; merged; {
		merged = false
		for _, p := range a.live() {
			if p.absorbed || p.semantic != label.Shower || p.parent == label.NoParent {
				continue
			}
			dst := a.survivingAncestor(p)
			if dst == nil {
				continue
			}
			switch dst.semantic {
			case label.Shower, label.Delta, label.Michel:
			default:
				continue
			}
			if a.touching(p, dst, dist) {
				a.absorb(p, dst, log, "shower family")
				merged = true
			}
		}
	}
}

func (a *Aggregation) mergeShowerTouching(dist int, log *monitoring.Logger) {
	for merged := true; merged; {
		merged = false
		var showers []*particleAgg
		for _, p := range a.live() {
			if p.semantic == label.Shower && len(p.voxels) > 0 {
				showers = append(showers, p)
			}
		}
		for i, p := range showers {
			if p.absorbed {
				continue
			}
			family := a.showerFamily(p)
			for _, q := range showers[i+1:] {
				if q.absorbed || !a.sharesShowerAncestor(family, q) || !a.touching(p, q, dist) {
					continue
				}
				src, dst := q, p
				if len(p.voxels) < len(q.voxels) {
					src, dst = p, q
				}
				a.absorb(src, dst, log, "touching shower")
				merged = true
				if src == p {
					break
				}
				family = a.showerFamily(p)
			}
		}
	}
}

// showerFamily returns p's track id and those of its surviving ancestors
// of shower, delta or Michel class, stopping at the first track-like
// ancestor.
func (a *Aggregation) showerFamily(p *particleAgg) map[truth.TrackID]bool {
	id := p.node.Record.TrackID
	family := map[truth.TrackID]bool{id: true}
	for _, anc := range a.forest.Ancestors(id) {
		q := a.particles[anc]
		if q.absorbed {
			continue
		}
		switch q.semantic {
		case label.Track, label.Unknown:
			return family
		case label.Shower, label.Delta, label.Michel:
			family[anc] = true
		}
	}
	return family
}

func (a *Aggregation) sharesShowerAncestor(family map[truth.TrackID]bool, q *particleAgg) bool {
	for id := range a.showerFamily(q) {
		if family[id] {
			return true
		}
	}
	return false
}

func (a *Aggregation) mergeDeltas(size int, log *monitoring.Logger) {
	for _, p := range a.live() {
		if p.absorbed || p.semantic != label.Delta {
			continue
		}
		dst := a.survivingAncestor(p)
		if dst == nil {
			continue
		}
		if len(p.voxels) < size || unshared(p, dst) < size {
			a.absorb(p, dst, log, "delta")
		}
	}
}

func (a *Aggregation) parentPDG(p *particleAgg) int32 {
	if p.node.Parent == label.NoParent {
		return 0
	}
	return a.forest.nodes[p.node.Parent].Record.PDG
}

// survivingAncestor follows the current parent links to the first
// particle that has not been absorbed.
func (a *Aggregation) survivingAncestor(p *particleAgg) *particleAgg {
	for id := p.parent; id != label.NoParent; {
		q := a.particles[id]
		if !q.absorbed {
			return q
		}
		id = q.parent
	}
	return nil
}

// unshared counts p's voxels that dst does not occupy.
func unshared(p, dst *particleAgg) int {
	n := 0
	for id := range p.voxels {
		if _, ok := dst.voxels[id]; !ok {
			n++
		}
	}
	return n
}

func (a *Aggregation) touching(p, dst *particleAgg, dist int) bool {
	if len(dst.voxels) == 0 {
		return false
	}
	for id := range p.voxels {
		for dz := -dist; dz <= dist; dz++ {
			for dy := -dist; dy <= dist; dy++ {
				for dx := -dist; dx <= dist; dx++ {
					n := a.Meta.Shift(id, dx, dy, dz)
					if n == voxel.InvalidID {
						continue
					}
					if _, ok := dst.voxels[n]; ok {
						return true
					}
				}
			}
		}
	}
	return false
}

// absorb moves all of src's contributions into dst and re-links src's
// children to dst.
func (a *Aggregation) absorb(src, dst *particleAgg, log *monitoring.Logger, reason string) {
	for id, acc := range src.voxels {
		t := dst.voxels[id]
		t.Merge(acc)
		dst.voxels[id] = t
	}
	if src.hasSteps {
		dst.recordStep(src.first)
		dst.recordStep(src.last)
	}
	srcID := src.node.Record.TrackID
	dst.merged = append(dst.merged, srcID)
	dst.merged = append(dst.merged, src.merged...)
	src.voxels = map[voxel.ID]voxel.Accumulator{}
	src.merged = nil
	src.absorbed = true

	dstID := dst.node.Record.TrackID
	for _, q := range a.particles {
		if q.parent == srcID {
			q.parent = dstID
		}
	}
	if log != nil {
		log.Tracef("event %s: merged %s track %d into %d", a.EventID, reason, srcID, dstID)
	}
}

// Merged reports the track ids absorbed into id.
func (a *Aggregation) Merged(id truth.TrackID) []truth.TrackID {
	if p, ok := a.particles[id]; ok {
		return append([]truth.TrackID(nil), p.merged...)
	}
	return nil
}
