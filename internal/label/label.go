package label

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// Particle is one labeled particle. Voxels holds its per-voxel energy and
// VoxelDEDX the energy-weighted dE/dx over the same voxels.
type Particle struct {
	ID          truth.TrackID
	ParentID    truth.TrackID
	AncestorID  truth.TrackID
	GroupID     truth.TrackID
	PDG         int32
	Process     string
	ProcessType ProcessType
	Semantic    SemanticType
	EnergyInit  float64

	EnergyDeposit float64
	DEDX          float64
	Voxels        voxel.Set
	VoxelDEDX     voxel.Set

	Children []truth.TrackID
	Merged   []truth.TrackID

	HasSteps  bool
	FirstStep voxel.Vertex
	LastStep  voxel.Vertex
}

// IsRoot reports whether the particle has no parent.
func (p *Particle) IsRoot() bool { return p.ParentID == NoParent }

// VoxelOwners lists the particles contributing energy to one voxel.
type VoxelOwners struct {
	ID     voxel.ID
	Tracks []truth.TrackID
}

// Label is the complete output for one event. Particles are sorted by id;
// Energy, DEDX and Owners are in row-major voxel order.
type Label struct {
	EventID   string
	Meta      voxel.ImageMeta
	Particles []Particle
	Energy    voxel.Set
	DEDX      voxel.Set
	Owners    []VoxelOwners

	// DroppedDeposits counts deposits that fell outside the grid.
	DroppedDeposits int
}

// Particle returns the particle with the given id.
func (l *Label) Particle(id truth.TrackID) (*Particle, bool) {
	i := sort.Search(len(l.Particles), func(i int) bool { return l.Particles[i].ID >= id })
	if i < len(l.Particles) && l.Particles[i].ID == id {
		return &l.Particles[i], true
	}
	return nil, false
}

// TotalEnergy returns the sum of the per-voxel energies.
func (l *Label) TotalEnergy() float64 {
	return floats.Sum(l.Energy.Floats())
}

// ParticleEnergy returns the sum of particle deposited energies.
func (l *Label) ParticleEnergy() float64 {
	es := make([]float64, len(l.Particles))
	for i := range l.Particles {
		es[i] = l.Particles[i].EnergyDeposit
	}
	return floats.Sum(es)
}

// Semantics resolves a class per occupied voxel. Where particles of
// different classes share a voxel, priority decides. Values are the class
// as float64.
func (l *Label) Semantics(priority []SemanticType) voxel.Set {
	winner := make(map[voxel.ID]SemanticType)
	for i := range l.Particles {
		p := &l.Particles[i]
		for _, id := range p.Voxels.IDs() {
			prev, ok := winner[id]
			if !ok {
				winner[id] = p.Semantic
				continue
			}
			winner[id] = Prioritize(prev, p.Semantic, priority)
		}
	}
	m := make(map[voxel.ID]float64, len(winner))
	for id, s := range winner {
		m[id] = float64(s)
	}
	return voxel.SetFromMap(m)
}

// Dump renders the label as text for debugging and golden comparisons.
func (l *Label) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event %q\n", l.EventID)
	b.WriteString(l.Meta.Dump())
	fmt.Fprintf(&b, "Voxels: %d  Energy: %.6g  Dropped deposits: %d\n", l.Energy.Len(), l.TotalEnergy(), l.DroppedDeposits)
	fmt.Fprintf(&b, "Particles: %d\n", len(l.Particles))
	for i := range l.Particles {
		b.WriteString(l.Particles[i].Dump())
	}
	return b.String()
}

// Dump renders one particle as a single line.
func (p *Particle) Dump() string {
	parent := "none"
	if !p.IsRoot() {
		parent = fmt.Sprintf("%d", p.ParentID)
	}
	line := fmt.Sprintf("  [%d] parent=%s group=%d ancestor=%d pdg=%d process=%s type=%s semantic=%s voxels=%d energy=%.6g dedx=%.6g",
		p.ID, parent, p.GroupID, p.AncestorID, p.PDG, p.Process, p.ProcessType, p.Semantic,
		p.Voxels.Len(), p.EnergyDeposit, p.DEDX)
	if len(p.Children) > 0 {
		line += fmt.Sprintf(" children=%v", p.Children)
	}
	if len(p.Merged) > 0 {
		line += fmt.Sprintf(" merged=%v", p.Merged)
	}
	return line + "\n"
}
