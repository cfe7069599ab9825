// Package truth models the simulator output consumed by the labeling
// engine: particle lineage records and energy deposits for one event.
package truth

import (
	"math"

	"github.com/banshee-data/voxlabel/internal/errs"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// TrackID is the simulator's particle identifier.
type TrackID uint32

// ParticleRecord is the lineage record of one simulated particle.
type ParticleRecord struct {
	TrackID       TrackID       `json:"track_id"`
	ParentTrackID TrackID       `json:"parent_track_id"`
	PDG           int32         `json:"pdg"`
	Process       string        `json:"process"`
	Start         voxel.Vertex  `json:"start"`
	Momentum      voxel.Point3D `json:"momentum"`
	EnergyInit    float64       `json:"energy_init"`
}

// Deposit is one energy loss attributed to a particle. PathLength is the
// step length the energy was lost over; DEDX is an optional precomputed
// stopping power used when PathLength is not positive.
type Deposit struct {
	TrackID    TrackID       `json:"track_id"`
	Position   voxel.Point3D `json:"position"`
	Time       float64       `json:"time"`
	Energy     float64       `json:"energy"`
	PathLength float64       `json:"path_length,omitempty"`
	DEDX       float64       `json:"dedx,omitempty"`
}

// StoppingPower returns the deposit's dE/dx and whether it has one.
func (d Deposit) StoppingPower() (float64, bool) {
	if d.PathLength > 0 {
		return d.Energy / d.PathLength, true
	}
	if d.DEDX > 0 {
		return d.DEDX, true
	}
	return 0, false
}

// RawEvent is the simulator output for one physics event. Deposits holds
// step-level energy deposits, Points the point-cloud representation of the
// same energy loss; a labeling configuration selects one of them.
type RawEvent struct {
	ID        string           `json:"id"`
	Particles []ParticleRecord `json:"particles"`
	Deposits  []Deposit        `json:"deposits,omitempty"`
	Points    []Deposit        `json:"points,omitempty"`
}

// Validate checks for duplicate track ids and non-finite or negative
// deposit values.
func (e *RawEvent) Validate() error {
	seen := make(map[TrackID]struct{}, len(e.Particles))
	for _, p := range e.Particles {
		if _, dup := seen[p.TrackID]; dup {
			return errs.Data(e.ID, "duplicate track id %d", p.TrackID)
		}
		seen[p.TrackID] = struct{}{}
	}
	for _, set := range [][]Deposit{e.Deposits, e.Points} {
		for i, d := range set {
			if !finite(d.Position.X) || !finite(d.Position.Y) || !finite(d.Position.Z) {
				return errs.Data(e.ID, "deposit %d of track %d has non-finite position", i, d.TrackID)
			}
			if !finite(d.Energy) || d.Energy < 0 {
				return errs.Data(e.ID, "deposit %d of track %d has invalid energy %g", i, d.TrackID, d.Energy)
			}
			if !finite(d.PathLength) || !finite(d.DEDX) {
				return errs.Data(e.ID, "deposit %d of track %d has non-finite path length or dE/dx", i, d.TrackID)
			}
		}
	}
	return nil
}

// AllDeposits returns both deposit representations concatenated.
func (e *RawEvent) AllDeposits() []Deposit {
	out := make([]Deposit, 0, len(e.Deposits)+len(e.Points))
	out = append(out, e.Deposits...)
	return append(out, e.Points...)
}

// DepositBounds returns the bounding box of every deposit position.
func (e *RawEvent) DepositBounds() voxel.Box {
	var b voxel.Box
	for _, d := range e.Deposits {
		b.Extend(d.Position)
	}
	for _, d := range e.Points {
		b.Extend(d.Position)
	}
	return b
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
