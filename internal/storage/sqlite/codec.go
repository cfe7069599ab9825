package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// voxelEntrySize is the blob size of one voxel: id (8) + value (8).
const voxelEntrySize = 16

// maxBlobVoxels bounds decoding of untrusted blobs.
const maxBlobVoxels = 1 << 26

// encodeVoxels packs a set as little-endian (uint64 id, float64 value)
// pairs in id order.
func encodeVoxels(s voxel.Set) []byte {
	values := s.Values()
	blob := make([]byte, len(values)*voxelEntrySize)
	for i, v := range values {
		off := i * voxelEntrySize
		binary.LittleEndian.PutUint64(blob[off:], uint64(v.ID))
		binary.LittleEndian.PutUint64(blob[off+8:], math.Float64bits(v.V))
	}
	return blob
}

func decodeVoxels(blob []byte) (voxel.Set, error) {
	if len(blob)%voxelEntrySize != 0 {
		return voxel.Set{}, fmt.Errorf("voxel blob length %d is not a multiple of %d", len(blob), voxelEntrySize)
	}
	n := len(blob) / voxelEntrySize
	if n > maxBlobVoxels {
		return voxel.Set{}, fmt.Errorf("voxel blob holds %d voxels (max %d)", n, maxBlobVoxels)
	}
	values := make([]voxel.Value, n)
	for i := range values {
		off := i * voxelEntrySize
		values[i] = voxel.Value{
			ID: voxel.ID(binary.LittleEndian.Uint64(blob[off:])),
			V:  math.Float64frombits(binary.LittleEndian.Uint64(blob[off+8:])),
		}
	}
	return voxel.NewSet(values), nil
}

type storedVertex struct {
	X float64 `cbor:"1,keyasint"`
	Y float64 `cbor:"2,keyasint"`
	Z float64 `cbor:"3,keyasint"`
	T float64 `cbor:"4,keyasint"`
}

func toStoredVertex(v voxel.Vertex) storedVertex {
	return storedVertex{X: v.X, Y: v.Y, Z: v.Z, T: v.T}
}

func (v storedVertex) vertex() voxel.Vertex {
	return voxel.Vertex{Point3D: voxel.Point3D{X: v.X, Y: v.Y, Z: v.Z}, T: v.T}
}

// storedParticle is the CBOR record of one label particle. Voxel sets are
// embedded as the same binary blobs used for the event arrays.
type storedParticle struct {
	ID            uint32        `cbor:"1,keyasint"`
	ParentID      uint32        `cbor:"2,keyasint"`
	AncestorID    uint32        `cbor:"3,keyasint"`
	GroupID       uint32        `cbor:"4,keyasint"`
	PDG           int32         `cbor:"5,keyasint"`
	Process       string        `cbor:"6,keyasint"`
	ProcessType   uint8         `cbor:"7,keyasint"`
	Semantic      uint8         `cbor:"8,keyasint"`
	EnergyInit    float64       `cbor:"9,keyasint"`
	EnergyDeposit float64       `cbor:"10,keyasint"`
	DEDX          float64       `cbor:"11,keyasint"`
	Voxels        []byte        `cbor:"12,keyasint"`
	VoxelDEDX     []byte        `cbor:"13,keyasint"`
	Children      []uint32      `cbor:"14,keyasint,omitempty"`
	Merged        []uint32      `cbor:"15,keyasint,omitempty"`
	FirstStep     *storedVertex `cbor:"16,keyasint,omitempty"`
	LastStep      *storedVertex `cbor:"17,keyasint,omitempty"`
}

type storedOwners struct {
	ID     uint64   `cbor:"1,keyasint"`
	Tracks []uint32 `cbor:"2,keyasint"`
}

func toUint32s(ids []truth.TrackID) []uint32 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}

func toTrackIDs(ids []uint32) []truth.TrackID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]truth.TrackID, len(ids))
	for i, id := range ids {
		out[i] = truth.TrackID(id)
	}
	return out
}

func encodeParticles(ps []label.Particle) ([]byte, error) {
	out := make([]storedParticle, len(ps))
	for i, p := range ps {
		sp := storedParticle{
			ID:            uint32(p.ID),
			ParentID:      uint32(p.ParentID),
			AncestorID:    uint32(p.AncestorID),
			GroupID:       uint32(p.GroupID),
			PDG:           p.PDG,
			Process:       p.Process,
			ProcessType:   uint8(p.ProcessType),
			Semantic:      uint8(p.Semantic),
			EnergyInit:    p.EnergyInit,
			EnergyDeposit: p.EnergyDeposit,
			DEDX:          p.DEDX,
			Voxels:        encodeVoxels(p.Voxels),
			VoxelDEDX:     encodeVoxels(p.VoxelDEDX),
			Children:      toUint32s(p.Children),
			Merged:        toUint32s(p.Merged),
		}
		if p.HasSteps {
			first, last := toStoredVertex(p.FirstStep), toStoredVertex(p.LastStep)
			sp.FirstStep, sp.LastStep = &first, &last
		}
		out[i] = sp
	}
	return encMode.Marshal(out)
}

func decodeParticles(data []byte) ([]label.Particle, error) {
	var stored []storedParticle
	if err := decMode.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode particles: %w", err)
	}
	out := make([]label.Particle, len(stored))
	for i, sp := range stored {
		voxels, err := decodeVoxels(sp.Voxels)
		if err != nil {
			return nil, fmt.Errorf("particle %d voxels: %w", sp.ID, err)
		}
		dedx, err := decodeVoxels(sp.VoxelDEDX)
		if err != nil {
			return nil, fmt.Errorf("particle %d dedx: %w", sp.ID, err)
		}
		p := label.Particle{
			ID:            truth.TrackID(sp.ID),
			ParentID:      truth.TrackID(sp.ParentID),
			AncestorID:    truth.TrackID(sp.AncestorID),
			GroupID:       truth.TrackID(sp.GroupID),
			PDG:           sp.PDG,
			Process:       sp.Process,
			ProcessType:   label.ProcessType(sp.ProcessType),
			Semantic:      label.SemanticType(sp.Semantic),
			EnergyInit:    sp.EnergyInit,
			EnergyDeposit: sp.EnergyDeposit,
			DEDX:          sp.DEDX,
			Voxels:        voxels,
			VoxelDEDX:     dedx,
			Children:      toTrackIDs(sp.Children),
			Merged:        toTrackIDs(sp.Merged),
		}
		if sp.FirstStep != nil && sp.LastStep != nil {
			p.HasSteps = true
			p.FirstStep = sp.FirstStep.vertex()
			p.LastStep = sp.LastStep.vertex()
		}
		out[i] = p
	}
	return out, nil
}

func encodeOwners(owners []label.VoxelOwners) ([]byte, error) {
	if len(owners) == 0 {
		return nil, nil
	}
	out := make([]storedOwners, len(owners))
	for i, o := range owners {
		out[i] = storedOwners{ID: uint64(o.ID), Tracks: toUint32s(o.Tracks)}
	}
	return encMode.Marshal(out)
}

func decodeOwners(data []byte) ([]label.VoxelOwners, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var stored []storedOwners
	if err := decMode.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode voxel owners: %w", err)
	}
	out := make([]label.VoxelOwners, len(stored))
	for i, o := range stored {
		out[i] = label.VoxelOwners{ID: voxel.ID(o.ID), Tracks: toTrackIDs(o.Tracks)}
	}
	return out, nil
}
