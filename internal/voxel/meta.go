package voxel

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ID identifies a voxel by its row-major position in an ImageMeta:
// id = iz*(NX*NY) + iy*NX + ix.
type ID uint64

// InvalidID is returned for positions or shifts that fall outside the grid.
const InvalidID ID = math.MaxUint64

// ImageMeta describes an axis-aligned voxel grid: the minimum corner, the
// voxel pitch per axis and the voxel count per axis.
type ImageMeta struct {
	Origin Point3D `json:"origin"`
	Pitch  Point3D `json:"pitch"`
	NX     int     `json:"nx"`
	NY     int     `json:"ny"`
	NZ     int     `json:"nz"`
}

// NewImageMeta validates and returns a grid.
func NewImageMeta(origin, pitch Point3D, nx, ny, nz int) (ImageMeta, error) {
	m := ImageMeta{Origin: origin, Pitch: pitch, NX: nx, NY: ny, NZ: nz}
	if err := m.Validate(); err != nil {
		return ImageMeta{}, err
	}
	return m, nil
}

// Validate checks that pitch and counts are positive and finite.
func (m ImageMeta) Validate() error {
	for i, name := range []string{"x", "y", "z"} {
		p := m.Pitch.Axis(i)
		if !(p > 0) || math.IsInf(p, 0) {
			return fmt.Errorf("voxel pitch along %s must be positive, got %g", name, p)
		}
		o := m.Origin.Axis(i)
		if math.IsNaN(o) || math.IsInf(o, 0) {
			return fmt.Errorf("origin along %s must be finite, got %g", name, o)
		}
	}
	if m.NX <= 0 || m.NY <= 0 || m.NZ <= 0 {
		return fmt.Errorf("voxel counts must be positive, got [%d %d %d]", m.NX, m.NY, m.NZ)
	}
	if uint64(m.NX)*uint64(m.NY) > math.MaxUint64/uint64(m.NZ) {
		return errors.New("voxel count overflows the id space")
	}
	return nil
}

// Valid reports whether Validate succeeds.
func (m ImageMeta) Valid() bool { return m.Validate() == nil }

// NumVoxels returns NX*NY*NZ.
func (m ImageMeta) NumVoxels() uint64 { return uint64(m.NX) * uint64(m.NY) * uint64(m.NZ) }

// Counts returns the voxel counts as an array indexed by axis.
func (m ImageMeta) Counts() [3]int { return [3]int{m.NX, m.NY, m.NZ} }

// Max returns the maximum corner, Origin + counts*pitch.
func (m ImageMeta) Max() Point3D {
	return Point3D{
		X: m.Origin.X + float64(m.NX)*m.Pitch.X,
		Y: m.Origin.Y + float64(m.NY)*m.Pitch.Y,
		Z: m.Origin.Z + float64(m.NZ)*m.Pitch.Z,
	}
}

// Bounds returns the grid as a Box.
func (m ImageMeta) Bounds() Box { return NewBox(m.Origin, m.Max()) }

// Contains reports whether p lies inside the grid, upper faces included.
func (m ImageMeta) Contains(p Point3D) bool { return m.ID(p) != InvalidID }

// axisIndex maps a coordinate onto a voxel index along one axis. The upper
// face belongs to the last voxel.
func axisIndex(v, origin, pitch float64, n int) (int, bool) {
	if math.IsNaN(v) {
		return 0, false
	}
	max := origin + float64(n)*pitch
	if v < origin || v > max {
		return 0, false
	}
	idx := int(math.Floor((v - origin) / pitch))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx, true
}

// ID returns the voxel containing p, or InvalidID when p is outside.
func (m ImageMeta) ID(p Point3D) ID {
	ix, ok := axisIndex(p.X, m.Origin.X, m.Pitch.X, m.NX)
	if !ok {
		return InvalidID
	}
	iy, ok := axisIndex(p.Y, m.Origin.Y, m.Pitch.Y, m.NY)
	if !ok {
		return InvalidID
	}
	iz, ok := axisIndex(p.Z, m.Origin.Z, m.Pitch.Z, m.NZ)
	if !ok {
		return InvalidID
	}
	return m.Index(ix, iy, iz)
}

// Index returns the id of voxel (ix, iy, iz), or InvalidID when any index
// is out of range.
func (m ImageMeta) Index(ix, iy, iz int) ID {
	if ix < 0 || iy < 0 || iz < 0 || ix >= m.NX || iy >= m.NY || iz >= m.NZ {
		return InvalidID
	}
	return ID(uint64(iz)*uint64(m.NX)*uint64(m.NY) + uint64(iy)*uint64(m.NX) + uint64(ix))
}

// XYZIndex splits id into per-axis indices.
func (m ImageMeta) XYZIndex(id ID) (ix, iy, iz int, ok bool) {
	if id == InvalidID || uint64(id) >= m.NumVoxels() {
		return 0, 0, 0, false
	}
	plane := uint64(m.NX) * uint64(m.NY)
	v := uint64(id)
	iz = int(v / plane)
	v -= uint64(iz) * plane
	iy = int(v / uint64(m.NX))
	ix = int(v - uint64(iy)*uint64(m.NX))
	return ix, iy, iz, true
}

// Position returns the centre of voxel id.
func (m ImageMeta) Position(id ID) (Point3D, bool) {
	ix, iy, iz, ok := m.XYZIndex(id)
	if !ok {
		return Point3D{}, false
	}
	return Point3D{
		X: m.Origin.X + (float64(ix)+0.5)*m.Pitch.X,
		Y: m.Origin.Y + (float64(iy)+0.5)*m.Pitch.Y,
		Z: m.Origin.Z + (float64(iz)+0.5)*m.Pitch.Z,
	}, true
}

// Shift returns the id of the voxel offset from id by (dx, dy, dz), or
// InvalidID when the result leaves the grid.
func (m ImageMeta) Shift(id ID, dx, dy, dz int) ID {
	ix, iy, iz, ok := m.XYZIndex(id)
	if !ok {
		return InvalidID
	}
	return m.Index(ix+dx, iy+dy, iz+dz)
}

// Distance returns the Chebyshev distance between two voxels in index
// units, or -1 when either id is invalid.
func (m ImageMeta) Distance(a, b ID) int {
	ax, ay, az, ok := m.XYZIndex(a)
	if !ok {
		return -1
	}
	bx, by, bz, ok := m.XYZIndex(b)
	if !ok {
		return -1
	}
	d := absInt(ax - bx)
	if v := absInt(ay - by); v > d {
		d = v
	}
	if v := absInt(az - bz); v > d {
		d = v
	}
	return d
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Dump renders the grid as text, one line per axis.
func (m ImageMeta) Dump() string {
	var b strings.Builder
	max := m.Max()
	fmt.Fprintf(&b, "X range: %g => %g ... %d bins (pitch %g)\n", m.Origin.X, max.X, m.NX, m.Pitch.X)
	fmt.Fprintf(&b, "Y range: %g => %g ... %d bins (pitch %g)\n", m.Origin.Y, max.Y, m.NY, m.Pitch.Y)
	fmt.Fprintf(&b, "Z range: %g => %g ... %d bins (pitch %g)\n", m.Origin.Z, max.Z, m.NZ, m.Pitch.Z)
	return b.String()
}

func (m ImageMeta) String() string {
	return fmt.Sprintf("ImageMeta{origin=%v pitch=%v counts=[%d %d %d]}", m.Origin, m.Pitch, m.NX, m.NY, m.NZ)
}
