// Package voxel holds the 3-D grid geometry shared by the grid builder and
// the labeling pipeline: points, the ImageMeta voxel grid, sparse per-voxel
// value sets and the fixed-point accumulators used for order-independent
// aggregation.
package voxel

import (
	"fmt"
	"math"
)

// Point3D is a position or extent in detector coordinates (cm).
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns p + q.
func (p Point3D) Add(q Point3D) Point3D { return Point3D{p.X + q.X, p.Y + q.Y, p.Z + q.Z} }

// Sub returns p - q.
func (p Point3D) Sub(q Point3D) Point3D { return Point3D{p.X - q.X, p.Y - q.Y, p.Z - q.Z} }

// Scale returns p scaled by s.
func (p Point3D) Scale(s float64) Point3D { return Point3D{p.X * s, p.Y * s, p.Z * s} }

// Min returns the component-wise minimum.
func (p Point3D) Min(q Point3D) Point3D {
	return Point3D{math.Min(p.X, q.X), math.Min(p.Y, q.Y), math.Min(p.Z, q.Z)}
}

// Max returns the component-wise maximum.
func (p Point3D) Max(q Point3D) Point3D {
	return Point3D{math.Max(p.X, q.X), math.Max(p.Y, q.Y), math.Max(p.Z, q.Z)}
}

// Axis returns component i (0=x, 1=y, 2=z).
func (p Point3D) Axis(i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// WithAxis returns a copy of p with component i replaced by v.
func (p Point3D) WithAxis(i int, v float64) Point3D {
	switch i {
	case 0:
		p.X = v
	case 1:
		p.Y = v
	default:
		p.Z = v
	}
	return p
}

// SquaredDistance returns |p-q|^2.
func (p Point3D) SquaredDistance(q Point3D) float64 {
	d := p.Sub(q)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}

func (p Point3D) String() string {
	return fmt.Sprintf("(%g, %g, %g)", p.X, p.Y, p.Z)
}

// Vertex is a space-time point.
type Vertex struct {
	Point3D
	T float64 `json:"t"`
}

// Box is an axis-aligned bounding box. The zero Box is empty.
type Box struct {
	Min   Point3D
	Max   Point3D
	valid bool
}

// NewBox returns the box spanning min and max.
func NewBox(min, max Point3D) Box { return Box{Min: min, Max: max, valid: true} }

// Empty reports whether the box has never been extended.
func (b Box) Empty() bool { return !b.valid }

// Extend grows the box to include p.
func (b *Box) Extend(p Point3D) {
	if !b.valid {
		b.Min, b.Max, b.valid = p, p, true
		return
	}
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
}

// Intersect returns the overlap of b and o. The result is empty when the
// boxes do not overlap on some axis.
func (b Box) Intersect(o Box) Box {
	if b.Empty() || o.Empty() {
		return Box{}
	}
	lo := b.Min.Max(o.Min)
	hi := b.Max.Min(o.Max)
	if lo.X > hi.X || lo.Y > hi.Y || lo.Z > hi.Z {
		return Box{}
	}
	return NewBox(lo, hi)
}

// Size returns Max - Min.
func (b Box) Size() Point3D { return b.Max.Sub(b.Min) }

// Center returns the midpoint of the box.
func (b Box) Center() Point3D { return b.Min.Add(b.Max).Scale(0.5) }
