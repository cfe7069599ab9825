package voxel

import (
	"sort"
)

// Value is one voxel entry of a sparse Set.
type Value struct {
	ID ID      `json:"id"`
	V  float64 `json:"v"`
}

// Set is a sparse per-voxel array. Entries are unique and sorted by voxel
// id, which is the row-major order of the owning ImageMeta.
type Set struct {
	values []Value
}

// NewSet builds a Set from values in any order. Duplicate ids are summed.
func NewSet(values []Value) Set {
	if len(values) == 0 {
		return Set{}
	}
	vs := make([]Value, len(values))
	copy(vs, values)
	sort.Slice(vs, func(i, j int) bool { return vs[i].ID < vs[j].ID })
	out := vs[:1]
	for _, v := range vs[1:] {
		last := &out[len(out)-1]
		if last.ID == v.ID {
			last.V += v.V
			continue
		}
		out = append(out, v)
	}
	return Set{values: out}
}

// SetFromMap builds a Set from an id->value map.
func SetFromMap(m map[ID]float64) Set {
	vs := make([]Value, 0, len(m))
	for id, v := range m {
		vs = append(vs, Value{ID: id, V: v})
	}
	return NewSet(vs)
}

// Len returns the number of occupied voxels.
func (s Set) Len() int { return len(s.values) }

// Values returns a copy of the entries in id order.
func (s Set) Values() []Value {
	out := make([]Value, len(s.values))
	copy(out, s.values)
	return out
}

// IDs returns the occupied voxel ids in order.
func (s Set) IDs() []ID {
	out := make([]ID, len(s.values))
	for i, v := range s.values {
		out[i] = v.ID
	}
	return out
}

// Floats returns the values in id order.
func (s Set) Floats() []float64 {
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		out[i] = v.V
	}
	return out
}

// Get returns the value stored for id.
func (s Set) Get(id ID) (float64, bool) {
	i := sort.Search(len(s.values), func(i int) bool { return s.values[i].ID >= id })
	if i < len(s.values) && s.values[i].ID == id {
		return s.values[i].V, true
	}
	return 0, false
}

// Has reports whether id is occupied.
func (s Set) Has(id ID) bool {
	_, ok := s.Get(id)
	return ok
}

// Sum returns the sum of all values, accumulated in fixed point so the
// result does not depend on how the set was assembled. A set holding a
// value outside the fixed-point range sums in floating point.
func (s Set) Sum() float64 {
	var f Fixed
	for _, v := range s.values {
		x, err := ToFixed(v.V)
		if err != nil {
			return s.floatSum()
		}
		f = f.Add(x)
	}
	return f.Float()
}

func (s Set) floatSum() float64 {
	var sum float64
	for _, v := range s.values {
		sum += v.V
	}
	return sum
}
