// Package verify compares expected and produced grids and labels and
// reports every differing field.
package verify

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// DefaultTolerance is the absolute and relative tolerance applied to
// floating-point aggregates.
const DefaultTolerance = 1e-6

// Diff is one mismatching field.
type Diff struct {
	Field    string
	Expected string
	Actual   string
}

func (d Diff) String() string {
	return fmt.Sprintf("%s: expected %s, got %s", d.Field, d.Expected, d.Actual)
}

// Report collects the differences found by a comparison.
type Report struct {
	Diffs []Diff
}

// OK reports whether no differences were found.
func (r Report) OK() bool { return len(r.Diffs) == 0 }

// Fields returns the names of the differing fields.
func (r Report) Fields() []string {
	out := make([]string, len(r.Diffs))
	for i, d := range r.Diffs {
		out[i] = d.Field
	}
	return out
}

func (r Report) String() string {
	if r.OK() {
		return "OK"
	}
	var b strings.Builder
	for _, d := range r.Diffs {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (r *Report) add(field string, expected, actual interface{}) {
	r.Diffs = append(r.Diffs, Diff{Field: field, Expected: fmt.Sprint(expected), Actual: fmt.Sprint(actual)})
}

// Options controls how aggregates are compared.
type Options struct {
	// Strict compares voxel arrays element by element instead of by sum
	// and cardinality.
	Strict    bool
	Tolerance float64
}

// DefaultOptions compares aggregates by sum within DefaultTolerance.
func DefaultOptions() Options {
	return Options{Tolerance: DefaultTolerance}
}

type comparer struct {
	opts   Options
	report Report
}

func (c *comparer) float(field string, expected, actual float64) {
	if !scalar.EqualWithinAbsOrRel(expected, actual, c.opts.Tolerance, c.opts.Tolerance) {
		c.report.add(field, expected, actual)
	}
}

func (c *comparer) exact(field string, expected, actual interface{}) {
	if expected != actual {
		c.report.add(field, expected, actual)
	}
}

// point compares geometry, which is structural and therefore exact.
func (c *comparer) point(field string, expected, actual voxel.Point3D) {
	c.exact(field+".x", expected.X, actual.X)
	c.exact(field+".y", expected.Y, actual.Y)
	c.exact(field+".z", expected.Z, actual.Z)
}

func (c *comparer) meta(prefix string, expected, actual voxel.ImageMeta) {
	c.point(prefix+".origin", expected.Origin, actual.Origin)
	c.point(prefix+".pitch", expected.Pitch, actual.Pitch)
	c.exact(prefix+".nx", expected.NX, actual.NX)
	c.exact(prefix+".ny", expected.NY, actual.NY)
	c.exact(prefix+".nz", expected.NZ, actual.NZ)
}

func (c *comparer) set(field string, expected, actual voxel.Set) {
	if !c.opts.Strict {
		c.exact(field+".len", expected.Len(), actual.Len())
		c.float(field+".sum", floats.Sum(expected.Floats()), floats.Sum(actual.Floats()))
		return
	}
	want := make(map[voxel.ID]float64, expected.Len())
	for _, v := range expected.Values() {
		want[v.ID] = v.V
	}
	for _, v := range actual.Values() {
		e, ok := want[v.ID]
		if !ok {
			c.report.add(fmt.Sprintf("%s[%d]", field, v.ID), "absent", v.V)
			continue
		}
		c.float(fmt.Sprintf("%s[%d]", field, v.ID), e, v.V)
		delete(want, v.ID)
	}
	missing := make([]voxel.ID, 0, len(want))
	for id := range want {
		missing = append(missing, id)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	for _, id := range missing {
		c.report.add(fmt.Sprintf("%s[%d]", field, id), want[id], "absent")
	}
}

func (c *comparer) particle(expected, actual *label.Particle) {
	prefix := fmt.Sprintf("label.particles[%d]", expected.ID)
	c.exact(prefix+".parent", parentString(expected.ParentID), parentString(actual.ParentID))
	c.exact(prefix+".group", expected.GroupID, actual.GroupID)
	c.exact(prefix+".pdg", expected.PDG, actual.PDG)
	c.exact(prefix+".semantic", expected.Semantic, actual.Semantic)
	c.exact(prefix+".children", fmt.Sprint(expected.Children), fmt.Sprint(actual.Children))
	c.exact(prefix+".merged", fmt.Sprint(expected.Merged), fmt.Sprint(actual.Merged))
	c.float(prefix+".energy", expected.EnergyDeposit, actual.EnergyDeposit)
	c.float(prefix+".dedx", expected.DEDX, actual.DEDX)
	c.set(prefix+".voxels", expected.Voxels, actual.Voxels)
	c.set(prefix+".voxel_dedx", expected.VoxelDEDX, actual.VoxelDEDX)
}

func parentString(id truth.TrackID) string {
	if id == label.NoParent {
		return "none"
	}
	return fmt.Sprint(id)
}

// CompareMeta reports the fields in which two grids differ.
func CompareMeta(expected, actual voxel.ImageMeta, opts Options) Report {
	c := &comparer{opts: opts}
	c.meta("meta", expected, actual)
	return c.report
}

// CompareLabels reports the fields in which two labels differ. Particles
// are matched by id. Structural fields are compared exactly, aggregates
// within opts.Tolerance.
func CompareLabels(expected, actual *label.Label, opts Options) Report {
	c := &comparer{opts: opts}
	if expected == nil || actual == nil {
		if expected != actual {
			c.report.add("label", expected != nil, actual != nil)
		}
		return c.report
	}

	c.meta("label.meta", expected.Meta, actual.Meta)
	c.set("label.energy", expected.Energy, actual.Energy)
	c.set("label.dedx", expected.DEDX, actual.DEDX)
	c.exact("label.dropped", expected.DroppedDeposits, actual.DroppedDeposits)
	c.exact("label.particles.len", len(expected.Particles), len(actual.Particles))

	for i := range expected.Particles {
		e := &expected.Particles[i]
		a, ok := actual.Particle(e.ID)
		if !ok {
			c.report.add(fmt.Sprintf("label.particles[%d]", e.ID), "present", "absent")
			continue
		}
		c.particle(e, a)
	}
	for i := range actual.Particles {
		a := &actual.Particles[i]
		if _, ok := expected.Particle(a.ID); !ok {
			c.report.add(fmt.Sprintf("label.particles[%d]", a.ID), "absent", "present")
		}
	}
	return c.report
}

// VerifyEventMeta reports whether two grids match.
func VerifyEventMeta(expected, actual voxel.ImageMeta) bool {
	return CompareMeta(expected, actual, DefaultOptions()).OK()
}

// VerifyEventLabels reports whether two labels match.
func VerifyEventLabels(expected, actual *label.Label) bool {
	return CompareLabels(expected, actual, DefaultOptions()).OK()
}
