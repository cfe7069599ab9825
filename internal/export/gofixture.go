// Package export writes events and their labels as Go source fixtures
// that rebuild the same values when compiled into a test package.
package export

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/banshee-data/voxlabel/internal/fsutil"
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/security"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

const modulePath = "github.com/banshee-data/voxlabel"

// Fixture is one event with the grid and label produced for it.
type Fixture struct {
	Event *truth.RawEvent
	Meta  voxel.ImageMeta
	Label *label.Label
}

// FuncName derives an exported Go identifier from an event id.
func FuncName(eventID string) string {
	var b strings.Builder
	b.WriteString("Event")
	upper := true
	for _, r := range eventID {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) || r > unicode.MaxASCII {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

type gen struct {
	buf bytes.Buffer
}

func (g *gen) p(format string, args ...interface{}) {
	fmt.Fprintf(&g.buf, format, args...)
}

func float(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func point(p voxel.Point3D) string {
	return fmt.Sprintf("voxel.Point3D{X: %s, Y: %s, Z: %s}", float(p.X), float(p.Y), float(p.Z))
}

func vertex(v voxel.Vertex) string {
	return fmt.Sprintf("voxel.Vertex{Point3D: %s, T: %s}", point(v.Point3D), float(v.T))
}

func tracks(ids []truth.TrackID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return "[]truth.TrackID{" + strings.Join(parts, ", ") + "}"
}

func set(s voxel.Set) string {
	if s.Len() == 0 {
		return "voxel.Set{}"
	}
	var b strings.Builder
	b.WriteString("voxel.NewSet([]voxel.Value{")
	for i, v := range s.Values() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "{ID: %d, V: %s}", uint64(v.ID), float(v.V))
	}
	b.WriteString("})")
	return b.String()
}

func parent(id truth.TrackID) string {
	if id == label.NoParent {
		return "label.NoParent"
	}
	return strconv.FormatUint(uint64(id), 10)
}

func (g *gen) deposits(name string, ds []truth.Deposit) {
	if len(ds) == 0 {
		return
	}
	g.p("%s: []truth.Deposit{\n", name)
	for _, d := range ds {
		g.p("{TrackID: %d, Position: %s, Time: %s, Energy: %s, PathLength: %s, DEDX: %s},\n",
			d.TrackID, point(d.Position), float(d.Time), float(d.Energy), float(d.PathLength), float(d.DEDX))
	}
	g.p("},\n")
}

func (g *gen) event(ev *truth.RawEvent) {
	g.p("ev := &truth.RawEvent{\nID: %q,\n", ev.ID)
	g.p("Particles: []truth.ParticleRecord{\n")
	for _, r := range ev.Particles {
		g.p("{TrackID: %d, ParentTrackID: %d, PDG: %d, Process: %q, Start: %s, Momentum: %s, EnergyInit: %s},\n",
			r.TrackID, r.ParentTrackID, r.PDG, r.Process, vertex(r.Start), point(r.Momentum), float(r.EnergyInit))
	}
	g.p("},\n")
	g.deposits("Deposits", ev.Deposits)
	g.deposits("Points", ev.Points)
	g.p("}\n")
}

func (g *gen) label(l *label.Label) {
	g.p("l := &label.Label{\nEventID: %q,\nMeta: meta,\n", l.EventID)
	g.p("Particles: []label.Particle{\n")
	for _, pt := range l.Particles {
		g.p("{\nID: %d, ParentID: %s, AncestorID: %d, GroupID: %d,\n", pt.ID, parent(pt.ParentID), pt.AncestorID, pt.GroupID)
		g.p("PDG: %d, Process: %q, ProcessType: label.Process%s, Semantic: label.%s,\n", pt.PDG, pt.Process, pt.ProcessType, pt.Semantic)
		g.p("EnergyInit: %s, EnergyDeposit: %s, DEDX: %s,\n", float(pt.EnergyInit), float(pt.EnergyDeposit), float(pt.DEDX))
		g.p("Voxels: %s,\nVoxelDEDX: %s,\n", set(pt.Voxels), set(pt.VoxelDEDX))
		if len(pt.Children) > 0 {
			g.p("Children: %s,\n", tracks(pt.Children))
		}
		if len(pt.Merged) > 0 {
			g.p("Merged: %s,\n", tracks(pt.Merged))
		}
		if pt.HasSteps {
			g.p("HasSteps: true, FirstStep: %s, LastStep: %s,\n", vertex(pt.FirstStep), vertex(pt.LastStep))
		}
		g.p("},\n")
	}
	g.p("},\n")
	g.p("Energy: %s,\nDEDX: %s,\n", set(l.Energy), set(l.DEDX))
	if len(l.Owners) > 0 {
		g.p("Owners: []label.VoxelOwners{\n")
		for _, o := range l.Owners {
			g.p("{ID: %d, Tracks: %s},\n", uint64(o.ID), tracks(o.Tracks))
		}
		g.p("},\n")
	}
	g.p("DroppedDeposits: %d,\n}\n", l.DroppedDeposits)
}

// GoFixture renders f as a gofmt'ed Go file in package pkg defining one
// function that returns the event, grid and label.
func GoFixture(pkg string, f Fixture) ([]byte, error) {
	if f.Event == nil || f.Label == nil {
		return nil, fmt.Errorf("fixture needs both an event and a label")
	}
	g := &gen{}
	g.p("// Code generated by supera export. DO NOT EDIT.\n\npackage %s\n\n", pkg)
	g.p("import (\n%q\n%q\n%q\n)\n\n", modulePath+"/internal/label", modulePath+"/internal/truth", modulePath+"/internal/voxel")

	name := FuncName(f.Event.ID)
	g.p("// %s returns event %q with its grid and label.\n", name, f.Event.ID)
	g.p("func %s() (*truth.RawEvent, voxel.ImageMeta, *label.Label) {\n", name)
	g.event(f.Event)
	g.p("meta := voxel.ImageMeta{Origin: %s, Pitch: %s, NX: %d, NY: %d, NZ: %d}\n",
		point(f.Meta.Origin), point(f.Meta.Pitch), f.Meta.NX, f.Meta.NY, f.Meta.NZ)
	g.label(f.Label)
	g.p("return ev, meta, l\n}\n")

	src, err := format.Source(g.buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format fixture for event %s: %w", f.Event.ID, err)
	}
	return src, nil
}

// WriteGoFixture writes f to dir/<event id>.go and returns the path.
func WriteGoFixture(fsys fsutil.FileSystem, dir, pkg string, f Fixture) (string, error) {
	src, err := GoFixture(pkg, f)
	if err != nil {
		return "", err
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path, err := security.OutputPath(dir, f.Event.ID, ".go")
	if err != nil {
		return "", err
	}
	if err := fsys.WriteFile(path, src, os.FileMode(0o644)); err != nil {
		return "", fmt.Errorf("failed to write fixture: %w", err)
	}
	return path, nil
}
