// Package labeling turns one RawEvent and its ImageMeta into a Label: it
// rebuilds the particle hierarchy, bins deposits into voxels, groups
// shower fragments and applies the energy threshold.
package labeling

import (
	"sort"

	"github.com/banshee-data/voxlabel/internal/errs"
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/truth"
)

// Node is one particle of the hierarchy.
type Node struct {
	Record      truth.ParticleRecord
	Parent      truth.TrackID
	Ancestor    truth.TrackID
	Depth       int
	Children    []truth.TrackID
	ProcessType label.ProcessType
	Semantic    label.SemanticType
	// Inherited is set when Semantic came from an ancestor.
	Inherited bool
}

// Forest is the parent/child structure of an event's particles.
type Forest struct {
	nodes map[truth.TrackID]*Node
	roots []truth.TrackID
	order []truth.TrackID
}

// HierarchyOptions controls classification while building the forest.
type HierarchyOptions struct {
	Classifier Classifier
	// InheritAmbiguous gives particles classified label.Unknown the class
	// of their nearest classified ancestor.
	InheritAmbiguous bool
}

// BuildHierarchy links every particle record to its parent. A particle
// whose parent id is its own id, or names no particle in the event, is a
// root. Duplicate ids and parent cycles are DataErrors.
func BuildHierarchy(ev *truth.RawEvent, opts HierarchyOptions) (*Forest, error) {
	if opts.Classifier == nil {
		opts.Classifier = ProcessClassifier{}
	}
	f := &Forest{nodes: make(map[truth.TrackID]*Node, len(ev.Particles))}
	for _, rec := range ev.Particles {
		if _, dup := f.nodes[rec.TrackID]; dup {
			return nil, errs.Data(ev.ID, "duplicate track id %d", rec.TrackID)
		}
		f.nodes[rec.TrackID] = &Node{Record: rec, Parent: label.NoParent}
	}

	for id, n := range f.nodes {
		pid := n.Record.ParentTrackID
		if pid == id {
			continue
		}
		if parent, ok := f.nodes[pid]; ok {
			n.Parent = pid
			parent.Children = append(parent.Children, id)
		}
	}

	if err := f.checkAcyclic(ev.ID); err != nil {
		return nil, err
	}

	for id, n := range f.nodes {
		sort.Slice(n.Children, func(i, j int) bool { return n.Children[i] < n.Children[j] })
		if n.Parent == label.NoParent {
			f.roots = append(f.roots, id)
		}
	}
	sort.Slice(f.roots, func(i, j int) bool { return f.roots[i] < f.roots[j] })

	f.order = make([]truth.TrackID, 0, len(f.nodes))
	var stack []truth.TrackID
	for i := len(f.roots) - 1; i >= 0; i-- {
		stack = append(stack, f.roots[i])
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		f.order = append(f.order, id)
		n := f.nodes[id]
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}

	for _, id := range f.order {
		n := f.nodes[id]
		var parentRec *truth.ParticleRecord
		if n.Parent != label.NoParent {
			p := f.nodes[n.Parent]
			parentRec = &p.Record
			n.Ancestor = p.Ancestor
			n.Depth = p.Depth + 1
		} else {
			n.Ancestor = id
		}
		n.ProcessType, n.Semantic = opts.Classifier.Classify(n.Record, parentRec)
		if n.Semantic == label.Unknown && opts.InheritAmbiguous && n.Parent != label.NoParent {
			if ps := f.nodes[n.Parent].Semantic; ps != label.Unknown {
				n.Semantic = ps
				n.Inherited = true
			}
		}
	}
	return f, nil
}

// checkAcyclic walks every parent chain with a visited set. States:
// 0 unvisited, 1 on the current chain, 2 known to reach a root.
func (f *Forest) checkAcyclic(event string) error {
	state := make(map[truth.TrackID]uint8, len(f.nodes))
	for start := range f.nodes {
		var chain []truth.TrackID
		id := start
		for id != label.NoParent && state[id] == 0 {
			state[id] = 1
			chain = append(chain, id)
			id = f.nodes[id].Parent
		}
		if id != label.NoParent && state[id] == 1 {
			return errs.Data(event, "parent cycle through track id %d", id)
		}
		for _, c := range chain {
			state[c] = 2
		}
	}
	return nil
}

// Node returns the node for id.
func (f *Forest) Node(id truth.TrackID) (*Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// Len returns the number of particles.
func (f *Forest) Len() int { return len(f.nodes) }

// Roots returns the root ids in ascending order.
func (f *Forest) Roots() []truth.TrackID { return append([]truth.TrackID(nil), f.roots...) }

// Order returns every id depth-first, parents before children, siblings
// and roots in ascending id order.
func (f *Forest) Order() []truth.TrackID { return append([]truth.TrackID(nil), f.order...) }

// Ancestors returns the parent chain of id, nearest first.
func (f *Forest) Ancestors(id truth.TrackID) []truth.TrackID {
	var out []truth.TrackID
	n, ok := f.nodes[id]
	for ok && n.Parent != label.NoParent {
		out = append(out, n.Parent)
		n, ok = f.nodes[n.Parent]
	}
	return out
}
