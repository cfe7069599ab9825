// Package driver runs the grid builder and the labeling pipeline for one
// event at a time and holds the current result.
package driver

import (
	"sort"
	"strings"
	"sync"

	"github.com/banshee-data/voxlabel/internal/bbox"
	"github.com/banshee-data/voxlabel/internal/config"
	"github.com/banshee-data/voxlabel/internal/errs"
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/labeling"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// BBoxAlgorithm builds the voxel grid for an event.
type BBoxAlgorithm interface {
	Name() string
	Configure(params config.Params) error
	BuildMeta(ev *truth.RawEvent) (voxel.ImageMeta, error)
}

// LabelAlgorithm builds the label of an event on a given grid.
type LabelAlgorithm interface {
	Name() string
	Configure(params config.Params) error
	BuildLabel(ev *truth.RawEvent, meta voxel.ImageMeta) (*label.Label, error)
}

// BBoxFactory returns a new, unconfigured grid builder.
type BBoxFactory func() BBoxAlgorithm

// LabelFactory returns a new, unconfigured labeling pipeline.
type LabelFactory func() LabelAlgorithm

// Registry maps algorithm names to factories.
type Registry struct {
	mu     sync.RWMutex
	bboxes map[string]BBoxFactory
	labels map[string]LabelFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bboxes: make(map[string]BBoxFactory),
		labels: make(map[string]LabelFactory),
	}
}

// RegisterBBox adds a grid builder. An existing entry of the same name is
// replaced.
func (r *Registry) RegisterBBox(name string, f BBoxFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bboxes[name] = f
}

// RegisterLabel adds a labeling pipeline. An existing entry of the same
// name is replaced.
func (r *Registry) RegisterLabel(name string, f LabelFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[name] = f
}

// NewBBox instantiates the grid builder registered under name. An unknown
// name is a ConfigError listing the known names.
func (r *Registry) NewBBox(name string) (BBoxAlgorithm, error) {
	r.mu.RLock()
	f, ok := r.bboxes[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.Config(name, "", "unknown bbox algorithm (known: %s)", strings.Join(r.BBoxNames(), ", "))
	}
	return f(), nil
}

// NewLabel instantiates the labeling pipeline registered under name.
func (r *Registry) NewLabel(name string) (LabelAlgorithm, error) {
	r.mu.RLock()
	f, ok := r.labels[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.Config(name, "", "unknown label algorithm (known: %s)", strings.Join(r.LabelNames(), ", "))
	}
	return f(), nil
}

// BBoxNames returns the registered grid builder names, sorted.
func (r *Registry) BBoxNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bboxes))
	for n := range r.bboxes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LabelNames returns the registered labeling pipeline names, sorted.
func (r *Registry) LabelNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.labels))
	for n := range r.labels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry pre-loaded with the built-in
// algorithms.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.RegisterBBox(bbox.Name, func() BBoxAlgorithm { return bbox.NewInteraction() })
	reg.RegisterLabel(labeling.Name, func() LabelAlgorithm { return labeling.NewMLReco3D() })
	return reg
}
