package driver

import (
	"fmt"

	"github.com/banshee-data/voxlabel/internal/config"
	"github.com/banshee-data/voxlabel/internal/errs"
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/monitoring"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// State is the position of a Driver in its call sequence.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateMetaReady
	StateLabelReady
)

var stateNames = [...]string{"Unconfigured", "Configured", "MetaReady", "LabelReady"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Driver owns one grid builder and one labeling pipeline and keeps the
// result of the current event. A Driver is not safe for concurrent use;
// run one per goroutine.
type Driver struct {
	registry *Registry
	log      *monitoring.Logger

	bbox    BBoxAlgorithm
	labeler LabelAlgorithm

	state     State
	meta      voxel.ImageMeta
	metaEvent string
	label     *label.Label
}

// New creates an unconfigured driver resolving names through reg. A nil
// reg uses DefaultRegistry.
func New(reg *Registry) *Driver {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Driver{
		registry: reg,
		log:      monitoring.NewLogger("Driver", monitoring.LevelWarning),
	}
}

// State returns the current state.
func (d *Driver) State() State { return d.state }

// BBoxAlgorithm returns the configured grid builder, or nil.
func (d *Driver) BBoxAlgorithm() BBoxAlgorithm { return d.bbox }

// LabelAlgorithm returns the configured labeling pipeline, or nil.
func (d *Driver) LabelAlgorithm() LabelAlgorithm { return d.labeler }

// ConfigureBBoxAlgorithm selects and configures the grid builder. On
// error the previous configuration is kept. On success any stored result
// is discarded.
func (d *Driver) ConfigureBBoxAlgorithm(name string, params config.Params) error {
	a, err := d.registry.NewBBox(name)
	if err != nil {
		return err
	}
	if err := a.Configure(params); err != nil {
		return err
	}
	d.bbox = a
	d.reset()
	return nil
}

// ConfigureLabelAlgorithm selects and configures the labeling pipeline.
// On error the previous configuration is kept. On success any stored
// result is discarded.
func (d *Driver) ConfigureLabelAlgorithm(name string, params config.Params) error {
	a, err := d.registry.NewLabel(name)
	if err != nil {
		return err
	}
	if err := a.Configure(params); err != nil {
		return err
	}
	d.labeler = a
	d.reset()
	return nil
}

// Configure applies both algorithm selections of a run config.
func (d *Driver) Configure(rc config.RunConfig) error {
	if err := d.ConfigureBBoxAlgorithm(rc.BBox.Name, rc.BBox.Params); err != nil {
		return err
	}
	return d.ConfigureLabelAlgorithm(rc.Label.Name, rc.Label.Params)
}

func (d *Driver) reset() {
	d.meta = voxel.ImageMeta{}
	d.metaEvent = ""
	d.label = nil
	if d.bbox != nil && d.labeler != nil {
		d.state = StateConfigured
	} else {
		d.state = StateUnconfigured
	}
}

func (d *Driver) require(op string, want State) error {
	if d.state < want {
		return &errs.StateError{Op: op, State: d.state.String(), Want: want.String()}
	}
	return nil
}

// GenerateImageMeta builds and stores the grid for ev, replacing any
// stored result. On error the stored result is left as it was.
func (d *Driver) GenerateImageMeta(ev *truth.RawEvent) error {
	if err := d.require("GenerateImageMeta", StateConfigured); err != nil {
		return err
	}
	if ev == nil {
		return errs.Data("", "GenerateImageMeta: nil event")
	}
	meta, err := d.bbox.BuildMeta(ev)
	if err != nil {
		return err
	}
	d.meta = meta
	d.metaEvent = ev.ID
	d.label = nil
	d.state = StateMetaReady
	d.log.Debugf("event %s: meta %s", ev.ID, meta)
	return nil
}

// GenerateLabel builds and stores the label for ev on the stored grid,
// which must have been generated for the same event. On error the stored
// result is left as it was.
func (d *Driver) GenerateLabel(ev *truth.RawEvent) error {
	if err := d.require("GenerateLabel", StateMetaReady); err != nil {
		return err
	}
	if ev == nil {
		return errs.Data("", "GenerateLabel: nil event")
	}
	if ev.ID != d.metaEvent {
		return &errs.StateError{
			Op:    "GenerateLabel",
			State: fmt.Sprintf("%s for event %q", d.state, d.metaEvent),
			Want:  fmt.Sprintf("%s for event %q", StateMetaReady, ev.ID),
		}
	}
	l, err := d.labeler.BuildLabel(ev, d.meta)
	if err != nil {
		return err
	}
	d.label = l
	d.state = StateLabelReady
	return nil
}

// Process generates the grid and then the label for ev.
func (d *Driver) Process(ev *truth.RawEvent) (voxel.ImageMeta, *label.Label, error) {
	if err := d.GenerateImageMeta(ev); err != nil {
		return voxel.ImageMeta{}, nil, err
	}
	if err := d.GenerateLabel(ev); err != nil {
		return voxel.ImageMeta{}, nil, err
	}
	return d.meta, d.label, nil
}

// Meta returns the stored grid.
func (d *Driver) Meta() (voxel.ImageMeta, error) {
	if err := d.require("Meta", StateMetaReady); err != nil {
		return voxel.ImageMeta{}, err
	}
	return d.meta, nil
}

// Label returns the stored label.
func (d *Driver) Label() (*label.Label, error) {
	if err := d.require("Label", StateLabelReady); err != nil {
		return nil, err
	}
	return d.label, nil
}
