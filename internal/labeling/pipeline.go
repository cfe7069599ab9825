package labeling

import (
	"fmt"

	"github.com/banshee-data/voxlabel/internal/config"
	"github.com/banshee-data/voxlabel/internal/errs"
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/monitoring"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// Name is the registry name of the labeling pipeline.
const Name = "LArTPCMLReco3D"

// DefaultEnergyDepositThreshold is the per-voxel contribution threshold
// used when none is configured.
const DefaultEnergyDepositThreshold = 0.01

// Options is the typed configuration of MLReco3D.
type Options struct {
	EnergyDepositThreshold    float64
	UseSimEnergyDeposit       bool
	UseSimEnergyDepositPoints bool
	SemanticPriority          []label.SemanticType
	InheritAmbiguousClass     bool
	OrphanPolicy              OrphanPolicy
	Group                     GroupOptions
}

// DefaultOptions returns the configuration applied to omitted options.
func DefaultOptions() Options {
	return Options{
		EnergyDepositThreshold: DefaultEnergyDepositThreshold,
		UseSimEnergyDeposit:    true,
		SemanticPriority:       label.DefaultSemanticPriority(),
		InheritAmbiguousClass:  true,
		OrphanPolicy:           OrphanReparent,
		Group:                  DefaultGroupOptions(),
	}
}

// MLReco3D is the labeling pipeline: hierarchy, aggregation, grouping and
// threshold filtering.
type MLReco3D struct {
	opts       Options
	classifier Classifier
	log        *monitoring.Logger
	configured bool
}

// NewMLReco3D returns an unconfigured pipeline.
func NewMLReco3D() *MLReco3D {
	return &MLReco3D{
		opts:       DefaultOptions(),
		classifier: ProcessClassifier{},
		log:        monitoring.NewLogger(Name, monitoring.LevelInfo),
	}
}

// Name implements the labeling pipeline role.
func (m *MLReco3D) Name() string { return Name }

// Options returns the parsed configuration.
func (m *MLReco3D) Options() Options { return m.opts }

// SetClassifier replaces the classification rule.
func (m *MLReco3D) SetClassifier(c Classifier) { m.classifier = c }

// Configure parses and validates options. Unrecognized options are a
// ConfigError.
func (m *MLReco3D) Configure(params config.Params) error {
	p := config.NewParser(Name, params)
	opts := DefaultOptions()

	level := monitoring.LevelInfo
	if s, ok := p.Text("LogLevel"); ok {
		lv, err := monitoring.ParseLevel(s)
		if err != nil {
			p.Fail("LogLevel", "%v", err)
		}
		level = lv
	}

	opts.EnergyDepositThreshold = p.FloatOr("EnergyDepositThreshold", opts.EnergyDepositThreshold)
	opts.UseSimEnergyDeposit = p.BoolOr("UseSimEnergyDeposit", opts.UseSimEnergyDeposit)
	opts.UseSimEnergyDepositPoints = p.BoolOr("UseSimEnergyDepositPoints", opts.UseSimEnergyDepositPoints)
	opts.InheritAmbiguousClass = p.BoolOr("InheritAmbiguousClass", opts.InheritAmbiguousClass)
	if ints, ok := p.Ints("SemanticPriority"); ok {
		prio := make([]label.SemanticType, 0, len(ints))
		for _, v := range ints {
			if v < 0 || v >= int(label.Unknown) {
				p.Fail("SemanticPriority", "semantic class %d out of range [0, %d)", v, int(label.Unknown))
				break
			}
			prio = append(prio, label.SemanticType(v))
		}
		opts.SemanticPriority = prio
	}
	if s, ok := p.Text("OrphanPolicy"); ok {
		policy, err := ParseOrphanPolicy(s)
		if err != nil {
			p.Fail("OrphanPolicy", "%v", err)
		}
		opts.OrphanPolicy = policy
	}

	g := &opts.Group
	g.ComptonSize = int(p.IntOr("ComptonSize", int64(g.ComptonSize)))
	g.DeltaSize = int(p.IntOr("DeltaSize", int64(g.DeltaSize)))
	g.TouchDistance = int(p.IntOr("TouchDistance", int64(g.TouchDistance)))
	g.MergeIonizations = p.BoolOr("MergeIonizations", g.MergeIonizations)
	g.MergeTouchingLEScatter = p.BoolOr("MergeTouchingLEScatter", g.MergeTouchingLEScatter)
	g.MergeConversions = p.BoolOr("MergeConversions", g.MergeConversions)
	g.MergeShowerFamilyTouching = p.BoolOr("MergeShowerFamilyTouching", g.MergeShowerFamilyTouching)
	g.MergeShowerTouching = p.BoolOr("MergeShowerTouching", g.MergeShowerTouching)
	g.MergeDeltas = p.BoolOr("MergeDeltas", g.MergeDeltas)

	if _, err := p.Finish(true); err != nil {
		return err
	}
	if err := validate(opts); err != nil {
		return err
	}

	m.opts = opts
	m.log.SetLevel(level)
	m.configured = true
	m.log.Infof("configured: threshold=%g orphans=%s deposits=%s", opts.EnergyDepositThreshold, opts.OrphanPolicy, opts.depositSource())
	return nil
}

func validate(o Options) error {
	switch {
	case o.EnergyDepositThreshold < 0:
		return errs.Config(Name, "EnergyDepositThreshold", "must be non-negative, got %g", o.EnergyDepositThreshold)
	case o.UseSimEnergyDeposit && o.UseSimEnergyDepositPoints:
		return errs.Config(Name, "UseSimEnergyDepositPoints", "cannot be combined with UseSimEnergyDeposit")
	case !o.UseSimEnergyDeposit && !o.UseSimEnergyDepositPoints:
		return errs.Config(Name, "UseSimEnergyDeposit", "one of UseSimEnergyDeposit or UseSimEnergyDepositPoints must be True")
	case o.Group.ComptonSize < 0:
		return errs.Config(Name, "ComptonSize", "must be non-negative, got %d", o.Group.ComptonSize)
	case o.Group.DeltaSize < 0:
		return errs.Config(Name, "DeltaSize", "must be non-negative, got %d", o.Group.DeltaSize)
	case o.Group.TouchDistance < 0:
		return errs.Config(Name, "TouchDistance", "must be non-negative, got %d", o.Group.TouchDistance)
	}
	return nil
}

func (o Options) depositSource() string {
	if o.UseSimEnergyDepositPoints {
		return "points"
	}
	return "steps"
}

// deposits selects the configured deposit representation.
func (o Options) deposits(ev *truth.RawEvent) []truth.Deposit {
	if o.UseSimEnergyDepositPoints {
		return ev.Points
	}
	return ev.Deposits
}

// Aggregate runs the hierarchy, aggregation and grouping stages, the
// last of which applies the energy threshold, and returns the state the
// label is built from.
func (m *MLReco3D) Aggregate(ev *truth.RawEvent, meta voxel.ImageMeta) (*Aggregation, error) {
	if !m.configured {
		return nil, errs.Config(Name, "", "not configured")
	}
	if err := meta.Validate(); err != nil {
		return nil, errs.Config(Name, "", "invalid image meta: %v", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	forest, err := BuildHierarchy(ev, HierarchyOptions{
		Classifier:       m.classifier,
		InheritAmbiguous: m.opts.InheritAmbiguousClass,
	})
	if err != nil {
		return nil, err
	}
	agg, err := Aggregate(ev.ID, forest, meta, m.opts.deposits(ev), m.log)
	if err != nil {
		return nil, err
	}
	agg.Group(m.opts.Group, m.opts.EnergyDepositThreshold, m.log)
	agg.MinShowerVoxels = m.opts.Group.ComptonSize
	return agg, nil
}

// BuildLabel produces the final label for ev on meta.
func (m *MLReco3D) BuildLabel(ev *truth.RawEvent, meta voxel.ImageMeta) (*label.Label, error) {
	agg, err := m.Aggregate(ev, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Name, err)
	}
	l := agg.Filter(m.opts.EnergyDepositThreshold, m.opts.OrphanPolicy)
	m.log.Infof("event %s: %d particles, %d voxels, %.6g energy, %d deposits outside grid",
		ev.ID, len(l.Particles), l.Energy.Len(), l.TotalEnergy(), l.DroppedDeposits)
	return l, nil
}

// Semantics resolves per-voxel classes of l with the configured priority.
func (m *MLReco3D) Semantics(l *label.Label) voxel.Set {
	return l.Semantics(m.opts.SemanticPriority)
}
