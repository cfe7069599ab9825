// Package bbox builds the voxel grid (ImageMeta) for an event.
package bbox

import (
	"math"
	"math/rand"

	"github.com/banshee-data/voxlabel/internal/config"
	"github.com/banshee-data/voxlabel/internal/errs"
	"github.com/banshee-data/voxlabel/internal/monitoring"
	"github.com/banshee-data/voxlabel/internal/timeutil"
	"github.com/banshee-data/voxlabel/internal/truth"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// Name is the registry name of the interaction bounding-box builder.
const Name = "BBoxInteraction"

// quantizeTolerance absorbs floating-point error in size/pitch so that
// 740/0.4 yields 1850 voxels rather than 1851.
const quantizeTolerance = 1e-9

// Policy selects how the grid extent is determined.
type Policy int

const (
	// PolicyFixed uses the configured box for every event.
	PolicyFixed Policy = iota
	// PolicyInteraction derives the box from the event's deposits.
	PolicyInteraction
)

func (p Policy) String() string {
	if p == PolicyFixed {
		return "fixed"
	}
	return "interaction"
}

// Options is the typed configuration of Interaction.
type Options struct {
	Pitch  voxel.Point3D
	Size   *voxel.Point3D
	Bottom *voxel.Point3D
	Top    *voxel.Point3D

	WorldBottom *voxel.Point3D
	WorldTop    *voxel.Point3D

	// Seed drives the placement draw when the active region is larger than
	// the box. Negative seeds are taken from the clock.
	Seed int64
}

// Interaction places a box either at a fixed position or around the
// event's energy deposits, clamped to the world volume.
type Interaction struct {
	opts   Options
	policy Policy
	log    *monitoring.Logger
	clock  timeutil.Clock

	configured bool
}

// NewInteraction returns an unconfigured builder.
func NewInteraction() *Interaction {
	return &Interaction{
		log:   monitoring.NewLogger(Name, monitoring.LevelInfo),
		clock: timeutil.RealClock{},
	}
}

// SetClock replaces the clock used for time-derived seeds.
func (a *Interaction) SetClock(c timeutil.Clock) { a.clock = c }

// Name implements the grid builder role.
func (a *Interaction) Name() string { return Name }

// Policy returns the policy chosen by the last Configure.
func (a *Interaction) Policy() Policy { return a.policy }

// Options returns the parsed configuration.
func (a *Interaction) Options() Options { return a.opts }

func vecPtr(p *config.Parser, key string) *voxel.Point3D {
	if v, ok := p.Vec3(key); ok {
		return &v
	}
	return nil
}

// Configure parses and validates options. Unrecognized options are logged
// and otherwise ignored.
func (a *Interaction) Configure(params config.Params) error {
	p := config.NewParser(Name, params)

	level := monitoring.LevelInfo
	if s, ok := p.Text("LogLevel"); ok {
		lv, err := monitoring.ParseLevel(s)
		if err != nil {
			p.Fail("LogLevel", "%v", err)
		}
		level = lv
	}

	var opts Options
	pitch, hasPitch := p.Vec3("VoxelSize")
	opts.Pitch = pitch
	opts.Size = vecPtr(p, "BBoxSize")
	opts.Bottom = vecPtr(p, "BBoxBottom")
	opts.Top = vecPtr(p, "BBoxTop")
	opts.WorldBottom = vecPtr(p, "WorldBoundBottom")
	opts.WorldTop = vecPtr(p, "WorldBoundTop")
	opts.Seed = p.IntOr("Seed", 0)

	unused, err := p.Finish(false)
	if err != nil {
		return err
	}
	if !hasPitch {
		return errs.Config(Name, "VoxelSize", "required option missing")
	}

	policy, err := resolve(&opts)
	if err != nil {
		return err
	}

	a.opts = opts
	a.policy = policy
	a.log.SetLevel(level)
	a.configured = true
	for _, k := range unused {
		a.log.Warnf("ignoring unrecognized option %q", k)
	}
	a.log.Infof("configured %s policy: %s", policy, params)
	return nil
}

// resolve validates opts and fills Bottom/Size for the fixed policy.
func resolve(opts *Options) (Policy, error) {
	for i, axis := range []string{"x", "y", "z"} {
		if v := opts.Pitch.Axis(i); !(v > 0) || math.IsInf(v, 0) {
			return 0, errs.Config(Name, "VoxelSize", "pitch along %s must be positive, got %g", axis, v)
		}
	}
	if opts.Size != nil {
		if err := positive("BBoxSize", *opts.Size); err != nil {
			return 0, err
		}
	}
	if (opts.WorldBottom == nil) != (opts.WorldTop == nil) {
		return 0, errs.Config(Name, "WorldBoundBottom", "WorldBoundBottom and WorldBoundTop must be given together")
	}
	if opts.WorldBottom != nil {
		if err := positive("WorldBoundTop", opts.WorldTop.Sub(*opts.WorldBottom)); err != nil {
			return 0, err
		}
	}

	if opts.Bottom == nil && opts.Top == nil {
		return PolicyInteraction, nil
	}

	switch {
	case opts.Bottom != nil && opts.Top != nil:
		size := opts.Top.Sub(*opts.Bottom)
		if err := positive("BBoxTop", size); err != nil {
			return 0, err
		}
		if opts.Size != nil && !sameVec(*opts.Size, size) {
			return 0, errs.Config(Name, "BBoxSize", "conflicts with BBoxTop - BBoxBottom: %v vs %v", *opts.Size, size)
		}
		opts.Size = &size
	case opts.Size == nil:
		return 0, errs.Config(Name, "BBoxSize", "neither BBoxSize nor BBoxTop is set for a fixed box")
	case opts.Bottom == nil:
		bottom := opts.Top.Sub(*opts.Size)
		opts.Bottom = &bottom
	default:
		top := opts.Bottom.Add(*opts.Size)
		opts.Top = &top
	}
	return PolicyFixed, nil
}

func positive(option string, v voxel.Point3D) error {
	for i, axis := range []string{"x", "y", "z"} {
		if c := v.Axis(i); !(c > 0) || math.IsInf(c, 0) {
			return errs.Config(Name, option, "extent along %s must be positive, got %g", axis, c)
		}
	}
	return nil
}

func sameVec(a, b voxel.Point3D) bool {
	for i := 0; i < 3; i++ {
		x, y := a.Axis(i), b.Axis(i)
		if math.Abs(x-y) > quantizeTolerance*math.Max(math.Abs(x), math.Abs(y)) {
			return false
		}
	}
	return true
}

// VoxelCount returns the number of voxels of the given pitch needed to
// cover size, at least one.
func VoxelCount(size, pitch float64) int {
	n := int(math.Ceil(size/pitch - quantizeTolerance))
	if n < 1 {
		return 1
	}
	return n
}

// coverCount returns the smallest voxel count whose extent from min reaches
// max, so every point of the region falls inside the grid.
func coverCount(min, max, pitch float64) int {
	n := int(math.Ceil((max - min) / pitch))
	if n < 1 {
		n = 1
	}
	for min+float64(n)*pitch < max {
		n++
	}
	return n
}

func metaFor(origin, size, pitch voxel.Point3D) (voxel.ImageMeta, error) {
	m, err := voxel.NewImageMeta(origin, pitch,
		VoxelCount(size.X, pitch.X), VoxelCount(size.Y, pitch.Y), VoxelCount(size.Z, pitch.Z))
	if err != nil {
		return voxel.ImageMeta{}, errs.Config(Name, "", "%v", err)
	}
	return m, nil
}

// BuildMeta computes the grid for ev. ev may be nil for the fixed policy.
func (a *Interaction) BuildMeta(ev *truth.RawEvent) (voxel.ImageMeta, error) {
	if !a.configured {
		return voxel.ImageMeta{}, errs.Config(Name, "", "not configured")
	}
	if a.policy == PolicyFixed {
		return metaFor(*a.opts.Bottom, *a.opts.Size, a.opts.Pitch)
	}

	region, err := a.activeRegion(ev)
	if err != nil {
		return voxel.ImageMeta{}, err
	}
	if a.opts.Size == nil {
		pitch := a.opts.Pitch
		m, err := voxel.NewImageMeta(region.Min, pitch,
			coverCount(region.Min.X, region.Max.X, pitch.X),
			coverCount(region.Min.Y, region.Max.Y, pitch.Y),
			coverCount(region.Min.Z, region.Max.Z, pitch.Z))
		if err != nil {
			return voxel.ImageMeta{}, errs.Config(Name, "", "%v", err)
		}
		a.log.Debugf("event %s: grid spans active region %v - %v", eventID(ev), region.Min, region.Max)
		return m, nil
	}

	size := *a.opts.Size
	center := region.Center()
	rng := rand.New(rand.NewSource(a.seed()))
	extent := region.Size()
	for i := 0; i < 3; i++ {
		if extent.Axis(i) > size.Axis(i) {
			offset := extent.Axis(i) / 2
			center = center.WithAxis(i, center.Axis(i)+offset*(2*rng.Float64()-1))
		}
	}
	origin := center.Sub(size.Scale(0.5))
	a.log.Debugf("event %s: box centred at %v", eventID(ev), center)
	return metaFor(origin, size, a.opts.Pitch)
}

// activeRegion is the deposit bounding box overlapped with the world
// volume, or the world volume when the event has no deposits.
func (a *Interaction) activeRegion(ev *truth.RawEvent) (voxel.Box, error) {
	var active voxel.Box
	if ev != nil {
		active = ev.DepositBounds()
	}
	hasWorld := a.opts.WorldBottom != nil
	var world voxel.Box
	if hasWorld {
		world = voxel.NewBox(*a.opts.WorldBottom, *a.opts.WorldTop)
	}

	switch {
	case active.Empty() && !hasWorld:
		return voxel.Box{}, errs.Config(Name, "WorldBoundBottom",
			"event %s: no world bound is set and there are no energy deposits to define a box", eventID(ev))
	case active.Empty():
		return world, nil
	case !hasWorld:
		return active, nil
	}
	overlap := active.Intersect(world)
	if overlap.Empty() {
		return voxel.Box{}, errs.Config(Name, "WorldBoundBottom",
			"event %s: energy deposits lie entirely outside the world bounds", eventID(ev))
	}
	return overlap, nil
}

func (a *Interaction) seed() int64 {
	if a.opts.Seed >= 0 {
		return a.opts.Seed
	}
	return a.clock.Now().UnixNano()
}

func eventID(ev *truth.RawEvent) string {
	if ev == nil {
		return "<none>"
	}
	return ev.ID
}
