package constraint

import (
	"math"

	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// LimitFlag enables the bounds of the location and scale limits.
type LimitFlag uint32

const (
	LimitXMin LimitFlag = 1 << iota
	LimitXMax
	LimitYMin
	LimitYMax
	LimitZMin
	LimitZMax
)

var limitFlagNames = []string{"min_x", "max_x", "min_y", "max_y", "min_z", "max_z"}

func (f LimitFlag) MarshalYAML() (any, error)          { return marshalFlags(f, limitFlagNames) }
func (f *LimitFlag) UnmarshalYAML(n *yaml.Node) error { return unmarshalFlags(n, f, limitFlagNames) }

// LimitData bounds three components of the owner.
type LimitData struct {
	Flag LimitFlag     `yaml:"flag"`
	Min  mathutil.Vec3 `yaml:"min"`
	Max  mathutil.Vec3 `yaml:"max"`
}

// clamp limits v per axis by the enabled bounds.
func (d *LimitData) clamp(v mathutil.Vec3) mathutil.Vec3 {
	for i := 0; i < 3; i++ {
		if d.Flag&(LimitXMin<<(2*i)) != 0 {
			v[i] = math.Max(v[i], d.Min[i])
		}
		if d.Flag&(LimitXMax<<(2*i)) != 0 {
			v[i] = math.Min(v[i], d.Max[i])
		}
	}
	return v
}

// LimitLocationData bounds the owner's location.
type LimitLocationData struct {
	LimitData `yaml:",inline"`
}

type limitLocationType struct{ typeBase }

func (limitLocationType) NewData() any { return &LimitLocationData{} }

func (limitLocationType) Evaluate(c *Constraint, cob *EvalContext, _ []*Target) {
	d := c.Data.(*LimitLocationData)
	cob.Matrix.SetTranslation(d.clamp(cob.Matrix.Translation()))
}

// LimitScaleData bounds the owner's scale.
type LimitScaleData struct {
	LimitData `yaml:",inline"`
}

type limitScaleType struct{ typeBase }

func (limitScaleType) NewData() any {
	return &LimitScaleData{LimitData{Min: mathutil.Vec3{1, 1, 1}, Max: mathutil.Vec3{1, 1, 1}}}
}

func (limitScaleType) Evaluate(c *Constraint, cob *EvalContext, _ []*Target) {
	d := c.Data.(*LimitScaleData)
	obsize := cob.Matrix.Size()
	size := d.clamp(obsize)
	for i := 0; i < 3; i++ {
		if obsize[i] != 0 {
			cob.Matrix.SetAxis(i, cob.Matrix.Axis(i).Scale(size[i]/obsize[i]))
		}
	}
}

// EulerOrder selects the decomposition order of rotation constraints. Auto
// uses the owner's order.
type EulerOrder int

// EulerAuto defers to the owner; the other values match mathutil.RotOrder.
const EulerAuto EulerOrder = 0

var eulerOrderNames = []string{"auto", "xyz", "xzy", "yxz", "yzx", "zxy", "zyx"}

func (o EulerOrder) MarshalYAML() (any, error)          { return marshalEnum(o, eulerOrderNames) }
func (o *EulerOrder) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, o, eulerOrderNames) }

func (o EulerOrder) resolve(owner mathutil.RotOrder) mathutil.RotOrder {
	if o <= EulerAuto || o > EulerOrder(mathutil.EulerZYX) {
		return owner
	}
	return mathutil.RotOrder(o)
}

// RotLimitFlag enables the axes of Limit Rotation.
type RotLimitFlag uint32

const (
	LimitRotX RotLimitFlag = 1 << iota
	LimitRotY
	LimitRotZ
	// LimitRotLegacy clamps angles as plain numbers instead of on the circle.
	LimitRotLegacy
)

var rotLimitFlagNames = []string{"x", "y", "z", "legacy"}

func (f RotLimitFlag) MarshalYAML() (any, error)          { return marshalFlags(f, rotLimitFlagNames) }
func (f *RotLimitFlag) UnmarshalYAML(n *yaml.Node) error { return unmarshalFlags(n, f, rotLimitFlagNames) }

// LimitRotationData bounds the Euler angles of the owner, in radians.
type LimitRotationData struct {
	Flag       RotLimitFlag  `yaml:"flag"`
	EulerOrder EulerOrder    `yaml:"euler_order"`
	Min        mathutil.Vec3 `yaml:"min"`
	Max        mathutil.Vec3 `yaml:"max"`
}

type limitRotationType struct{ typeBase }

func (limitRotationType) NewData() any { return &LimitRotationData{} }

func (limitRotationType) Evaluate(c *Constraint, cob *EvalContext, _ []*Target) {
	d := c.Data.(*LimitRotationData)

	// Euler math does not cope with shear; Y is kept since bones point along it
	cob.Matrix = cob.Matrix.OrthogonalizeStable(1, false)

	if d.Flag&(LimitRotX|LimitRotY|LimitRotZ) == 0 {
		return
	}
	order := d.EulerOrder.resolve(cob.RotOrder)

	loc, size := cob.Matrix.Translation(), cob.Matrix.Size()
	eul := cob.Matrix.ToEulO(order)
	for i := 0; i < 3; i++ {
		if d.Flag&(LimitRotX<<i) == 0 {
			continue
		}
		if d.Flag&LimitRotLegacy != 0 {
			eul[i] = mathutil.Clamp(eul[i], d.Min[i], d.Max[i])
		} else {
			eul[i] = clampAngle(eul[i], d.Min[i], d.Max[i])
		}
	}
	cob.Matrix = mathutil.LocEulOSizeToMat4(loc, eul, size, order)
}

// clampAngle clamps angle into the directed arc from min to max on the unit
// circle. Arcs of a full turn or more leave it alone; max <= min gives min.
func clampAngle(angle, min, max float64) float64 {
	if max-min >= 2*math.Pi {
		return angle
	}
	if max <= min {
		return min
	}

	// work relative to angle so it sits at zero
	lo := mathutil.AngleWrap(min - angle)
	hi := mathutil.AngleWrap(max - angle)

	if lo < hi {
		return angle + mathutil.Clamp(0, lo, hi)
	}
	// the arc crosses ±π
	if hi >= 0 || lo <= 0 {
		return angle
	}
	if math.Abs(hi) < math.Abs(lo) {
		return angle + hi
	}
	return angle + lo
}

// LimitDistanceMode picks which side of the sphere the owner is kept on.
type LimitDistanceMode int

const (
	LimitDistInside LimitDistanceMode = iota
	LimitDistOutside
	LimitDistOnSurface
)

var limitDistanceModeNames = []string{"inside", "outside", "on_surface"}

func (m LimitDistanceMode) MarshalYAML() (any, error) { return marshalEnum(m, limitDistanceModeNames) }
func (m *LimitDistanceMode) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalEnum(n, m, limitDistanceModeNames)
}

// LimitDistanceFlag holds Limit Distance options.
type LimitDistanceFlag uint32

// LimitDistSoft fades in the clamp over Soft units.
const LimitDistSoft LimitDistanceFlag = 1

var limitDistanceFlagNames = []string{"soft"}

func (f LimitDistanceFlag) MarshalYAML() (any, error) { return marshalFlags(f, limitDistanceFlagNames) }
func (f *LimitDistanceFlag) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalFlags(n, f, limitDistanceFlagNames)
}

// LimitDistanceData keeps the owner within, outside or on a sphere around
// the target. A zero Dist is replaced by the current distance on first solve.
type LimitDistanceData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`

	Dist float64           `yaml:"distance"`
	Soft float64           `yaml:"soft"`
	Mode LimitDistanceMode `yaml:"mode"`
	Flag LimitDistanceFlag `yaml:"flag"`
}

func (d *LimitDistanceData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type limitDistanceType struct {
	typeBase
	singleTarget
}

func (limitDistanceType) NewData() any { return &LimitDistanceData{} }

func (limitDistanceType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*LimitDistanceData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	ct := targets[0]

	own, tar := cob.Matrix.Translation(), ct.Matrix.Translation()
	dist := own.Dist(tar)

	if d.Dist == 0 {
		d.Dist = dist
		baked := d.Dist
		cob.writeback(c, func(orig *Constraint) {
			if od, ok := orig.Data.(*LimitDistanceData); ok {
				od.Dist = baked
			}
		})
	}

	sfac := 1.0
	clampSurf := false
	switch d.Mode {
	case LimitDistOutside:
		// soft fading is not implemented on this side
		if dist <= d.Dist {
			clampSurf = true
			if dist != 0 {
				sfac = d.Dist / dist
			}
		}
	case LimitDistInside:
		if dist >= d.Dist {
			clampSurf = true
			if dist != 0 {
				sfac = d.Dist / dist
			}
		} else if d.Flag&LimitDistSoft != 0 && dist >= d.Dist-d.Soft {
			sfac = d.Soft*(1-math.Exp(-(dist-d.Dist)/d.Soft)) + d.Dist
			if dist != 0 {
				sfac /= dist
			}
			clampSurf = true
		}
	default:
		if math.Abs(dist-d.Dist) >= fltEpsilon {
			clampSurf = true
			if dist != 0 {
				sfac = d.Dist / dist
			}
		}
	}

	if clampSurf {
		cob.Matrix.SetTranslation(tar.Lerp(own, sfac))
	}
}

// ResetDistance makes the next solve store the current distance.
func (d *LimitDistanceData) ResetDistance() { d.Dist = 0 }
