package constraint

import (
	"math"

	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// TransformKind is a transform channel group.
type TransformKind int

const (
	TransLocation TransformKind = iota
	TransRotation
	TransScale
)

var transformKindNames = []string{"location", "rotation", "scale"}

func (k TransformKind) MarshalYAML() (any, error) { return marshalEnum(k, transformKindNames) }
func (k *TransformKind) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalEnum(n, k, transformKindNames)
}

// RotChannelMode picks how a rotation is turned into three channel values.
type RotChannelMode int

const (
	RotChannelAuto RotChannelMode = iota
	RotChannelXYZ
	RotChannelXZY
	RotChannelYXZ
	RotChannelYZX
	RotChannelZXY
	RotChannelZYX
	// RotChannelQuaternion reads pseudo angles from the quaternion.
	RotChannelQuaternion
	// RotChannelSwingTwistX and friends give the twist about one axis and
	// the swing about the other two.
	RotChannelSwingTwistX
	RotChannelSwingTwistY
	RotChannelSwingTwistZ
)

var rotChannelModeNames = []string{
	"auto", "xyz", "xzy", "yxz", "yzx", "zxy", "zyx", "quaternion",
	"swing_twist_x", "swing_twist_y", "swing_twist_z",
}

func (m RotChannelMode) MarshalYAML() (any, error) { return marshalEnum(m, rotChannelModeNames) }
func (m *RotChannelMode) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalEnum(n, m, rotChannelModeNames)
}

// rotChannels converts the rotation of m into three angles.
func rotChannels(m mathutil.Mat4, autoOrder mathutil.RotOrder, mode RotChannelMode) mathutil.Vec3 {
	switch {
	case mode == RotChannelAuto:
		return m.ToEulO(autoOrder)
	case mode <= RotChannelZYX:
		return m.ToEulO(mathutil.RotOrder(mode))
	}

	q := mathutil.Mat3ToQuat(m.Mat3().Normalized())
	if q.W() < 0 {
		q = q.Scale(-1)
	}
	if mode == RotChannelQuaternion {
		return pseudoAngles(q)
	}

	axis := int(mode - RotChannelSwingTwistX)
	swing, twist := swingTwist(q, axis)
	out := pseudoAngles(swing)
	out[axis] = twist
	return out
}

func pseudoAngles(q mathutil.Quat) mathutil.Vec3 {
	var out mathutil.Vec3
	for i := range out {
		out[i] = 2 * math.Asin(mathutil.Clamp(q[i], -1, 1))
	}
	return out
}

// swingTwist splits q (w >= 0) into a swing and the twist angle about axis.
func swingTwist(q mathutil.Quat, axis int) (mathutil.Quat, float64) {
	t := math.Atan2(q[axis], q.W())
	var inv mathutil.Quat
	inv[3] = math.Cos(t)
	inv[axis] = -math.Sin(t)
	return mathutil.QuatMul(q, inv), 2 * t
}

// LocMix is how Transformation adds location output.
type LocMix int

const (
	LocMixAdd LocMix = iota
	LocMixReplace
)

var locMixNames = []string{"add", "replace"}

func (m LocMix) MarshalYAML() (any, error)          { return marshalEnum(m, locMixNames) }
func (m *LocMix) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, m, locMixNames) }

// RotMix is how Transformation combines rotation output.
type RotMix int

const (
	RotMixAddEuler RotMix = iota
	RotMixReplaceEuler
	RotMixBeforeEuler
	RotMixAfterEuler
)

var rotMixNames = []string{"add", "replace", "before", "after"}

func (m RotMix) MarshalYAML() (any, error)          { return marshalEnum(m, rotMixNames) }
func (m *RotMix) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, m, rotMixNames) }

// ScaleMix is how Transformation combines scale output.
type ScaleMix int

const (
	ScaleMixReplace ScaleMix = iota
	ScaleMixMultiply
)

var scaleMixNames = []string{"replace", "multiply"}

func (m ScaleMix) MarshalYAML() (any, error)          { return marshalEnum(m, scaleMixNames) }
func (m *ScaleMix) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, m, scaleMixNames) }

// Range is a per-axis interval.
type Range struct {
	Min mathutil.Vec3 `yaml:"min,flow"`
	Max mathutil.Vec3 `yaml:"max,flow"`
}

func unitRange() Range {
	return Range{Min: mathutil.Vec3{1, 1, 1}, Max: mathutil.Vec3{1, 1, 1}}
}

// TransformationData maps one channel group of the target onto a channel
// group of the owner through linear ranges.
type TransformationData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`

	From TransformKind `yaml:"map_from"`
	To   TransformKind `yaml:"map_to"`
	// Map picks the source axis of each output axis.
	Map [3]Axis `yaml:"map,flow"`
	// Extrapolate lets values outside the source range run on.
	Extrapolate bool `yaml:"use_motion_extrapolate"`

	FromRotationMode RotChannelMode `yaml:"from_rotation_mode"`
	ToEulerOrder     EulerOrder     `yaml:"to_euler_order"`

	FromLoc   Range `yaml:"from_location"`
	FromRot   Range `yaml:"from_rotation"`
	FromScale Range `yaml:"from_scale"`
	ToLoc     Range `yaml:"to_location"`
	ToRot     Range `yaml:"to_rotation"`
	ToScale   Range `yaml:"to_scale"`

	MixLoc   LocMix   `yaml:"mix_mode_location"`
	MixRot   RotMix   `yaml:"mix_mode_rotation"`
	MixScale ScaleMix `yaml:"mix_mode_scale"`
}

func (d *TransformationData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type transformationType struct {
	typeBase
	singleTarget
}

func (transformationType) NewData() any {
	return &TransformationData{
		Map:       [3]Axis{AxisX, AxisY, AxisZ},
		FromScale: unitRange(),
		ToScale:   unitRange(),
	}
}

func (transformationType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*TransformationData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	ct := targets[0]

	var dvec mathutil.Vec3
	var from Range
	switch d.From {
	case TransScale:
		dvec = ct.Matrix.Size()
		// which axis is negative cannot be told apart; flip them all
		if ct.Matrix.IsNegative() {
			dvec = dvec.Neg()
		}
		from = d.FromScale
	case TransRotation:
		dvec = rotChannels(ct.Matrix, cob.RotOrder, d.FromRotationMode)
		from = d.FromRot
	default:
		dvec = ct.Matrix.Translation()
		from = d.FromLoc
	}

	rotOrder := cob.RotOrder
	if d.To == TransRotation {
		rotOrder = d.ToEulerOrder.resolve(cob.RotOrder)
	}

	loc, rot, size := cob.Matrix.LocRotSize()

	var sval mathutil.Vec3
	for i := 0; i < 3; i++ {
		if !d.Extrapolate {
			dvec[i] = mathutil.Clamp(dvec[i], from.Min[i], from.Max[i])
		}
		if rng := from.Max[i] - from.Min[i]; rng != 0 {
			sval[i] = (dvec[i] - from.Min[i]) / rng
		}
	}

	remap := func(to Range) mathutil.Vec3 {
		var out mathutil.Vec3
		for i := 0; i < 3; i++ {
			src := int(mathutil.Clamp(float64(d.Map[i]), 0, 2))
			out[i] = to.Min[i] + sval[src]*(to.Max[i]-to.Min[i])
		}
		return out
	}

	switch d.To {
	case TransScale:
		newsize := remap(d.ToScale)
		if d.MixScale == ScaleMixMultiply {
			size = size.Mul(newsize)
		} else {
			size = newsize
		}
	case TransRotation:
		neweul := remap(d.ToRot)
		switch d.MixRot {
		case RotMixReplaceEuler:
			rot = mathutil.EulOToMat3(neweul, rotOrder)
		case RotMixBeforeEuler:
			rot = mathutil.Mat3Mul(mathutil.EulOToMat3(neweul, rotOrder), rot)
		case RotMixAfterEuler:
			rot = mathutil.Mat3Mul(rot, mathutil.EulOToMat3(neweul, rotOrder))
		default:
			oldeul := mathutil.Mat3ToEulO(rot, rotOrder)
			rot = mathutil.EulOToMat3(neweul.Add(oldeul), rotOrder)
		}
	default:
		newloc := remap(d.ToLoc)
		if d.MixLoc == LocMixReplace {
			loc = newloc
		} else {
			loc = loc.Add(newloc)
		}
	}

	cob.Matrix = mathutil.LocRotSizeToMat4(loc, rot, size)
}
