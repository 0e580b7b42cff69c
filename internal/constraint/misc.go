package constraint

import (
	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// FloorFlag holds Floor options.
type FloorFlag uint32

// FloorUseRotation works in the target's local frame so a tilted target
// gives a tilted floor.
const FloorUseRotation FloorFlag = 1

var floorFlagNames = []string{"use_rotation"}

func (f FloorFlag) MarshalYAML() (any, error)          { return marshalFlags(f, floorFlagNames) }
func (f *FloorFlag) UnmarshalYAML(n *yaml.Node) error { return unmarshalFlags(n, f, floorFlagNames) }

// FloorData keeps the owner on one side of a plane through the target.
type FloorData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`

	// Axis is the floor normal; negative axes put the floor above.
	Axis   TrackAxis `yaml:"floor_location"`
	Offset float64   `yaml:"offset"`
	Flag   FloorFlag `yaml:"flag"`
}

func (d *FloorData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type floorType struct {
	typeBase
	singleTarget
}

func (floorType) NewData() any { return &FloorData{Axis: TrackZ} }

func (floorType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*FloorData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	ct := targets[0]
	if d.Axis < TrackX || d.Axis > TrackNegZ {
		return
	}

	obmat, tarmat := cob.Matrix, ct.Matrix
	if d.Flag&FloorUseRotation != 0 {
		obmat = mathutil.Mat4Mul(tarmat.Inverse(), obmat)
		tarmat = identity()
	}

	idx := d.Axis.Index()
	tarLoc, obLoc := tarmat.Translation(), obmat.Translation()
	below := tarLoc[idx] > obLoc[idx]-d.Offset
	if d.Axis.Negative() {
		below = obLoc[idx]-d.Offset > tarLoc[idx]
	}
	if !below {
		return
	}

	obLoc[idx] = tarLoc[idx] + d.Offset
	obmat.SetTranslation(obLoc)
	if d.Flag&FloorUseRotation != 0 {
		cob.Matrix = mathutil.Mat4Mul(ct.Matrix, obmat)
		return
	}
	cob.Matrix.SetTranslation(obLoc)
}

// JointType is the kind of a rigid body joint.
type JointType int

const (
	JointBall JointType = iota
	JointHinge
	JointConeTwist
	JointGeneric6DOF
)

var jointTypeNames = []string{"ball", "hinge", "cone_twist", "generic_6dof"}

func (t JointType) MarshalYAML() (any, error)          { return marshalEnum(t, jointTypeNames) }
func (t *JointType) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, t, jointTypeNames) }

// RigidBodyJointData describes a physics joint between the owner and Tar.
// It is never solved here; it only takes part in target handling.
type RigidBodyJointData struct {
	Tar   *scene.Object `yaml:"-"`
	Child *scene.Object `yaml:"-"`

	Joint JointType     `yaml:"pivot_type"`
	Pivot mathutil.Vec3 `yaml:"pivot,flow"`
	Axis  mathutil.Vec3 `yaml:"axis,flow"`
	// Min and Max hold the three linear then three angular limits.
	Min [6]float64 `yaml:"min,flow"`
	Max [6]float64 `yaml:"max,flow"`
}

func (d *RigidBodyJointData) targetFields() (**scene.Object, *string) { return &d.Tar, nil }

type rigidBodyJointType struct {
	typeBase
	singleTarget
}

func (rigidBodyJointType) NewData() any { return &RigidBodyJointData{Joint: JointBall} }

func (rigidBodyJointType) LoopIDs(c *Constraint, fn IDFunc) {
	d := c.Data.(*RigidBodyJointData)
	fn(c, objectRef("target", &d.Tar), false)
	fn(c, objectRef("child", &d.Child), false)
}

// PivotAxis limits Pivot to rotations of one sign about an axis.
type PivotAxis int

const (
	PivotAlways PivotAxis = iota
	PivotNegX
	PivotNegY
	PivotNegZ
	PivotX
	PivotY
	PivotZ
)

var pivotAxisNames = []string{"always", "-x", "-y", "-z", "x", "y", "z"}

func (a PivotAxis) MarshalYAML() (any, error)          { return marshalEnum(a, pivotAxisNames) }
func (a *PivotAxis) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, a, pivotAxisNames) }

// PivotFlag holds Pivot options.
type PivotFlag uint32

// PivotOffsetAbsolute uses Offset as a world position when there is no
// target, instead of relative to the owner.
const PivotOffsetAbsolute PivotFlag = 1

var pivotFlagNames = []string{"offset_absolute"}

func (f PivotFlag) MarshalYAML() (any, error)          { return marshalFlags(f, pivotFlagNames) }
func (f *PivotFlag) UnmarshalYAML(n *yaml.Node) error { return unmarshalFlags(n, f, pivotFlagNames) }

// PivotData rotates the owner about a point other than its origin.
type PivotData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`

	Offset  mathutil.Vec3 `yaml:"offset,flow"`
	RotAxis PivotAxis     `yaml:"rotation_range"`
	Flag    PivotFlag     `yaml:"flag"`
}

func (d *PivotData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type pivotType struct {
	typeBase
	singleTarget
}

func (pivotType) NewData() any { return &PivotData{} }

func (pivotType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*PivotData)

	rotAxis := PivotAxis(mathutil.Clamp(float64(d.RotAxis), float64(PivotAlways), float64(PivotZ)))
	if rotAxis != PivotAlways {
		rot := cob.Matrix.ToEulO(cob.RotOrder)
		if rotAxis < PivotX {
			if rot[rotAxis-PivotNegX] > 0 {
				return
			}
		} else if rot[rotAxis-PivotX] < 0 {
			return
		}
	}

	var pivot mathutil.Vec3
	switch {
	case len(targets) > 0 && targets[0].Valid():
		pivot = targets[0].Matrix.Translation().Add(d.Offset)
	case d.Flag&PivotOffsetAbsolute == 0:
		pivot = cob.Matrix.Translation().Add(d.Offset)
	default:
		pivot = d.Offset
	}

	rotMat := cob.Matrix.Mat3().Normalized()
	loc := cob.Matrix.Translation()

	// keep the pivot on the rotation axis or the owner would drift along it
	axis, angle := mathutil.Mat3ToAxisAngle(rotMat)
	if angle != 0 {
		pivot = pivot.Sub(pivot.Sub(loc).Project(axis))
	}

	vec := rotMat.MulVec3(loc.Sub(pivot))
	cob.Matrix.SetTranslation(pivot.Add(vec))
}
