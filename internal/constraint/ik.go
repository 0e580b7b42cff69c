package constraint

import (
	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// IKFlag holds IK options. The chain itself is solved by the pose solver;
// the constraint only carries settings and targets.
type IKFlag uint32

const (
	IKTip IKFlag = 1 << iota
	IKRot
	// IKAuto marks the temporary constraint of auto IK grabbing. The target
	// is GrabTarget instead of an object.
	IKAuto
	IKTemp
	IKStretch
	IKPos
	IKNoPosX
	IKNoPosY
	IKNoPosZ
	IKNoRotX
	IKNoRotY
	IKNoRotZ
)

var ikFlagNames = []string{
	"use_tail", "use_rotation", "auto", "temp", "use_stretch", "use_location",
	"lock_location_x", "lock_location_y", "lock_location_z",
	"lock_rotation_x", "lock_rotation_y", "lock_rotation_z",
}

func (f IKFlag) MarshalYAML() (any, error)          { return marshalFlags(f, ikFlagNames) }
func (f *IKFlag) UnmarshalYAML(n *yaml.Node) error { return unmarshalFlags(n, f, ikFlagNames) }

// IKKind selects what the chain solver aims for.
type IKKind int

const (
	IKCopyPose IKKind = iota
	IKDistance
)

var ikKindNames = []string{"copy_pose", "distance"}

func (k IKKind) MarshalYAML() (any, error)          { return marshalEnum(k, ikKindNames) }
func (k *IKKind) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, k, ikKindNames) }

// KinematicData configures an IK chain ending at the owner bone.
type KinematicData struct {
	Tar           *scene.Object `yaml:"-"`
	Subtarget     string        `yaml:"subtarget,omitempty"`
	PoleTar       *scene.Object `yaml:"-"`
	PoleSubtarget string        `yaml:"pole_subtarget,omitempty"`

	// GrabTarget is the auto IK goal in the owner object's space.
	GrabTarget   mathutil.Vec3 `yaml:"grab_target,flow,omitempty"`
	PoleAngle    float64       `yaml:"pole_angle"`
	Weight       float64       `yaml:"weight"`
	OrientWeight float64       `yaml:"orient_weight"`
	Dist         float64       `yaml:"distance"`
	Iterations   int           `yaml:"iterations"`
	// ChainLen counts bones up from the owner; 0 runs to the root.
	ChainLen int    `yaml:"chain_count"`
	Kind     IKKind `yaml:"kind"`
	Flag     IKFlag `yaml:"flag"`
}

type kinematicType struct{ typeBase }

func (kinematicType) NewData() any {
	return &KinematicData{
		Weight:       1,
		OrientWeight: 1,
		Iterations:   500,
		Dist:         1,
		Flag:         IKTip | IKStretch | IKPos,
	}
}

func (kinematicType) LoopIDs(c *Constraint, fn IDFunc) {
	d := c.Data.(*KinematicData)
	fn(c, objectRef("target", &d.Tar), false)
	fn(c, objectRef("pole_target", &d.PoleTar), false)
}

func (kinematicType) Targets(c *Constraint) []*Target {
	d := c.Data.(*KinematicData)
	return []*Target{newTarget(c, d.Tar, d.Subtarget), newTarget(c, d.PoleTar, d.PoleSubtarget)}
}

func (kinematicType) FlushTargets(c *Constraint, targets []*Target, noCopy bool) {
	if noCopy || len(targets) < 2 {
		return
	}
	d := c.Data.(*KinematicData)
	d.Tar, d.Subtarget = targets[0].Tar, targets[0].Subtarget
	d.PoleTar, d.PoleSubtarget = targets[1].Tar, targets[1].Subtarget
	c.TarSpace = targets[0].Space
}

// TargetMatrix resolves the goal or pole. Without a target object an auto
// IK constraint aims at GrabTarget placed in the owner's world frame.
func (kinematicType) TargetMatrix(cob *EvalContext, c *Constraint, ct *Target, _ float64) bool {
	d := c.Data.(*KinematicData)
	if ct.Valid() {
		ct.Matrix = targetToMat4(cob, ct.Tar, ct.Subtarget, SpaceWorld, ct.Space, c.Flag, c.HeadTail)
		return true
	}
	if ct == nil {
		return false
	}
	if d.Flag&IKAuto == 0 || cob.Ob == nil {
		ct.Matrix = identity()
		return false
	}
	ct.Matrix = cob.Ob.ObMat
	ct.Matrix.SetTranslation(cob.Ob.ObMat.MulPoint(d.GrabTarget))
	return true
}

// SplineIKFlag holds Spline IK options.
type SplineIKFlag uint32

const (
	SplineIKBound SplineIKFlag = 1 << iota
	SplineIKNoRoot
	SplineIKNoCurveRadius
	SplineIKOriginalScale
	SplineIKUseBulgeMin
	SplineIKUseBulgeMax
)

var splineIKFlagNames = []string{
	"bound", "no_root", "no_curve_radius", "use_original_scale", "use_bulge_min", "use_bulge_max",
}

func (f SplineIKFlag) MarshalYAML() (any, error) { return marshalFlags(f, splineIKFlagNames) }
func (f *SplineIKFlag) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalFlags(n, f, splineIKFlagNames)
}

// SplineYScale is how Spline IK scales bones along their length.
type SplineYScale int

const (
	SplineYScaleNone SplineYScale = iota
	SplineYScaleFitCurve
	SplineYScaleBone
)

var splineYScaleNames = []string{"none", "fit_curve", "bone_original"}

func (m SplineYScale) MarshalYAML() (any, error) { return marshalEnum(m, splineYScaleNames) }
func (m *SplineYScale) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalEnum(n, m, splineYScaleNames)
}

// SplineIKData binds a bone chain to a curve. The chain solve happens in
// the pose solver; the constraint holds the binding.
type SplineIKData struct {
	Tar *scene.Object `yaml:"-"`

	// Points are the chain joints as 0..1 curve parameters.
	Points      []float64    `yaml:"points,flow,omitempty"`
	ChainLen    int          `yaml:"chain_count"`
	Bulge       float64      `yaml:"bulge"`
	BulgeMin    float64      `yaml:"bulge_min"`
	BulgeMax    float64      `yaml:"bulge_max"`
	BulgeSmooth float64      `yaml:"bulge_smooth"`
	YScaleMode  SplineYScale `yaml:"y_scale_mode"`
	Flag        SplineIKFlag `yaml:"flag"`
}

func (d *SplineIKData) targetFields() (**scene.Object, *string) { return &d.Tar, nil }

type splineIKType struct {
	typeBase
	singleTarget
}

func (splineIKType) NewData() any {
	return &SplineIKData{
		ChainLen:   1,
		Bulge:      1,
		BulgeMin:   1,
		BulgeMax:   1,
		YScaleMode: SplineYScaleFitCurve,
		Flag:       SplineIKOriginalScale,
	}
}

func (splineIKType) CopyData(dst, src *Constraint) {
	s := src.Data.(*SplineIKData)
	dst.Data.(*SplineIKData).Points = append([]float64(nil), s.Points...)
}

func (splineIKType) FreeData(c *Constraint) {
	c.Data.(*SplineIKData).Points = nil
}

func (splineIKType) TargetMatrix(_ *EvalContext, _ *Constraint, ct *Target, _ float64) bool {
	if ct != nil {
		ct.Matrix = identity()
	}
	return false
}
