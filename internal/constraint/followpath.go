package constraint

import (
	"math"

	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// FollowPathFlag holds Follow Path options.
type FollowPathFlag uint32

const (
	// FollowPathFollow orients the owner along the path.
	FollowPathFollow FollowPathFlag = 1 << iota
	// FollowPathStatic places the owner at OffsetFac instead of animating.
	FollowPathStatic
	// FollowPathRadius scales the owner by the path radius.
	FollowPathRadius
)

var followPathFlagNames = []string{"follow", "fixed_position", "radius"}

func (f FollowPathFlag) MarshalYAML() (any, error) { return marshalFlags(f, followPathFlagNames) }
func (f *FollowPathFlag) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalFlags(n, f, followPathFlagNames)
}

// FollowPathData moves the owner along a curve.
type FollowPathData struct {
	Tar *scene.Object `yaml:"-"`

	// Offset is subtracted from the curve time, in path frames.
	Offset float64 `yaml:"offset"`
	// OffsetFac is the fixed position, 0..1.
	OffsetFac  float64        `yaml:"offset_factor"`
	FollowFlag FollowPathFlag `yaml:"flag"`
	TrackAxis  TrackAxis      `yaml:"forward_axis"`
	UpAxis     Axis           `yaml:"up_axis"`
}

func (d *FollowPathData) targetFields() (**scene.Object, *string) { return &d.Tar, nil }

type followPathType struct {
	typeBase
	singleTarget
}

func (followPathType) NewData() any {
	return &FollowPathData{TrackAxis: TrackY, UpAxis: AxisZ}
}

func (followPathType) TargetMatrix(_ *EvalContext, c *Constraint, ct *Target, _ float64) bool {
	d := c.Data.(*FollowPathData)
	if !ct.Valid() || ct.Tar.Type != scene.ObjectCurve {
		if ct != nil {
			ct.Matrix = identity()
		}
		return false
	}
	ct.Matrix = identity()
	cu := ct.Tar.Curve
	if !cu.HasPath() {
		return false
	}

	var curvetime float64
	if d.FollowFlag&FollowPathStatic != 0 {
		curvetime = d.OffsetFac
	} else {
		curvetime = mathutil.SafeDiv(cu.CTime-d.Offset, cu.PathLen)
		if !cu.Cyclic && cu.PathClamp {
			curvetime = mathutil.Clamp(curvetime, 0, 1)
		}
	}

	pp, ok := cu.WhereOnPath(curvetime)
	if !ok {
		return false
	}

	totmat := identity()
	if d.FollowFlag&FollowPathFollow != 0 {
		track := int(mathutil.Clamp(float64(d.TrackAxis), 0, 5))
		up := int(mathutil.Clamp(float64(d.UpAxis), 0, 2))
		totmat = mathutil.QuatToMat4(mathutil.QuatApplyTrack(pp.Quat, track, up))
	}
	if d.FollowFlag&FollowPathRadius != 0 {
		r := pp.Radius
		totmat = mathutil.Mat4Mul(scaleMat4(mathutil.Vec3{r, r, r}), totmat)
	}
	totmat.SetTranslation(pp.Pos)

	ct.Matrix = mathutil.Mat4Mul(ct.Tar.ObMat, totmat)
	return true
}

func (followPathType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*FollowPathData)
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	ct := targets[0]

	obmat := cob.Matrix
	size := cob.Matrix.Size()
	cob.Matrix = mathutil.Mat4Mul(ct.Matrix, obmat)

	// the path may scale the owner; undo that unless radius scaling is wanted
	if d.FollowFlag&FollowPathRadius == 0 {
		obsize := cob.Matrix.Size()
		for i := 0; i < 3; i++ {
			if obsize[i] != 0 {
				cob.Matrix.SetAxis(i, cob.Matrix.Axis(i).Scale(size[i]/obsize[i]))
			}
		}
	}
}

func scaleMat4(s mathutil.Vec3) mathutil.Mat4 {
	return mathutil.LocRotSizeToMat4(mathutil.Vec3{}, mathutil.Mat3Identity(), s)
}

// ClampAxis picks the axis Clamp To maps onto the curve.
type ClampAxis int

const (
	ClampAuto ClampAxis = iota
	ClampX
	ClampY
	ClampZ
)

var clampAxisNames = []string{"auto", "x", "y", "z"}

func (a ClampAxis) MarshalYAML() (any, error)          { return marshalEnum(a, clampAxisNames) }
func (a *ClampAxis) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, a, clampAxisNames) }

// ClampToData keeps the owner on a curve.
type ClampToData struct {
	Tar *scene.Object `yaml:"-"`

	Axis ClampAxis `yaml:"main_axis"`
	// Cyclic repeats the curve outside its bounds.
	Cyclic bool `yaml:"cyclic"`
}

func (d *ClampToData) targetFields() (**scene.Object, *string) { return &d.Tar, nil }

type clampToType struct {
	typeBase
	singleTarget
}

func (clampToType) NewData() any { return &ClampToData{} }

func (clampToType) TargetMatrix(_ *EvalContext, _ *Constraint, ct *Target, _ float64) bool {
	if ct != nil {
		ct.Matrix = identity()
	}
	return false
}

func (clampToType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*ClampToData)
	if len(targets) == 0 || !targets[0].Valid() || targets[0].Tar.Type != scene.ObjectCurve {
		return
	}
	ct := targets[0]
	cu := ct.Tar.Curve
	ownLoc := cob.Matrix.Translation()

	// bounds are in curve space while the owner is in world space
	curveMin, curveMax, _ := cu.BoundBox()

	target := identity()
	if cu.HasPath() {
		axis := clampAxisFor(d.Axis, curveMax.Sub(curveMin))
		curvetime := clampCurveTime(ownLoc[axis], curveMin[axis], curveMax[axis], d.Cyclic)

		if pp, ok := cu.WhereOnPath(curvetime); ok {
			target = mathutil.Mat4Mul(ct.Tar.ObMat, mathutil.Mat4Translation(pp.Pos))
		}
	}
	cob.Matrix.SetTranslation(target.Translation())
}

// clampAxisFor resolves Auto to the axis of greatest extent, X on ties.
func clampAxisFor(a ClampAxis, size mathutil.Vec3) int {
	switch a {
	case ClampX, ClampY, ClampZ:
		return int(a) - 1
	}
	switch {
	case size[2] > size[0] && size[2] > size[1]:
		return 2
	case size[1] > size[0] && size[1] > size[2]:
		return 1
	}
	return 0
}

func clampCurveTime(loc, lo, hi float64, cyclic bool) float64 {
	length := hi - lo
	nearZero := math.Abs(length) < fltEpsilon

	if cyclic {
		if nearZero {
			return 0
		}
		switch {
		case loc < lo:
			offset := lo - math.Ceil((lo-loc)/length)*length
			return (loc - offset) / length
		case loc > hi:
			offset := hi + math.Trunc((loc-hi)/length)*length
			return (loc - offset) / length
		}
		return (loc - lo) / length
	}

	switch {
	case loc <= lo:
		return 0
	case loc >= hi:
		return 1
	case !nearZero:
		return (loc - lo) / length
	}
	return 0
}
