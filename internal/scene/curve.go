package scene

import (
	"math"

	"rig-solver/internal/mathutil"
)

// CurvePoint is one vertex of a curve's evaluated path.
type CurvePoint struct {
	Co     mathutil.Vec3
	Tilt   float64
	Radius float64
}

// Curve is a poly path usable as a constraint target.
type Curve struct {
	Name      string
	Points    []CurvePoint
	Cyclic    bool
	PathClamp bool    // clamp follow-path time to the ends
	CTime     float64 // animated evaluation time, in path frames
	PathLen   float64 // number of frames one traversal takes
}

// HasPath reports whether the curve has at least one segment.
func (cu *Curve) HasPath() bool {
	return cu != nil && len(cu.Points) >= 2
}

// PathPoint is a sample of the path.
type PathPoint struct {
	Pos    mathutil.Vec3
	Dir    mathutil.Vec3 // unit tangent
	Quat   mathutil.Quat
	Radius float64
}

func (cu *Curve) segmentCount() int {
	if cu.Cyclic {
		return len(cu.Points)
	}
	return len(cu.Points) - 1
}

func (cu *Curve) point(i int) CurvePoint {
	return cu.Points[i%len(cu.Points)]
}

// WhereOnPath samples the path at t (0..1 over the whole length, by arc
// length). Cyclic curves wrap, open ones clamp. ok is false without a path.
func (cu *Curve) WhereOnPath(t float64) (PathPoint, bool) {
	if !cu.HasPath() {
		return PathPoint{}, false
	}
	nseg := cu.segmentCount()
	lens := make([]float64, nseg)
	var total float64
	for i := 0; i < nseg; i++ {
		lens[i] = cu.point(i + 1).Co.Dist(cu.point(i).Co)
		total += lens[i]
	}

	if cu.Cyclic {
		t -= math.Floor(t)
	} else {
		t = mathutil.Clamp(t, 0, 1)
	}

	target := t * total
	seg, fac := nseg-1, 1.0
	for i, l := range lens {
		if target <= l || i == nseg-1 {
			seg = i
			fac = mathutil.SafeDiv(target, l)
			break
		}
		target -= l
	}
	fac = mathutil.Clamp(fac, 0, 1)

	a, b := cu.point(seg), cu.point(seg+1)
	pp := PathPoint{
		Pos:    a.Co.Lerp(b.Co, fac),
		Dir:    b.Co.Sub(a.Co).Normalize(),
		Radius: mathutil.Lerp(a.Radius, b.Radius, fac),
	}
	if pp.Dir.IsZero() {
		pp.Dir = mathutil.AxisY
	}
	tilt := mathutil.Lerp(a.Tilt, b.Tilt, fac)

	// Z along the tangent, Y up, then twisted by the tilt
	pp.Quat = mathutil.QuatMul(mathutil.AxisAngleToQuat(pp.Dir, tilt), mathutil.VecToQuat(pp.Dir, 5, 1))
	return pp, true
}

// BoundBox returns the local-space bounds of the curve points.
func (cu *Curve) BoundBox() (min, max mathutil.Vec3, ok bool) {
	if cu == nil || len(cu.Points) == 0 {
		return min, max, false
	}
	min, max = cu.Points[0].Co, cu.Points[0].Co
	for _, p := range cu.Points[1:] {
		for i := 0; i < 3; i++ {
			min[i] = math.Min(min[i], p.Co[i])
			max[i] = math.Max(max[i], p.Co[i])
		}
	}
	return min, max, true
}
