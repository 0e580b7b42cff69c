package constraint

import (
	"math"

	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// ShrinkType is how Shrinkwrap finds the surface point.
type ShrinkType int

const (
	ShrinkNearestSurface ShrinkType = iota
	ShrinkProject
	ShrinkNearestVertex
	ShrinkTargetProject
)

var shrinkTypeNames = []string{"nearest_surface", "project", "nearest_vertex", "target_project"}

func (t ShrinkType) MarshalYAML() (any, error)          { return marshalEnum(t, shrinkTypeNames) }
func (t *ShrinkType) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, t, shrinkTypeNames) }

// SnapMode is where the owner ends up relative to the surface point.
type SnapMode int

const (
	SnapOnSurface SnapMode = iota
	SnapInside
	SnapOutside
	SnapOutsideSurface
	SnapAboveSurface
)

var snapModeNames = []string{"on_surface", "inside", "outside", "outside_surface", "above_surface"}

func (m SnapMode) MarshalYAML() (any, error)          { return marshalEnum(m, snapModeNames) }
func (m *SnapMode) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, m, snapModeNames) }

// ShrinkwrapFlag holds Shrinkwrap options.
type ShrinkwrapFlag uint32

const (
	// ShrinkwrapTrackNormal turns TrackAxis along the surface normal.
	ShrinkwrapTrackNormal ShrinkwrapFlag = 1 << iota
	// ShrinkwrapProjectOpposite also casts against the projection axis.
	ShrinkwrapProjectOpposite
	ShrinkwrapCullFront
	ShrinkwrapCullBack
	// ShrinkwrapInvertCull swaps the culled side for the opposite cast.
	ShrinkwrapInvertCull

	shrinkwrapCullMask = ShrinkwrapCullFront | ShrinkwrapCullBack
)

var shrinkwrapFlagNames = []string{"track_normal", "project_opposite", "cull_front", "cull_back", "invert_cull"}

func (f ShrinkwrapFlag) MarshalYAML() (any, error) { return marshalFlags(f, shrinkwrapFlagNames) }
func (f *ShrinkwrapFlag) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalFlags(n, f, shrinkwrapFlagNames)
}

// ShrinkwrapData moves the owner onto the surface of a mesh target.
type ShrinkwrapData struct {
	Tar *scene.Object `yaml:"-"`

	Type ShrinkType `yaml:"shrinkwrap_type"`
	Mode SnapMode   `yaml:"wrap_mode"`
	// Dist is kept between the owner and the surface.
	Dist float64 `yaml:"distance"`

	ProjAxis      TrackAxis `yaml:"project_axis"`
	ProjAxisSpace Space     `yaml:"project_axis_space"`
	// ProjLimit bounds the cast; 0 is unlimited.
	ProjLimit float64 `yaml:"project_limit"`

	TrackAxis TrackAxis      `yaml:"track_axis"`
	Flag      ShrinkwrapFlag `yaml:"flag"`
}

func (d *ShrinkwrapData) targetFields() (**scene.Object, *string) { return &d.Tar, nil }

type shrinkwrapType struct {
	typeBase
	singleTarget
}

func (shrinkwrapType) NewData() any {
	return &ShrinkwrapData{ProjAxis: TrackZ, ProjAxisSpace: SpaceLocal}
}

// spaceTransform maps between the owner's local space and the target's.
type spaceTransform struct {
	local2target, target2local mathutil.Mat4
}

func newSpaceTransform(local, target mathutil.Mat4) spaceTransform {
	l2t := mathutil.Mat4Mul(target.Inverse(), local)
	return spaceTransform{local2target: l2t, target2local: l2t.Inverse()}
}

func (t spaceTransform) toTarget(co mathutil.Vec3) mathutil.Vec3 { return t.local2target.MulPoint(co) }
func (t spaceTransform) toLocal(co mathutil.Vec3) mathutil.Vec3  { return t.target2local.MulPoint(co) }

func (t spaceTransform) normalToLocal(no mathutil.Vec3) mathutil.Vec3 {
	return t.target2local.MulDir(no).Normalize()
}

// TargetMatrix computes the snapped owner matrix. A failed lookup keeps the
// owner where it is.
func (shrinkwrapType) TargetMatrix(cob *EvalContext, c *Constraint, ct *Target, _ float64) bool {
	d := c.Data.(*ShrinkwrapData)
	if !ct.Valid() || ct.Tar.Type != scene.ObjectMesh || ct.Tar.Mesh == nil {
		if ct != nil {
			ct.Matrix = cob.Matrix
		}
		return false
	}
	me := ct.Tar.Mesh
	ct.Matrix = cob.Matrix
	xform := newSpaceTransform(cob.Matrix, ct.Tar.ObMat)

	var co, trackNo mathutil.Vec3
	trackNormal := false
	ok := false

	switch d.Type {
	case ShrinkProject:
		co, trackNo, trackNormal, ok = d.project(cob, me, xform)
	default:
		co, trackNo, trackNormal, ok = d.nearest(me, xform)
	}
	if !ok {
		co = mathutil.Vec3{}
		trackNormal = false
	}

	ct.Matrix.SetTranslation(cob.Matrix.MulPoint(co))
	if trackNormal {
		ct.Matrix = dampTrack(ct.Matrix, cob.Matrix.MulDir(trackNo), d.TrackAxis)
	}
	return true
}

// nearest handles the nearest surface, vertex and target project modes. The
// result is in owner local space.
func (d *ShrinkwrapData) nearest(me *scene.Mesh, xform spaceTransform) (co, trackNo mathutil.Vec3, track, ok bool) {
	co = xform.toTarget(mathutil.Vec3{})

	if d.Type == ShrinkNearestVertex {
		idx, _ := me.NearestVertex(co)
		if idx < 0 {
			return co, trackNo, false, false
		}
		vco := me.Verts[idx]
		if dist := co.Dist(vco); dist != 0 {
			co = co.Lerp(vco, (dist-d.Dist)/dist)
		}
		return xform.toLocal(co), trackNo, false, true
	}

	hit, found := me.BVH().Nearest(co)
	if !found || hit.Index < 0 {
		return co, trackNo, false, false
	}
	if d.Flag&ShrinkwrapTrackNormal != 0 {
		track = true
		trackNo = xform.normalToLocal(me.SmoothNormal(hit.Index, hit.Co))
	}
	co = snapToSurface(me, d.Mode, hit, d.Dist, co, nil)
	return xform.toLocal(co), trackNo, track, true
}

// project casts along the projection axis. Hits are moved into owner local
// space before snapping.
func (d *ShrinkwrapData) project(cob *EvalContext, me *scene.Mesh, xform spaceTransform) (co, trackNo mathutil.Vec3, track, ok bool) {
	if d.ProjAxis < TrackX || d.ProjAxis > TrackNegZ {
		return co, trackNo, false, false
	}
	no := d.ProjAxis.Vec()

	// normals keep scaling here since the space transform has it too
	mat := ConvertSpace(cob, cob.Ob, cob.PChan, identity(), SpaceLocal, d.ProjAxisSpace, true)
	no = mat.Inverse().MulDir(no)
	no, l := no.NormalizeLen()
	if l < fltEpsilon {
		return co, trackNo, false, false
	}

	limit := d.ProjLimit
	if limit == 0 {
		limit = math.MaxFloat32
	}
	cull := d.Flag & shrinkwrapCullMask

	hit, found := projectNormal(me, xform, co, no, cull, limit)
	if d.Flag&ShrinkwrapProjectOpposite != 0 {
		if d.Flag&ShrinkwrapInvertCull != 0 && cull != 0 {
			cull ^= shrinkwrapCullMask
		}
		if found {
			limit = hit.Dist
		}
		if opp, ok := projectNormal(me, xform, co, no.Neg(), cull, limit); ok {
			hit, found = opp, true
		}
	}
	if !found {
		return co, trackNo, false, false
	}

	if d.Flag&ShrinkwrapTrackNormal != 0 {
		track = true
		trackNo = hit.No
		if n := xform.normalToLocal(me.SmoothNormal(hit.Index, xform.toTarget(hit.Co))); !n.IsZero() {
			trackNo = n
		}
	}
	co = snapToSurface(me, d.Mode, hit, d.Dist, co, &xform)
	return co, trackNo, track, true
}

// projectNormal casts a local space ray against the target. The returned
// hit is in local space with Dist in local units. Culled faces are skipped.
func projectNormal(me *scene.Mesh, xform spaceTransform, co, dir mathutil.Vec3, cull ShrinkwrapFlag, limit float64) (scene.Hit, bool) {
	orig := xform.toTarget(co)
	tdir, scale := xform.local2target.MulDir(dir).NormalizeLen()
	if scale == 0 {
		return scene.Hit{}, false
	}
	maxDist := limit * scale
	if limit >= math.MaxFloat32 {
		maxDist = limit
	}

	bvh := me.BVH()
	travelled := 0.0
	for range 64 {
		hit, ok := bvh.RayCast(orig, tdir, maxDist-travelled)
		if !ok {
			return scene.Hit{}, false
		}
		facing := tdir.Dot(hit.No)
		culled := (cull&ShrinkwrapCullFront != 0 && facing < 0) || (cull&ShrinkwrapCullBack != 0 && facing > 0)
		if !culled {
			return scene.Hit{
				Index: hit.Index,
				Co:    xform.toLocal(hit.Co),
				No:    xform.normalToLocal(hit.No),
				Dist:  (travelled + hit.Dist) / scale,
			}, true
		}
		// continue behind the culled face
		step := hit.Dist + 1e-6
		orig = orig.Add(tdir.Scale(step))
		travelled += step
	}
	return scene.Hit{}, false
}

// snapToSurface places point relative to the hit according to mode. With
// xform the hit is in local space and smooth normals are converted.
func snapToSurface(me *scene.Mesh, mode SnapMode, hit scene.Hit, goal float64, point mathutil.Vec3, xform *spaceTransform) mathutil.Vec3 {
	switch mode {
	case SnapInside:
		return snapWithSide(point, hit.Co, hit.No, goal, -1, false)
	case SnapOutside:
		return snapWithSide(point, hit.Co, hit.No, goal, 1, false)
	case SnapOutsideSurface:
		if goal != 0 {
			return snapWithSide(point, hit.Co, hit.No, goal, 1, true)
		}
	case SnapAboveSurface:
		if goal != 0 {
			no := hit.No
			if xform != nil {
				no = xform.normalToLocal(me.SmoothNormal(hit.Index, xform.toTarget(hit.Co)))
			} else {
				no = me.SmoothNormal(hit.Index, hit.Co)
			}
			return hit.Co.Add(no.Scale(goal))
		}
	default:
		if goal != 0 {
			return snapWithSide(point, hit.Co, hit.No, goal, 0, true)
		}
	}
	return hit.Co
}

// snapWithSide keeps goal distance from the hit on the side given by
// forceSign, or on the point's current side when forceSign is 0.
func snapWithSide(point, hitCo, hitNo mathutil.Vec3, goal, forceSign float64, forceSnap bool) mathutil.Vec3 {
	delta := point.Sub(hitCo)
	dist := delta.Len()

	if dist < fltEpsilon {
		if forceSnap || goal > 0 {
			return hitCo.Add(hitNo.Scale(goal * forceSign))
		}
		return hitCo
	}

	dsign := 1.0
	if delta.Dot(hitNo) < 0 {
		dsign = -1
	}
	if forceSign == 0 {
		forceSign = dsign
	}
	if !forceSnap && dsign*dist*forceSign >= goal {
		return point
	}

	delta = delta.Scale(dsign / dist)
	// blend towards the normal very close to the surface where delta is noise
	eps := (math.Abs(goal) + hitCo.ManhattanLen()) * 1e-4
	if dist < eps {
		delta = hitNo.Lerp(delta, dist/eps)
	}
	return hitCo.Add(delta.Scale(goal * forceSign))
}

func (shrinkwrapType) Evaluate(_ *Constraint, cob *EvalContext, targets []*Target) {
	if len(targets) == 0 || !targets[0].Valid() {
		return
	}
	cob.Matrix = targets[0].Matrix
}
