package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rig-solver/internal/mathutil"
)

func assertMat4Near(t *testing.T, want, got mathutil.Mat4, eps float64) {
	t.Helper()
	assert.InDeltaSlice(t, want[:], got[:], eps)
}

// loc returns the translation of m as a slice.
func loc(m mathutil.Mat4) []float64 {
	t := m.Translation()
	return t[:]
}

func twoBoneRig() (*Bone, *Bone, *Pose) {
	root := &Bone{Name: "root", Length: 1, BoneMat: mathutil.Mat3Identity(), ArmMat: mathutil.Mat4Identity(), Segments: 1}
	child := &Bone{
		Name: "child", Parent: root, Length: 1,
		BoneMat: mathutil.Mat3Identity(),
		ArmMat:  mathutil.Mat4Translation(mathutil.Vec3{0, 1, 0}),
		Flag:    BoneConnected, Segments: 1,
	}
	pose := NewPose(NewArmature("arm", []*Bone{root, child}))
	return root, child, pose
}

// TestTransform_SetFromMat4RoundTrip decomposes and recomposes every rotation mode.
func TestTransform_SetFromMat4RoundTrip(t *testing.T) {
	m := mathutil.LocEulOSizeToMat4(mathutil.Vec3{1, 2, 3}, mathutil.Vec3{0.3, -0.2, 1.1}, mathutil.Vec3{2, 1, 0.5}, mathutil.EulerZXY)
	for _, mode := range []RotMode{RotModeQuat, RotModeAxisAngle, RotModeXYZ, RotModeZYX} {
		tr := IdentityTransform()
		tr.RotMode = mode
		tr.SetFromMat4(m, false)
		assertMat4Near(t, m, tr.Matrix(), 1e-9)
	}
}

// TestObject_WhereIsChainsParent composes parent, parent inverse and local.
func TestObject_WhereIsChainsParent(t *testing.T) {
	par := NewObject("par", ObjectEmpty)
	par.Loc = mathutil.Vec3{0, 0, 5}
	par.WhereIs()

	ob := NewObject("ob", ObjectEmpty)
	ob.Parent = par
	ob.Loc = mathutil.Vec3{1, 0, 0}
	ob.WhereIs()
	assert.Equal(t, mathutil.Vec3{1, 0, 5}, ob.ObMat.Translation())

	ob.ApplyMat4(mathutil.Mat4Translation(mathutil.Vec3{3, 0, 5}), false, true)
	assert.InDeltaSlice(t, []float64{3, 0, 0}, ob.Loc[:], 1e-12)
}

// TestBoneParentTransform_RoundTrip checks PoseToBone inverts BoneToPose for every inherit mode.
func TestBoneParentTransform_RoundTrip(t *testing.T) {
	_, child, pose := twoBoneRig()
	pose.Channels[0].PoseMat = mathutil.LocRotSizeToMat4(mathutil.Vec3{0.5, 0, 0}, mathutil.RotZ(0.7), mathutil.Vec3{1, 2, 1})
	pc := pose.Channel("child")
	require.NotNil(t, pc)

	in := mathutil.LocRotSizeToMat4(mathutil.Vec3{0.1, 0.2, 0.3}, mathutil.RotX(0.4), mathutil.Vec3{1, 1, 1})
	for _, mode := range []InheritScale{InheritScaleFull, InheritScaleFixShear, InheritScaleNone, InheritScaleAverage, InheritScaleNoneLegacy} {
		child.InheritScale = mode
		got := pc.PoseToBone(pc.BoneToPose(in))
		assertMat4Near(t, in, got, 1e-9)
	}
}

// TestBoneToPose_FullInheritFollowsParent places a child at the parent's tail.
func TestBoneToPose_FullInheritFollowsParent(t *testing.T) {
	_, _, pose := twoBoneRig()
	pose.Channels[0].PoseMat = mathutil.FromMat3Translation(mathutil.RotZ(math.Pi/2), mathutil.Vec3{})
	pc := pose.Channel("child")

	got := pc.BoneToPose(mathutil.Mat4Identity())
	assert.InDeltaSlice(t, []float64{-1, 0, 0}, loc(got), 1e-12)
}

// TestBVH_NearestAndRayCast queries a unit cube.
func TestBVH_NearestAndRayCast(t *testing.T) {
	m := Cube("cube", 1)
	bvh := m.BVH()

	hit, ok := bvh.Nearest(mathutil.Vec3{0, 0, 3})
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{0, 0, 1}, hit.Co[:], 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0, 1}, hit.No[:], 1e-12)
	assert.InDelta(t, 4, hit.Dist, 1e-12)

	hit, ok = bvh.RayCast(mathutil.Vec3{0.2, 0.1, 5}, mathutil.Vec3{0, 0, -1}, 100)
	require.True(t, ok)
	assert.InDelta(t, 4, hit.Dist, 1e-12)
	assert.InDeltaSlice(t, []float64{0.2, 0.1, 1}, hit.Co[:], 1e-12)

	_, ok = bvh.RayCast(mathutil.Vec3{3, 3, 5}, mathutil.Vec3{0, 0, -1}, 100)
	assert.False(t, ok)

	vi, _ := m.NearestVertex(mathutil.Vec3{2, 2, 2})
	assert.Equal(t, 7, vi)
}

// TestCurve_WhereOnPath samples by arc length and clamps open curves.
func TestCurve_WhereOnPath(t *testing.T) {
	cu := &Curve{Points: []CurvePoint{
		{Co: mathutil.Vec3{0, 0, 0}, Radius: 1},
		{Co: mathutil.Vec3{2, 0, 0}, Radius: 1},
		{Co: mathutil.Vec3{2, 2, 0}, Radius: 3},
	}}
	pp, ok := cu.WhereOnPath(0.75)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{2, 1, 0}, pp.Pos[:], 1e-12)
	assert.InDeltaSlice(t, []float64{0, 1, 0}, pp.Dir[:], 1e-12)
	assert.InDelta(t, 2, pp.Radius, 1e-12)

	pp, _ = cu.WhereOnPath(7)
	assert.InDeltaSlice(t, []float64{2, 2, 0}, pp.Pos[:], 1e-12)

	lo, hi, ok := cu.BoundBox()
	require.True(t, ok)
	assert.Equal(t, mathutil.Vec3{0, 0, 0}, lo)
	assert.Equal(t, mathutil.Vec3{2, 2, 0}, hi)
}

// TestAction_EvalObject interpolates linear and constant channels.
func TestAction_EvalObject(t *testing.T) {
	act := &Action{Name: "a", Channels: []Channel{
		{Property: "location", Index: 0, Keys: []Keyframe{{1, 0}, {11, 10}}},
		{Property: "scale", Index: 2, Interp: InterpConstant, Keys: []Keyframe{{1, 1}, {5, 3}}},
		{Bone: "hand", Property: "location", Index: 1, Keys: []Keyframe{{1, 7}}},
	}}
	require.NoError(t, act.Validate())

	ob := NewObject("ob", ObjectEmpty)
	act.EvalObject(ob, 3)
	assert.InDelta(t, 2, ob.Loc[0], 1e-12)
	assert.InDelta(t, 1, ob.Scale[2], 1e-12)
	assert.InDelta(t, 0, ob.Loc[1], 1e-12, "bone channel must not touch the object")

	act.EvalObject(ob, 20)
	assert.InDelta(t, 10, ob.Loc[0], 1e-12)
	assert.InDelta(t, 3, ob.Scale[2], 1e-12)

	bad := &Action{Name: "b", Channels: []Channel{{Property: "color"}}}
	assert.Error(t, bad.Validate())
}

// TestTrack_SubframePosition blends consecutive markers only.
func TestTrack_SubframePosition(t *testing.T) {
	tr := &Track{Markers: []Marker{
		{Frame: 1, Pos: [2]float64{0, 0}},
		{Frame: 2, Pos: [2]float64{1, 1}},
		{Frame: 5, Pos: [2]float64{4, 4}},
	}}
	pos, ok := tr.SubframePosition(1.25)
	require.True(t, ok)
	assert.InDelta(t, 0.25, pos[0], 1e-12)

	pos, _ = tr.SubframePosition(3.5)
	assert.InDelta(t, 1, pos[0], 1e-12, "gap between markers holds the last one")
}

// TestIntrinsics_UndistortInvertsDistortion distorts a point then undistorts it.
func TestIntrinsics_UndistortInvertsDistortion(t *testing.T) {
	in := Intrinsics{Focal: 1000, PrincipalPoint: [2]float64{960, 540}, K1: -0.05, K2: 0.01}
	xu, yu := 0.3, -0.2
	r2 := xu*xu + yu*yu
	f := 1 + in.K1*r2 + in.K2*r2*r2
	dist := [2]float64{xu*f*in.Focal + 960, yu*f*in.Focal + 540}

	got := in.Undistort(dist)
	assert.InDelta(t, xu*1000+960, got[0], 1e-6)
	assert.InDelta(t, yu*1000+540, got[1], 1e-6)
}

// TestTrackingObject_ReconstructedMatrix interpolates between solved frames.
func TestTrackingObject_ReconstructedMatrix(t *testing.T) {
	o := &TrackingObject{IsCamera: true, Cameras: []ReconstructedCamera{
		{Frame: 1, Mat: mathutil.Mat4Translation(mathutil.Vec3{0, 0, 0})},
		{Frame: 3, Mat: mathutil.Mat4Translation(mathutil.Vec3{2, 0, 0})},
	}}
	assert.InDelta(t, 1, o.ReconstructedMatrix(2).Translation()[0], 1e-12)
	assert.InDelta(t, 2, o.ReconstructedMatrix(9).Translation()[0], 1e-12)
	assert.True(t, (&TrackingObject{}).ReconstructedMatrix(1).IsIdentity())
}

// TestCacheFile_ReaderInterpolates reads between two samples.
func TestCacheFile_ReaderInterpolates(t *testing.T) {
	cf := &CacheFile{Name: "c", Paths: map[string][]CacheSample{
		"/root/ob": {
			{Time: 0, Mat: mathutil.Mat4Translation(mathutil.Vec3{0, 0, 0})},
			{Time: 1, Mat: mathutil.Mat4Translation(mathutil.Vec3{0, 4, 0})},
		},
	}}
	r, err := cf.OpenReader("/root/ob")
	require.NoError(t, err)
	m, ok := r.ReadMatrix(cf.TimeOffset(12, 24))
	require.True(t, ok)
	assert.InDelta(t, 2, m.Translation()[1], 1e-12)
	require.NoError(t, r.Close())

	_, err = cf.OpenReader("/missing")
	assert.Error(t, err)
}

// TestScene_CloneRemapsParents keeps the original graph untouched.
func TestScene_CloneRemapsParents(t *testing.T) {
	s := New("s")
	par := NewObject("par", ObjectEmpty)
	ob := NewObject("ob", ObjectEmpty)
	ob.Parent = par
	require.NoError(t, s.AddObject(par))
	require.NoError(t, s.AddObject(ob))
	assert.Error(t, s.AddObject(NewObject("ob", ObjectEmpty)))

	c, remap := s.Clone()
	cob := c.Object("ob")
	require.NotNil(t, cob)
	assert.Same(t, remap[par], cob.Parent)
	cob.Loc[0] = 9
	assert.Equal(t, 0.0, ob.Loc[0])
}
