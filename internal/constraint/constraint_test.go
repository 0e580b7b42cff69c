package constraint

import (
	"fmt"
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

func assertMat4Near(t *testing.T, want, got mathutil.Mat4, eps float64, msgAndArgs ...any) {
	t.Helper()
	if !want.ApproxEqual(got, eps) {
		assert.Fail(t, "matrices differ", "want:\n%s\ngot:\n%s\n%s", spew.Sdump(want), spew.Sdump(got), fmt.Sprint(msgAndArgs...))
	}
}

// loc returns the translation of m as a slice.
func loc(m mathutil.Mat4) []float64 {
	t := m.Translation()
	return t[:]
}

func emptyAt(name string, loc mathutil.Vec3) *scene.Object {
	ob := scene.NewObject(name, scene.ObjectEmpty)
	ob.Loc = loc
	ob.WhereIs()
	return ob
}

func objectContext(ob *scene.Object) *EvalContext {
	return MakeEvalContext(scene.New("test"), nil, ob, nil, OwnerObject)
}

// armatureRig is a two-bone chain on an armature that is moved and turned
// away from the origin, posed off its rest position.
func armatureRig(t *testing.T) (*scene.Object, *scene.PoseChannel) {
	t.Helper()
	root := &scene.Bone{Name: "root", Length: 1, BoneMat: mathutil.Mat3Identity(), ArmMat: mathutil.Mat4Identity(), Segments: 1}
	child := &scene.Bone{
		Name: "child", Parent: root, Length: 1,
		BoneMat:  mathutil.RotX(0.3),
		ArmMat:   mathutil.FromMat3Translation(mathutil.RotX(0.3), mathutil.Vec3{0, 1, 0}),
		Flag:     scene.BoneConnected,
		Segments: 1,
	}
	ob := scene.NewObject("arm", scene.ObjectArmature)
	ob.Armature = scene.NewArmature("arm", []*scene.Bone{root, child})
	ob.Pose = scene.NewPose(ob.Armature)
	ob.ObMat = mathutil.LocRotSizeToMat4(mathutil.Vec3{2, -1, 0.5}, mathutil.RotZ(0.8), mathutil.Vec3{1, 1, 1})

	rootChan := ob.Pose.Channel("root")
	require.NotNil(t, rootChan)
	rootChan.PoseMat = mathutil.LocRotSizeToMat4(mathutil.Vec3{0.2, 0, 0}, mathutil.RotY(0.4), mathutil.Vec3{1, 1.5, 1})

	pc := ob.Pose.Channel("child")
	require.NotNil(t, pc)
	pc.PoseMat = mathutil.Mat4Mul(rootChan.PoseMat, mathutil.FromMat3Translation(mathutil.RotZ(-0.6), mathutil.Vec3{0, 1, 0}))
	return ob, pc
}

func sample() mathutil.Mat4 {
	return mathutil.LocEulOSizeToMat4(mathutil.Vec3{1, -2, 3}, mathutil.Vec3{0.4, -0.7, 1.2}, mathutil.Vec3{1, 2, 0.5}, mathutil.EulerXYZ)
}

// TestSolve_ZeroInfluenceIsBitIdentical leaves the owner matrix untouched.
func TestSolve_ZeroInfluenceIsBitIdentical(t *testing.T) {
	ob := emptyAt("ob", mathutil.Vec3{0.1, 0.2, 0.3})
	ob.ObMat = sample()
	tar := emptyAt("tar", mathutil.Vec3{4, 5, 6})

	var l List
	for _, typ := range []Type{TypeChildOf, TypeTrackTo, TypeLocLike, TypeDampTrack, TypeStretchTo} {
		c := AddForObject(&l, "", typ)
		if h, ok := c.Data.(targetFields); ok {
			p, _ := h.targetFields()
			*p = tar
		}
		c.Enforce = 0
	}

	cob := objectContext(ob)
	before := cob.Matrix
	Solve(l, cob, 1)
	assert.Equal(t, before, cob.Matrix)
}

// TestConvertSpace_SameSpaceIsNoop returns the input for every space.
func TestConvertSpace_SameSpaceIsNoop(t *testing.T) {
	ob, pc := armatureRig(t)
	m := sample()
	for _, s := range Spaces() {
		assert.Equal(t, m, ConvertSpace(nil, ob, nil, m, s, s, false), "object %s", s)
		assert.Equal(t, m, ConvertSpace(nil, ob, pc, m, s, s, false), "bone %s", s)
	}
}

// TestConvertSpace_RoundTrip converts there and back for all space pairs.
func TestConvertSpace_RoundTrip(t *testing.T) {
	arm, pc := armatureRig(t)

	par := emptyAt("par", mathutil.Vec3{0, 3, 0})
	par.ObMat = mathutil.LocRotSizeToMat4(mathutil.Vec3{0, 3, 0}, mathutil.RotX(0.5), mathutil.Vec3{2, 2, 2})
	child := scene.NewObject("child", scene.ObjectEmpty)
	child.Parent = par
	child.Rot = mathutil.Vec3{0.1, 0.2, 0.3}
	child.WhereIs()
	lone := emptyAt("lone", mathutil.Vec3{1, 1, 1})
	lone.Rot = mathutil.Vec3{0.5, 0, -0.25}
	lone.WhereIs()

	custom := mathutil.LocRotSizeToMat4(mathutil.Vec3{-1, 0, 4}, mathutil.RotY(1.1), mathutil.Vec3{1, 1, 1})

	objectSpaces := []Space{SpaceWorld, SpaceLocal, SpaceCustom}
	cases := []struct {
		name   string
		ob     *scene.Object
		pchan  *scene.PoseChannel
		typ    OwnerType
		spaces []Space
	}{
		{"bone", arm, pc, OwnerBone, Spaces()},
		{"parented object", child, nil, OwnerObject, objectSpaces},
		{"root object", lone, nil, OwnerObject, objectSpaces},
	}

	m := sample()
	for _, tc := range cases {
		cob := MakeEvalContext(nil, nil, tc.ob, tc.pchan, tc.typ)
		cob.SpaceObjWorldMatrix = custom
		for _, from := range tc.spaces {
			for _, to := range tc.spaces {
				there := ConvertSpace(cob, tc.ob, tc.pchan, m, from, to, false)
				back := ConvertSpace(cob, tc.ob, tc.pchan, there, to, from, false)
				assertMat4Near(t, m, back, 1e-9, tc.name, " ", from, "->", to)
			}
		}
	}
}

// TestConvertSpace_ObjectBoneOnlySpaces leaves matrices alone when leaving
// a bone-only space and stops at world space when entering one.
func TestConvertSpace_ObjectBoneOnlySpaces(t *testing.T) {
	par := emptyAt("par", mathutil.Vec3{0, 3, 0})
	ob := scene.NewObject("ob", scene.ObjectEmpty)
	ob.Parent = par
	ob.Loc = mathutil.Vec3{1, 0, 0}
	ob.WhereIs()

	cob := objectContext(ob)
	cob.SpaceObjWorldMatrix = mathutil.Mat4Translation(mathutil.Vec3{0, 0, 7})
	m := mathutil.Mat4Translation(mathutil.Vec3{1, 1, 1})

	for _, from := range []Space{SpacePose, SpaceParentLocal, SpaceOwnerLocal} {
		for _, to := range []Space{SpaceWorld, SpaceLocal, SpaceCustom} {
			assert.Equal(t, m, ConvertSpace(cob, ob, nil, m, from, to, false), "%s -> %s", from, to)
		}
	}

	toWorld := ConvertSpace(cob, ob, nil, m, SpaceLocal, SpaceWorld, false)
	assert.Equal(t, toWorld, ConvertSpace(cob, ob, nil, m, SpaceLocal, SpacePose, false))
	assert.InDeltaSlice(t, []float64{1, 4, 1}, loc(toWorld), 1e-12)

	fromCustom := ConvertSpace(cob, ob, nil, m, SpaceCustom, SpaceOwnerLocal, false)
	assert.InDeltaSlice(t, []float64{1, 1, 8}, loc(fromCustom), 1e-12)
	assert.Equal(t, m, ConvertSpace(cob, ob, nil, m, SpaceWorld, SpaceParentLocal, false))
}

// TestSolve_InfluenceBlendsLinearly moves a pure translation by the influence.
func TestSolve_InfluenceBlendsLinearly(t *testing.T) {
	for _, enf := range []float64{0, 0.25, 0.5, 0.75, 1} {
		ob := emptyAt("ob", mathutil.Vec3{3, 0, 0})
		var l List
		c := AddForObject(&l, "", TypeLocLimit)
		d := c.Data.(*LimitLocationData)
		d.Flag = LimitXMax
		d.Max = mathutil.Vec3{1, 0, 0}
		c.Enforce = enf

		cob := objectContext(ob)
		Solve(l, cob, 1)
		assert.InDelta(t, 3-2*enf, cob.Matrix.Translation()[0], 1e-12, "influence %v", enf)
	}
}

// TestLimitLocation_ClampsMax pulls X back to the bound and leaves Y and Z.
func TestLimitLocation_ClampsMax(t *testing.T) {
	ob := emptyAt("ob", mathutil.Vec3{3, 2, -7})
	var l List
	c := AddForObject(&l, "", TypeLocLimit)
	d := c.Data.(*LimitLocationData)
	d.Flag = LimitXMax
	d.Max = mathutil.Vec3{1, 0, 0}

	cob := objectContext(ob)
	Solve(l, cob, 1)
	assert.Equal(t, mathutil.Vec3{1, 2, -7}, cob.Matrix.Translation())
}

// TestChildOf_SetInverseKeepsOwner bakes the inverse once and then keeps the
// owner where it is for an unchanged parent.
func TestChildOf_SetInverseKeepsOwner(t *testing.T) {
	tar := scene.NewObject("tar", scene.ObjectEmpty)
	tar.Loc = mathutil.Vec3{1, 2, 3}
	tar.Rot = mathutil.Vec3{0.3, 0.1, -0.4}
	tar.WhereIs()
	ob := emptyAt("ob", mathutil.Vec3{0, 0, 5})

	var l List
	c := AddForObject(&l, "", TypeChildOf)
	d := c.Data.(*ChildOfData)
	d.Tar = tar
	require.NotZero(t, d.Flag&ChildOfSetInverse)

	for i := 0; i < 2; i++ {
		cob := objectContext(ob)
		Solve(l, cob, 1)
		assertMat4Near(t, ob.ObMat, cob.Matrix, 1e-9, "solve ", i)
		assert.Zero(t, d.Flag&ChildOfSetInverse)
	}
}

// TestChildOf_FollowsParent moves the owner with the parent after the
// inverse was set at the origin.
func TestChildOf_FollowsParent(t *testing.T) {
	tar := emptyAt("tar", mathutil.Vec3{})
	ob := emptyAt("ob", mathutil.Vec3{0, 0, 5})

	var l List
	c := AddForObject(&l, "", TypeChildOf)
	c.Data.(*ChildOfData).Tar = tar

	cob := objectContext(ob)
	Solve(l, cob, 1)
	assert.InDeltaSlice(t, []float64{0, 0, 5}, loc(cob.Matrix), 1e-12)

	tar.Loc = mathutil.Vec3{0, 0, 5}
	tar.WhereIs()
	cob = objectContext(ob)
	Solve(l, cob, 1)
	assert.InDeltaSlice(t, []float64{0, 0, 10}, loc(cob.Matrix), 1e-12)
}

// TestLimitDistance_OutsideBoundaryUnmoved keeps an owner sitting exactly on
// the sphere.
func TestLimitDistance_OutsideBoundaryUnmoved(t *testing.T) {
	tar := emptyAt("tar", mathutil.Vec3{})
	ob := emptyAt("ob", mathutil.Vec3{0, 0, 2})

	var l List
	c := AddForObject(&l, "", TypeDistLimit)
	d := c.Data.(*LimitDistanceData)
	d.Tar = tar
	d.Dist = 2
	d.Mode = LimitDistOutside

	cob := objectContext(ob)
	Solve(l, cob, 1)
	assert.Equal(t, mathutil.Vec3{0, 0, 2}, cob.Matrix.Translation())

	// inside the sphere it is pushed out to the surface
	ob = emptyAt("ob", mathutil.Vec3{0, 0, 1})
	cob = objectContext(ob)
	Solve(l, cob, 1)
	assert.InDeltaSlice(t, []float64{0, 0, 2}, loc(cob.Matrix), 1e-12)
}

// TestLimitDistance_BakesDistance stores the first measured distance.
func TestLimitDistance_BakesDistance(t *testing.T) {
	tar := emptyAt("tar", mathutil.Vec3{})
	ob := emptyAt("ob", mathutil.Vec3{3, 4, 0})

	var l List
	c := AddForObject(&l, "", TypeDistLimit)
	d := c.Data.(*LimitDistanceData)
	d.Tar = tar

	Solve(l, objectContext(ob), 1)
	assert.InDelta(t, 5, d.Dist, 1e-12)
}

// TestDampedTrack_OppositeTargetStaysFinite turns half way round when the
// target is exactly behind the track axis.
func TestDampedTrack_OppositeTargetStaysFinite(t *testing.T) {
	tar := emptyAt("tar", mathutil.Vec3{0, -3, 0})
	ob := emptyAt("ob", mathutil.Vec3{})

	var l List
	c := AddForObject(&l, "", TypeDampTrack)
	c.Data.(*DampedTrackData).Tar = tar

	cob := objectContext(ob)
	Solve(l, cob, 1)

	for i, v := range cob.Matrix {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "element %d", i)
	}
	y := cob.Matrix.Axis(1).Normalize()
	assert.InDeltaSlice(t, []float64{0, -1, 0}, y[:], 1e-9)
}

// TestSolve_SkipsUnknownType keeps solving the neighbours of a constraint
// with no registry entry.
func TestSolve_SkipsUnknownType(t *testing.T) {
	ob := emptyAt("ob", mathutil.Vec3{5, 5, 5})

	var l List
	a := AddForObject(&l, "", TypeLocLimit)
	ad := a.Data.(*LimitLocationData)
	ad.Flag = LimitXMax
	ad.Max = mathutil.Vec3{1, 0, 0}

	l = append(l, &Constraint{Name: "bogus", Type: Type(99), Enforce: 1})

	b := AddForObject(&l, "", TypeLocLimit)
	bd := b.Data.(*LimitLocationData)
	bd.Flag = LimitYMax
	bd.Max = mathutil.Vec3{0, 2, 0}

	cob := objectContext(ob)
	Solve(l, cob, 1)
	assert.Equal(t, mathutil.Vec3{1, 2, 5}, cob.Matrix.Translation())
}

// TestLookupType_Bounds returns nil for NULL and out-of-range values.
func TestLookupType_Bounds(t *testing.T) {
	assert.Nil(t, LookupType(TypeNull))
	assert.Nil(t, LookupType(Type(-1)))
	assert.Nil(t, LookupType(NumTypes))
	for typ := TypeNull + 1; typ < NumTypes; typ++ {
		ti := LookupType(typ)
		require.NotNil(t, ti, "type %d", typ)
		assert.Equal(t, typ, ti.Type())
		assert.NotNil(t, ti.NewData(), "type %s", typ)
	}
}

// TestAdd_UniqueNamesAndActive suffixes clashing names and moves the active flag.
func TestAdd_UniqueNamesAndActive(t *testing.T) {
	var l List
	a := AddForObject(&l, "Grip", TypeLocLike)
	b := AddForObject(&l, "Grip", TypeLocLike)
	c := AddForObject(&l, "Grip", TypeLocLike)

	assert.Equal(t, "Grip", a.Name)
	assert.Equal(t, "Grip.001", b.Name)
	assert.Equal(t, "Grip.002", c.Name)
	assert.Same(t, c, l.Active())

	l.SetActive(a)
	assert.Same(t, a, l.Active())
	assert.Zero(t, c.Flag&FlagActive)
}

// TestAddForPose_Defaults applies the bone-only defaults.
func TestAddForPose_Defaults(t *testing.T) {
	_, pc := armatureRig(t)
	var l List
	assert.Nil(t, AddForPose(&l, nil, "", TypeChildOf))

	child := AddForPose(&l, pc, "", TypeChildOf)
	assert.Equal(t, SpacePose, child.OwnSpace)

	act := AddForPose(&l, pc, "", TypeAction)
	assert.Equal(t, SpaceLocal, act.OwnSpace)
	assert.Equal(t, ActionMixBeforeSplit, act.Data.(*ActionData).MixMode)

	var ol List
	assert.Equal(t, SpaceWorld, AddForObject(&ol, "", TypeChildOf).OwnSpace)
}

// TestDuplicate_DetachesOwnedLists gives the copy its own target records.
func TestDuplicate_DetachesOwnedLists(t *testing.T) {
	arm, _ := armatureRig(t)
	c := New("", TypeArmature)
	d := c.Data.(*ArmatureData)
	d.AddTarget(arm, "root", 0.5)

	cp := Duplicate(c)
	cd := cp.Data.(*ArmatureData)
	require.Len(t, cd.Targets, 1)
	assert.NotSame(t, d.Targets[0], cd.Targets[0])
	assert.Same(t, arm, cd.Targets[0].Tar)

	cd.Targets[0].Weight = 1
	assert.Equal(t, 0.5, d.Targets[0].Weight)
}

// TestDuplicate_SharesTargets keeps ID references pointing at the live
// objects while the payload values are detached.
func TestDuplicate_SharesTargets(t *testing.T) {
	tar := emptyAt("tar", mathutil.Vec3{})
	c := New("", TypeChildOf)
	d := c.Data.(*ChildOfData)
	d.Tar = tar
	d.Flag &^= ChildOfSetInverse

	cp := Duplicate(c)
	cd := cp.Data.(*ChildOfData)
	assert.Same(t, tar, cd.Tar)
	assert.NotSame(t, d, cd)

	cd.InvMat = mathutil.Mat4Translation(mathutil.Vec3{1, 0, 0})
	assert.Equal(t, identity(), d.InvMat)
	cd.InvMat = identity()

	// the copy sees later moves of the target
	tar.Loc = mathutil.Vec3{0, 0, 5}
	tar.WhereIs()
	cob := objectContext(emptyAt("ob", mathutil.Vec3{}))
	Solve(List{cp}, cob, 1)
	assert.InDeltaSlice(t, []float64{0, 0, 5}, loc(cob.Matrix), 1e-12)

	l := CopyList(List{c})
	assert.Same(t, tar, l[0].Data.(*ChildOfData).Tar)
}

// TestRemove_ClearsIKChains drops pose IK data along with an IK constraint.
func TestRemove_ClearsIKChains(t *testing.T) {
	arm, pc := armatureRig(t)
	arm.Pose.IKChains = map[string]int{"child": 2}

	var l List
	ik := AddForPose(&l, pc, "", TypeKinematic)
	require.NoError(t, l.Remove(ik, arm.Pose))
	assert.Empty(t, l)
	assert.Nil(t, arm.Pose.IKChains)

	assert.ErrorIs(t, l.Remove(ik, arm.Pose), ErrNotFound)
}

// TestIDLoop_VisitsPayloadThenSpaceObject reports references with their
// reference flag.
func TestIDLoop_VisitsPayloadThenSpaceObject(t *testing.T) {
	var l List
	c := AddForObject(&l, "", TypeAction)
	d := c.Data.(*ActionData)
	tar := emptyAt("tar", mathutil.Vec3{})
	d.Tar = tar
	walk := &scene.Action{Name: "walk"}
	d.Act = walk
	c.SpaceObject = emptyAt("space", mathutil.Vec3{})

	type visit struct {
		field string
		ref   bool
		name  string
	}
	var got []visit
	IDLoop(l, func(_ *Constraint, r IDRef, isReference bool) {
		name := ""
		if id := r.Get(); id != nil {
			name = id.IDName()
		}
		got = append(got, visit{r.Field(), isReference, name})
	})
	assert.Equal(t, []visit{
		{"target", false, "tar"},
		{"action", true, "walk"},
		{"space_object", false, "space"},
	}, got)

	// freeing drops the reference-counted ID only
	FreeData(c)
	assert.Nil(t, c.Data)
	assert.Nil(t, d.Act)
	assert.Equal(t, "walk", walk.Name)
	assert.Same(t, tar, d.Tar)
}

// TestWriteback_ReachesOriginalOnActiveDepsgraph bakes the ChildOf inverse
// into the original stack only when the depsgraph is active.
func TestWriteback_ReachesOriginalOnActiveDepsgraph(t *testing.T) {
	tar := emptyAt("tar", mathutil.Vec3{1, 0, 0})
	ob := emptyAt("ob", mathutil.Vec3{0, 0, 5})

	var orig List
	c := AddForObject(&orig, "", TypeChildOf)
	c.Data.(*ChildOfData).Tar = tar

	for _, active := range []bool{false, true} {
		dg := NewDepsgraph(1, active)
		eval := CopyList(orig)
		cob := MakeEvalContext(scene.New("test"), dg, ob, nil, OwnerObject)
		Solve(eval, cob, 1)

		od := orig[0].Data.(*ChildOfData)
		if !active {
			assert.Zero(t, dg.Pending())
			assert.NotZero(t, od.Flag&ChildOfSetInverse)
			continue
		}
		q := dg.Drain()
		require.Len(t, q, 1)
		assert.Equal(t, "ob", q[0].Owner)
		assert.True(t, q[0].ApplyTo(orig))
		assert.Zero(t, od.Flag&ChildOfSetInverse)
		assertMat4Near(t, mathutil.Mat4Translation(mathutil.Vec3{-1, 0, 0}), od.InvMat, 1e-12)
	}
}

// TestWriteback_SkipsChangedStack drops a write-back whose slot now holds a
// different constraint.
func TestWriteback_SkipsChangedStack(t *testing.T) {
	var orig List
	AddForObject(&orig, "", TypeLocLimit)
	called := false
	w := Writeback{Index: 0, Type: TypeChildOf, Name: orig[0].Name, Apply: func(*Constraint) { called = true }}
	assert.False(t, w.ApplyTo(orig))
	assert.False(t, called)

	w.Index = 3
	w.Type = TypeLocLimit
	assert.False(t, w.ApplyTo(orig))
}

// TestApplyForObject_BakesIntoTransform moves the constraint result into the
// object's own location.
func TestApplyForObject_BakesIntoTransform(t *testing.T) {
	ob := emptyAt("ob", mathutil.Vec3{3, 0, 0})
	var l List
	c := AddForObject(&l, "", TypeLocLimit)
	d := c.Data.(*LimitLocationData)
	d.Flag = LimitXMax
	d.Max = mathutil.Vec3{1, 0, 0}

	require.NoError(t, ApplyAndRemoveForObject(scene.New("test"), nil, &l, ob, c))
	assert.InDeltaSlice(t, []float64{1, 0, 0}, ob.Loc[:], 1e-12)
	assert.Empty(t, l)

	assert.ErrorIs(t, ApplyForObject(nil, nil, nil, c), ErrNoOwner)
}

// TestTargetMatrix_OutsideSolve resolves a target with an explicit owner.
func TestTargetMatrix_OutsideSolve(t *testing.T) {
	tar := emptyAt("tar", mathutil.Vec3{1, 2, 3})
	ob := emptyAt("ob", mathutil.Vec3{})
	c := New("", TypeLocLike)
	c.Data.(*CopyLocationData).Tar = tar

	m := TargetMatrix(scene.New("test"), nil, c, 0, OwnerObject, ob, nil, 1)
	assert.Equal(t, mathutil.Vec3{1, 2, 3}, m.Translation())
	assert.Equal(t, identity(), TargetMatrix(nil, nil, c, 5, OwnerObject, ob, nil, 1))
	assert.Equal(t, identity(), TargetMatrix(nil, nil, New("", TypeLocLimit), 0, OwnerObject, ob, nil, 1))
}

// TestAfterRead_ResetsRuntimeState clears auto IK and cache readers.
func TestAfterRead_ResetsRuntimeState(t *testing.T) {
	ik := New("", TypeKinematic)
	ik.Data.(*KinematicData).Flag |= IKAuto
	cache := New("", TypeTransformCache)
	cache.Data.(*TransformCacheData).readerPath = "/a"
	broken := &Constraint{Name: "x", Type: Type(77)}

	l := List{ik, cache, broken}
	AfterRead(l, true)
	assert.Zero(t, ik.Data.(*KinematicData).Flag&IKAuto)
	assert.Empty(t, cache.Data.(*TransformCacheData).readerPath)
	assert.Equal(t, TypeNull, broken.Type)
	assert.Zero(t, ik.Flag&FlagOverrideLocal)
}
