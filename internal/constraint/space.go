package constraint

import (
	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// ConvertSpace returns m moved from space from to space to for the owner ob,
// or its bone pchan when pchan is set. cob supplies the Custom space matrix
// and, for owner-local space, the owning bone; it may be nil.
//
// Conversions that have no direct formula step through pose or world space.
// A parentless object's local space is world space with the object's own
// rotation (and scale, unless keepScale is false) removed. Objects have no
// pose, parent-local or owner-local space: converting from one of them is a
// no-op, and converting to one stops at world space.
func ConvertSpace(cob *EvalContext, ob *scene.Object, pchan *scene.PoseChannel, m mathutil.Mat4, from, to Space, keepScale bool) mathutil.Mat4 {
	if ob == nil || from == to {
		return m
	}
	if pchan != nil {
		return convertBoneSpace(cob, ob, pchan, m, from, to, keepScale)
	}
	switch from {
	case SpacePose, SpaceParentLocal, SpaceOwnerLocal:
		return m
	}
	to = objectSpace(to)
	if from == to {
		return m
	}
	return convertObjectSpace(cob, ob, m, from, to, keepScale)
}

func customSpace(cob *EvalContext) mathutil.Mat4 {
	if cob == nil {
		return identity()
	}
	return cob.SpaceObjWorldMatrix
}

func convertBoneSpace(cob *EvalContext, ob *scene.Object, pchan *scene.PoseChannel, m mathutil.Mat4, from, to Space, keepScale bool) mathutil.Mat4 {
	bone := pchan.Bone
	recurse := func(from Space) mathutil.Mat4 {
		return convertBoneSpace(cob, ob, pchan, m, from, to, keepScale)
	}

	switch from {
	case SpaceWorld:
		if to == SpaceCustom {
			return mathutil.Mat4Mul(customSpace(cob).Inverse(), m)
		}
		m = mathutil.Mat4Mul(ob.ObMat.Inverse(), m)
		if to == SpaceLocal || to == SpaceParentLocal || to == SpaceOwnerLocal {
			return recurse(SpacePose)
		}
		return m

	case SpacePose:
		switch to {
		case SpaceLocal:
			if bone != nil {
				m = pchan.PoseToBone(m)
			}
			return m
		case SpaceOwnerLocal:
			if bone != nil {
				m = pchan.PoseToBone(m)
			}
			return recurse(SpaceLocal)
		case SpaceParentLocal:
			if bone != nil {
				m = mathutil.Mat4Mul(bone.ArmMat.Inverse(), m)
			}
			return m
		}
		m = mathutil.Mat4Mul(ob.ObMat, m)
		if to != SpaceWorld {
			return recurse(SpaceWorld)
		}
		return m

	case SpaceLocal:
		if to == SpaceOwnerLocal {
			if bone != nil {
				diff := ownerLocalDelta(cob, bone)
				m = mathutil.Mat4MulSeries(diff, m, diff.Inverse())
			}
			return m
		}
		if bone != nil {
			m = pchan.BoneToPose(m)
		}
		if to == SpaceWorld || to == SpaceParentLocal || to == SpaceCustom {
			return recurse(SpacePose)
		}
		return m

	case SpaceOwnerLocal:
		if bone != nil {
			diff := ownerLocalDelta(cob, bone)
			m = mathutil.Mat4MulSeries(diff.Inverse(), m, diff)
		}
		if to != SpaceLocal {
			return recurse(SpaceLocal)
		}
		return m

	case SpaceParentLocal:
		if bone != nil {
			m = mathutil.Mat4Mul(bone.ArmMat, m)
		}
		if to != SpacePose {
			return recurse(SpacePose)
		}
		return m

	case SpaceCustom:
		m = mathutil.Mat4Mul(customSpace(cob), m)
		if to != SpaceWorld {
			return recurse(SpaceWorld)
		}
		return m
	}
	return m
}

// ownerLocalDelta is the rest rotation of bone relative to the bone that
// owns the constraint being solved.
func ownerLocalDelta(cob *EvalContext, bone *scene.Bone) mathutil.Mat4 {
	diff := bone.ArmMat
	if cob != nil && cob.PChan != nil && cob.PChan.Bone != nil {
		diff = mathutil.Mat4Mul(cob.PChan.Bone.ArmMat.Inverse(), diff)
	}
	diff.SetTranslation(mathutil.Vec3{})
	return diff
}

func objectSpace(s Space) Space {
	switch s {
	case SpaceLocal, SpaceCustom:
		return s
	}
	return SpaceWorld
}

// objectLocalBasis is what local space is relative to: the parent frame, or
// the object's own rotation for parentless objects.
func objectLocalBasis(ob *scene.Object, keepScale bool) mathutil.Mat4 {
	if par, ok := ob.ParentMatrix(); ok {
		return mathutil.Mat4Mul(par, ob.ParentInv)
	}
	diff := ob.LocalMatrix()
	if !keepScale {
		diff, _ = diff.Normalized()
	}
	diff.SetTranslation(mathutil.Vec3{})
	return diff
}

func convertObjectSpace(cob *EvalContext, ob *scene.Object, m mathutil.Mat4, from, to Space, keepScale bool) mathutil.Mat4 {
	switch from {
	case SpaceWorld:
		switch to {
		case SpaceLocal:
			return mathutil.Mat4Mul(objectLocalBasis(ob, keepScale).Inverse(), m)
		case SpaceCustom:
			return mathutil.Mat4Mul(customSpace(cob).Inverse(), m)
		}
	case SpaceLocal:
		m = mathutil.Mat4Mul(objectLocalBasis(ob, keepScale), m)
		if to == SpaceCustom {
			m = mathutil.Mat4Mul(customSpace(cob).Inverse(), m)
		}
	case SpaceCustom:
		m = mathutil.Mat4Mul(customSpace(cob), m)
		if to != SpaceWorld {
			return convertObjectSpace(cob, ob, m, SpaceWorld, to, keepScale)
		}
	}
	return m
}
