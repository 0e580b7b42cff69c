package constraint

import (
	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// ApplyForObject bakes c into ob's loc/rot/scale. ob must hold an evaluated
// world matrix and constraint inverse. The stack's other constraints are
// removed from the result through ConstInv.
func ApplyForObject(sc *scene.Scene, dg *Depsgraph, ob *scene.Object, c *Constraint) error {
	if ob == nil {
		return ErrNoOwner
	}
	if c == nil {
		return ErrNotFound
	}

	single := List{Duplicate(c)}
	cob := MakeEvalContext(sc, dg, ob, nil, OwnerObject)
	cob.Matrix = mathutil.Mat4Mul(ob.ConstInv, cob.Matrix)
	Solve(single, cob, cob.frame())
	ClearEvalContext(cob)
	FreeData(single[0])

	ob.ApplyMat4(ob.ObMat, true, true)
	return nil
}

// ApplyAndRemoveForObject applies c and then removes it from l.
func ApplyAndRemoveForObject(sc *scene.Scene, dg *Depsgraph, l *List, ob *scene.Object, c *Constraint) error {
	if l.Index(c) < 0 {
		return ErrNotFound
	}
	if err := ApplyForObject(sc, dg, ob, c); err != nil {
		return err
	}
	return l.Remove(c, ob.Pose)
}

// ApplyForPose bakes c into the channel's loc/rot/scale. Connected bones
// keep their head where it was.
func ApplyForPose(sc *scene.Scene, dg *Depsgraph, ob *scene.Object, pchan *scene.PoseChannel, c *Constraint) error {
	if ob == nil || pchan == nil {
		return ErrNoOwner
	}
	if c == nil {
		return ErrNotFound
	}

	single := List{Duplicate(c)}
	head := pchan.PoseMat.Translation()

	cob := MakeEvalContext(sc, dg, ob, pchan, OwnerBone)
	cob.Matrix = mathutil.Mat4Mul(pchan.ConstInv, cob.Matrix)
	Solve(single, cob, cob.frame())
	ClearEvalContext(cob)
	FreeData(single[0])

	if pchan.Bone != nil && pchan.Bone.Flag&scene.BoneConnected != 0 {
		pchan.PoseMat.SetTranslation(head)
	}
	pchan.ApplyMat4(pchan.PoseToBone(pchan.PoseMat), true)
	return nil
}

// ApplyAndRemoveForPose applies c and then removes it from l.
func ApplyAndRemoveForPose(sc *scene.Scene, dg *Depsgraph, l *List, ob *scene.Object, pchan *scene.PoseChannel, c *Constraint) error {
	if l.Index(c) < 0 {
		return ErrNotFound
	}
	if err := ApplyForPose(sc, dg, ob, pchan, c); err != nil {
		return err
	}
	return l.Remove(c, ob.Pose)
}
