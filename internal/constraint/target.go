package constraint

import (
	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// TargetType classifies what a target resolves to.
type TargetType int

const (
	TargetObject TargetType = iota + 1
	TargetBone
	TargetVert
)

// TargetFlag marks how a target record was produced.
type TargetFlag int

const (
	// TargetTemp marks records built for one solve.
	TargetTemp TargetFlag = 1 << iota
	// TargetCustomSpace marks the trailing custom space record.
	TargetCustomSpace
)

// Target is one resolved dependency of a constraint.
type Target struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`

	Matrix   mathutil.Mat4     `yaml:"-"`
	Space    Space             `yaml:"-"`
	Type     TargetType        `yaml:"-"`
	RotOrder mathutil.RotOrder `yaml:"-"`

	// Weight is used by the Armature constraint.
	Weight float64    `yaml:"weight"`
	Flag   TargetFlag `yaml:"-"`
}

// Valid reports whether the target names an object.
func (ct *Target) Valid() bool {
	return ct != nil && ct.Tar != nil
}

// newTarget builds a temporary target, classifying it as a bone when the
// object is an armature with a subtarget, as a vertex group for meshes and
// lattices with a subtarget, and as the object otherwise.
func newTarget(c *Constraint, tar *scene.Object, sub string) *Target {
	ct := &Target{
		Tar:       tar,
		Subtarget: sub,
		Space:     c.TarSpace,
		Flag:      TargetTemp,
		Matrix:    identity(),
		RotOrder:  mathutil.EulerXYZ,
	}
	classifyTarget(ct)
	return ct
}

func classifyTarget(ct *Target) {
	tar := ct.Tar
	if tar == nil {
		return
	}
	switch {
	case tar.Type == scene.ObjectArmature && ct.Subtarget != "":
		ct.Type = TargetBone
		if pchan := tar.Pose.Channel(ct.Subtarget); pchan != nil {
			ct.RotOrder = pchan.RotMode.EulerOrder()
		}
	case (tar.Type == scene.ObjectMesh || tar.Type == scene.ObjectLattice) && ct.Subtarget != "":
		ct.Type = TargetVert
	default:
		ct.Type = TargetObject
		ct.RotOrder = tar.RotMode.EulerOrder()
	}
}

// newObjectTarget is newTarget for types without a subtarget.
func newObjectTarget(c *Constraint, tar *scene.Object) *Target {
	ct := &Target{
		Tar:      tar,
		Space:    c.TarSpace,
		Flag:     TargetTemp,
		Matrix:   identity(),
		RotOrder: mathutil.EulerXYZ,
	}
	if tar != nil {
		ct.Type = TargetObject
	}
	return ct
}

func needsCustomSpace(c *Constraint) bool {
	return c.OwnSpace == SpaceCustom || c.TarSpace == SpaceCustom
}

// Targets returns the constraint's targets followed by the custom space
// target when Custom space is in use. Matrices are not computed.
func Targets(c *Constraint) []*Target {
	ti := c.TypeInfo()
	if ti == nil {
		return nil
	}
	var out []*Target
	if tg, ok := ti.(TargetGetter); ok {
		out = tg.Targets(c)
	}
	if needsCustomSpace(c) {
		ct := newTarget(c, c.SpaceObject, c.SpaceSubtarget)
		ct.Space = SpaceWorld
		ct.Flag |= TargetCustomSpace
		out = append(out, ct)
	}
	return out
}

// FlushTargets splits off the custom space target and hands the rest back to
// the type. Unless noCopy is set target identity is stored on c.
func FlushTargets(c *Constraint, targets []*Target, noCopy bool) {
	ti := c.TypeInfo()
	if ti == nil {
		return
	}
	if n := len(targets); n > 0 && targets[n-1].Flag&TargetCustomSpace != 0 {
		ct := targets[n-1]
		if !noCopy {
			c.SpaceObject = ct.Tar
			c.SpaceSubtarget = ct.Subtarget
		}
		targets = targets[:n-1]
	}
	if tf, ok := ti.(TargetFlusher); ok {
		tf.FlushTargets(c, targets, noCopy)
	}
}

// targetsForSolving builds the type's own targets with their matrices.
func targetsForSolving(ti TypeInfo, c *Constraint, cob *EvalContext, ctime float64) []*Target {
	tg, ok := ti.(TargetGetter)
	if !ok {
		return nil
	}
	targets := tg.Targets(c)

	// armature targets are read directly by the evaluator
	if ti.Type() == TypeArmature {
		return targets
	}
	if tm, ok := ti.(TargetMatrixGetter); ok {
		for _, ct := range targets {
			tm.TargetMatrix(cob, c, ct, ctime)
		}
	} else {
		for _, ct := range targets {
			ct.Matrix = identity()
		}
	}
	return targets
}

// TargetMatrix computes the matrix of target index of c for an owner outside
// of a stack solve. Unknown or target-less constraints give identity.
func TargetMatrix(sc *scene.Scene, dg *Depsgraph, c *Constraint, index int, owner OwnerType, ob *scene.Object, pchan *scene.PoseChannel, ctime float64) mathutil.Mat4 {
	ti := c.TypeInfo()
	tg, ok := ti.(TargetGetter)
	if !ok {
		return identity()
	}

	cob := &EvalContext{Scene: sc, Depsgraph: dg, Type: owner, Matrix: identity(), RotOrder: mathutil.EulerXYZ}
	switch owner {
	case OwnerObject:
		cob.Ob = ob
		if ob != nil {
			cob.Matrix = ob.ObMat
		}
	case OwnerBone:
		cob.PChan = pchan
		if pchan != nil {
			cob.Matrix = pchan.PoseMat
		}
	}
	cob.StartMat = cob.Matrix
	initCustomSpace(cob, c)

	targets := tg.Targets(c)
	out := identity()
	if index >= 0 && index < len(targets) {
		ct := targets[index]
		if tm, ok := ti.(TargetMatrixGetter); ok {
			tm.TargetMatrix(cob, c, ct, ctime)
		}
		out = ct.Matrix
	}
	if tf, ok := ti.(TargetFlusher); ok {
		tf.FlushTargets(c, targets, true)
	}
	return out
}

// initCustomSpace resolves the custom space matrix of c into cob.
func initCustomSpace(cob *EvalContext, c *Constraint) {
	if c.SpaceObject != nil && needsCustomSpace(c) {
		cob.SpaceObjWorldMatrix = targetToMat4(nil, c.SpaceObject, c.SpaceSubtarget, SpaceWorld, SpaceWorld, 0, 0)
		return
	}
	cob.SpaceObjWorldMatrix = identity()
}

// defaultTargetMatrix resolves ct into its space. Invalid targets give
// identity and false.
func defaultTargetMatrix(cob *EvalContext, c *Constraint, ct *Target) bool {
	return targetMatrixWithFlag(cob, c, ct, c.Flag)
}

// fullBBoneTargetMatrix also takes rotation and scale of b-bone segments.
func fullBBoneTargetMatrix(cob *EvalContext, c *Constraint, ct *Target) bool {
	return targetMatrixWithFlag(cob, c, ct, c.Flag|FlagBBoneShapeFull)
}

func targetMatrixWithFlag(cob *EvalContext, c *Constraint, ct *Target, flag Flag) bool {
	if !ct.Valid() {
		if ct != nil {
			ct.Matrix = identity()
		}
		return false
	}
	ct.Matrix = targetToMat4(cob, ct.Tar, ct.Subtarget, SpaceWorld, ct.Space, flag, c.HeadTail)
	return true
}

// targetToMat4 is the world matrix of ob, of its vertex group or of its bone
// named sub, converted from space from to space to.
func targetToMat4(cob *EvalContext, ob *scene.Object, sub string, from, to Space, flag Flag, headTail float64) mathutil.Mat4 {
	switch {
	case sub == "":
		return ConvertSpace(cob, ob, nil, ob.ObMat, from, to, false)
	case ob.Type == scene.ObjectMesh:
		return ConvertSpace(cob, ob, nil, meshGroupMatrix(ob, sub), from, to, false)
	case ob.Type == scene.ObjectLattice:
		return ConvertSpace(cob, ob, nil, latticeGroupMatrix(ob, sub), from, to, false)
	}

	pchan := ob.Pose.Channel(sub)
	if pchan == nil {
		return ConvertSpace(cob, ob, nil, ob.ObMat, from, to, false)
	}
	m := mathutil.Mat4Mul(ob.ObMat, bonePointMatrix(pchan, flag, headTail))
	return ConvertSpace(cob, ob, pchan, m, from, to, false)
}

// bonePointMatrix is the pose space frame at headTail along the bone.
func bonePointMatrix(pchan *scene.PoseChannel, flag Flag, headTail float64) mathutil.Mat4 {
	bone := pchan.Bone
	isBBone := bone != nil && bone.Segments > 1 && flag&FlagBBoneShape != 0
	full := flag&FlagBBoneShapeFull != 0

	if headTail < 0.000001 && !(isBBone && full) {
		return pchan.PoseMat
	}
	if isBBone && len(pchan.BBonePoseMats) == bone.Segments+1 {
		bb := pchan.BBonePoseMats
		idx, fac := pchan.BBoneSegmentAt(headTail)
		if full {
			return mathutil.Mat4Mul(pchan.PoseMat, mathutil.Mat4Interp(bb[idx], bb[idx+1], fac))
		}
		loc := bb[idx].Translation().Lerp(bb[idx+1].Translation(), fac)
		m := pchan.PoseMat
		m.SetTranslation(pchan.PoseMat.MulPoint(loc))
		return m
	}

	m := pchan.PoseMat
	m.SetTranslation(pchan.PoseHead.Lerp(pchan.PoseTail, headTail))
	return m
}

// meshGroupMatrix places a frame at the weighted centre of a vertex group,
// oriented by the group's average normal.
func meshGroupMatrix(ob *scene.Object, group string) mathutil.Mat4 {
	me := ob.Mesh
	if me == nil {
		return ob.ObMat
	}
	weights, ok := me.Groups[group]
	if !ok {
		return ob.ObMat
	}

	var vec, normal mathutil.Vec3
	var weightSum float64
	normals := me.VertexNormals()
	for i, co := range me.Verts {
		if i >= len(weights) || weights[i] <= 0 {
			continue
		}
		w := weights[i]
		vec = vec.Add(co.Scale(w))
		normal = normal.Add(normals[i].Scale(w))
		weightSum += w
	}
	if weightSum > 0 {
		vec = vec.Scale(1 / weightSum)
		normal = normal.Scale(1 / weightSum)
	}

	// normals transform with the inverse transpose
	tmat := ob.ObMat.Mat3().Inverse().Transpose()
	normal = tmat.MulVec3(normal).Normalize()

	x := normal.Cross(tmat.Axis(1))
	if x.LenSq() < 1e-6 {
		x = normal.Cross(tmat.Axis(0))
	}
	y := normal.Cross(x)

	return mathutil.FromMat3Translation(mathutil.Mat3FromAxes(x, y, normal).Normalized(), ob.ObMat.MulPoint(vec))
}

// latticeGroupMatrix moves the object matrix to the average of the lattice
// points in group.
func latticeGroupMatrix(ob *scene.Object, group string) mathutil.Mat4 {
	mat := ob.ObMat
	lt := ob.Lattice
	if lt == nil {
		return mat
	}
	if _, ok := lt.Groups[group]; !ok {
		return mat
	}
	centre, _ := lt.GroupCentroid(group)
	mat.SetTranslation(ob.ObMat.MulPoint(centre))
	return mat
}
