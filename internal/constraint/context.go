package constraint

import (
	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// ScriptEngine runs script constraints. It is optional; without one script
// constraints do nothing.
type ScriptEngine interface {
	// Target may adjust a resolved target matrix in place.
	Target(data *ScriptData, ct *Target)
	// Exec evaluates the constraint on cob.Matrix.
	Exec(data *ScriptData, cob *EvalContext, targets []*Target)
}

// EvalContext is the state of one stack solve.
type EvalContext struct {
	// Matrix is the owner's world matrix, mutated by every constraint.
	Matrix mathutil.Mat4
	// StartMat is Matrix before the stack ran.
	StartMat mathutil.Mat4

	Ob    *scene.Object
	PChan *scene.PoseChannel
	Type  OwnerType

	// RotOrder is the Euler order of the owner, XYZ for quaternion owners.
	RotOrder mathutil.RotOrder

	// SpaceObjWorldMatrix is the Custom space of the current constraint.
	SpaceObjWorldMatrix mathutil.Mat4

	Scene     *scene.Scene
	Depsgraph *Depsgraph
	Scripts   ScriptEngine

	index int
}

// MakeEvalContext starts a solve for ob, or for its bone pchan when typ is
// OwnerBone. A missing owner yields identity matrices.
func MakeEvalContext(sc *scene.Scene, dg *Depsgraph, ob *scene.Object, pchan *scene.PoseChannel, typ OwnerType) *EvalContext {
	cob := &EvalContext{
		Matrix:              identity(),
		SpaceObjWorldMatrix: identity(),
		Scene:               sc,
		Depsgraph:           dg,
		RotOrder:            mathutil.EulerXYZ,
	}

	switch typ {
	case OwnerObject:
		if ob != nil {
			cob.Ob = ob
			cob.Type = typ
			cob.RotOrder = ob.RotMode.EulerOrder()
			cob.Matrix = ob.ObMat
		}
	case OwnerBone:
		if ob != nil && pchan != nil {
			cob.Ob = ob
			cob.PChan = pchan
			cob.Type = typ
			cob.RotOrder = pchan.RotMode.EulerOrder()
			cob.Matrix = mathutil.Mat4Mul(ob.ObMat, pchan.PoseMat)
		}
	}
	cob.StartMat = cob.Matrix
	return cob
}

// ClearEvalContext stores the solved matrix on the owner together with the
// inverse of the change the stack made.
func ClearEvalContext(cob *EvalContext) {
	if cob == nil {
		return
	}
	delta := mathutil.Mat4Mul(cob.Matrix, cob.StartMat.Inverse())

	switch cob.Type {
	case OwnerObject:
		if cob.Ob != nil {
			cob.Ob.ObMat = cob.Matrix
			cob.Ob.ConstInv = delta.Inverse()
		}
	case OwnerBone:
		if cob.Ob != nil && cob.PChan != nil {
			cob.PChan.PoseMat = mathutil.Mat4Mul(cob.Ob.ObMat.Inverse(), cob.Matrix)
			cob.PChan.ConstInv = delta.Inverse()
		}
	}
}

func (cob *EvalContext) frame() float64 {
	if cob.Depsgraph != nil {
		return cob.Depsgraph.Frame
	}
	if cob.Scene != nil {
		return cob.Scene.Frame
	}
	return 0
}

// writeback queues fn for the original of c. Only active depsgraphs keep it.
func (cob *EvalContext) writeback(c *Constraint, fn func(orig *Constraint)) {
	if !cob.Depsgraph.IsActive() || cob.Ob == nil {
		return
	}
	w := Writeback{Owner: cob.Ob.Name, Index: cob.index, Type: c.Type, Name: c.Name, Apply: fn}
	if cob.PChan != nil {
		w.Bone = cob.PChan.Name
	}
	cob.Depsgraph.Enqueue(w)
}
