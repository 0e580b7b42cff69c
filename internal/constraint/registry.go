package constraint

import (
	"sync"

	"rig-solver/internal/scene"
)

// TypeInfo describes one constraint type. Optional behaviour is exposed
// through the capability interfaces below; the solver type-asserts for them.
type TypeInfo interface {
	Type() Type
	Name() string
	// StructName names the payload layout in rig documents.
	StructName() string
	// NewData returns a payload pointer holding the type's defaults.
	NewData() any
}

// IDLooper visits the ID references held by the payload.
type IDLooper interface {
	LoopIDs(c *Constraint, fn IDFunc)
}

// DataCopier deep-copies the parts of a payload that a field copy would
// share. dst already holds a field copy of src's payload.
type DataCopier interface {
	CopyData(dst, src *Constraint)
}

// DataFreer releases what a payload owns.
type DataFreer interface {
	FreeData(c *Constraint)
}

// TargetGetter builds the type's targets. The returned records are fresh
// unless the type keeps a persistent list.
type TargetGetter interface {
	Targets(c *Constraint) []*Target
}

// TargetFlusher writes target identity back into the payload unless noCopy
// is set, then releases the records.
type TargetFlusher interface {
	FlushTargets(c *Constraint, targets []*Target, noCopy bool)
}

// TargetMatrixGetter fills ct.Matrix and reports whether the target was valid.
type TargetMatrixGetter interface {
	TargetMatrix(cob *EvalContext, c *Constraint, ct *Target, ctime float64) bool
}

// Evaluator mutates cob.Matrix.
type Evaluator interface {
	Evaluate(c *Constraint, cob *EvalContext, targets []*Target)
}

type typeBase struct {
	typ        Type
	name       string
	structName string
}

func (b typeBase) Type() Type         { return b.typ }
func (b typeBase) Name() string       { return b.name }
func (b typeBase) StructName() string { return b.structName }

var typeNames = [NumTypes][2]string{
	TypeChildOf:        {"Child Of", "ChildOfData"},
	TypeTrackTo:        {"Track To", "TrackToData"},
	TypeKinematic:      {"IK", "KinematicData"},
	TypeFollowPath:     {"Follow Path", "FollowPathData"},
	TypeRotLimit:       {"Limit Rotation", "LimitRotationData"},
	TypeLocLimit:       {"Limit Location", "LimitLocationData"},
	TypeSizeLimit:      {"Limit Scale", "LimitScaleData"},
	TypeRotLike:        {"Copy Rotation", "CopyRotationData"},
	TypeLocLike:        {"Copy Location", "CopyLocationData"},
	TypeSizeLike:       {"Copy Scale", "CopyScaleData"},
	TypePython:         {"Script", "ScriptData"},
	TypeAction:         {"Action", "ActionData"},
	TypeLockTrack:      {"Locked Track", "LockedTrackData"},
	TypeDistLimit:      {"Limit Distance", "LimitDistanceData"},
	TypeStretchTo:      {"Stretch To", "StretchToData"},
	TypeMinMax:         {"Floor", "FloorData"},
	TypeRigidBodyJoint: {"Rigid Body Joint", "RigidBodyJointData"},
	TypeClampTo:        {"Clamp To", "ClampToData"},
	TypeTransform:      {"Transformation", "TransformationData"},
	TypeShrinkwrap:     {"Shrinkwrap", "ShrinkwrapData"},
	TypeDampTrack:      {"Damped Track", "DampedTrackData"},
	TypeSplineIK:       {"Spline IK", "SplineIKData"},
	TypeTransLike:      {"Copy Transforms", "CopyTransformsData"},
	TypeSameVolume:     {"Maintain Volume", "MaintainVolumeData"},
	TypePivot:          {"Pivot", "PivotData"},
	TypeFollowTrack:    {"Follow Track", "FollowTrackData"},
	TypeCameraSolver:   {"Camera Solver", "CameraSolverData"},
	TypeObjectSolver:   {"Object Solver", "ObjectSolverData"},
	TypeTransformCache: {"Transform Cache", "TransformCacheData"},
	TypeArmature:       {"Armature", "ArmatureData"},
}

func base(typ Type) typeBase {
	return typeBase{typ: typ, name: typeNames[typ][0], structName: typeNames[typ][1]}
}

var registry = sync.OnceValue(func() [NumTypes]TypeInfo {
	var r [NumTypes]TypeInfo
	for _, ti := range []TypeInfo{
		childOfType{typeBase: base(TypeChildOf)},
		trackToType{typeBase: base(TypeTrackTo)},
		kinematicType{typeBase: base(TypeKinematic)},
		followPathType{typeBase: base(TypeFollowPath)},
		limitRotationType{typeBase: base(TypeRotLimit)},
		limitLocationType{typeBase: base(TypeLocLimit)},
		limitScaleType{typeBase: base(TypeSizeLimit)},
		copyRotationType{typeBase: base(TypeRotLike)},
		copyLocationType{typeBase: base(TypeLocLike)},
		copyScaleType{typeBase: base(TypeSizeLike)},
		scriptType{typeBase: base(TypePython)},
		actionType{typeBase: base(TypeAction)},
		lockedTrackType{typeBase: base(TypeLockTrack)},
		limitDistanceType{typeBase: base(TypeDistLimit)},
		stretchToType{typeBase: base(TypeStretchTo)},
		floorType{typeBase: base(TypeMinMax)},
		rigidBodyJointType{typeBase: base(TypeRigidBodyJoint)},
		clampToType{typeBase: base(TypeClampTo)},
		transformationType{typeBase: base(TypeTransform)},
		shrinkwrapType{typeBase: base(TypeShrinkwrap)},
		dampedTrackType{typeBase: base(TypeDampTrack)},
		splineIKType{typeBase: base(TypeSplineIK)},
		copyTransformsType{typeBase: base(TypeTransLike)},
		maintainVolumeType{typeBase: base(TypeSameVolume)},
		pivotType{typeBase: base(TypePivot)},
		followTrackType{typeBase: base(TypeFollowTrack)},
		cameraSolverType{typeBase: base(TypeCameraSolver)},
		objectSolverType{typeBase: base(TypeObjectSolver)},
		transformCacheType{typeBase: base(TypeTransformCache)},
		armatureType{typeBase: base(TypeArmature)},
	} {
		r[ti.Type()] = ti
	}
	return r
})

// LookupType returns the registry entry for typ. NULL has no entry; values
// outside the table log a warning.
func LookupType(typ Type) TypeInfo {
	if typ < TypeNull || typ >= NumTypes {
		Logger().Warn("no constraint type info", "type", int(typ))
		return nil
	}
	return registry()[typ]
}

// Types lists the registered types in table order.
func Types() []TypeInfo {
	r := registry()
	out := make([]TypeInfo, 0, len(r))
	for _, ti := range r {
		if ti != nil {
			out = append(out, ti)
		}
	}
	return out
}

// targetFields is implemented by payloads with one target object. sub is
// nil when the type takes no subtarget.
type targetFields interface {
	targetFields() (tar **scene.Object, sub *string)
}

// singleTarget is the common target handling of one-target types. Types
// embed it and get Targets, FlushTargets, LoopIDs and TargetMatrix.
type singleTarget struct{}

func fieldsOf(c *Constraint) (**scene.Object, *string, bool) {
	h, ok := c.Data.(targetFields)
	if !ok || h == nil {
		return nil, nil, false
	}
	tar, sub := h.targetFields()
	return tar, sub, tar != nil
}

func (singleTarget) Targets(c *Constraint) []*Target {
	tar, sub, ok := fieldsOf(c)
	if !ok {
		return nil
	}
	if sub == nil {
		return []*Target{newObjectTarget(c, *tar)}
	}
	return []*Target{newTarget(c, *tar, *sub)}
}

func (singleTarget) FlushTargets(c *Constraint, targets []*Target, noCopy bool) {
	tar, sub, ok := fieldsOf(c)
	if !ok || len(targets) == 0 || noCopy {
		return
	}
	ct := targets[0]
	*tar = ct.Tar
	if sub != nil {
		*sub = ct.Subtarget
	}
	c.TarSpace = ct.Space
}

func (singleTarget) LoopIDs(c *Constraint, fn IDFunc) {
	if tar, _, ok := fieldsOf(c); ok {
		fn(c, objectRef("target", tar), false)
	}
}

func (singleTarget) TargetMatrix(cob *EvalContext, c *Constraint, ct *Target, _ float64) bool {
	return defaultTargetMatrix(cob, c, ct)
}
