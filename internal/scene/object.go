package scene

import (
	"fmt"
	"strings"

	"rig-solver/internal/mathutil"
)

// ObjectType selects which type data an object carries.
type ObjectType int

const (
	ObjectEmpty ObjectType = iota
	ObjectMesh
	ObjectCurve
	ObjectLattice
	ObjectArmature
	ObjectCamera
)

var objectTypeNames = [...]string{"empty", "mesh", "curve", "lattice", "armature", "camera"}

func (t ObjectType) String() string {
	if t < 0 || int(t) >= len(objectTypeNames) {
		return fmt.Sprintf("ObjectType(%d)", int(t))
	}
	return objectTypeNames[t]
}

// ParseObjectType is the inverse of String.
func ParseObjectType(s string) (ObjectType, error) {
	for i, n := range objectTypeNames {
		if strings.EqualFold(n, s) {
			return ObjectType(i), nil
		}
	}
	return ObjectEmpty, fmt.Errorf("scene: unknown object type %q", s)
}

// Object is a node of the scene graph.
type Object struct {
	Name string
	Type ObjectType
	Transform

	Parent     *Object
	ParentBone string // parented to this bone of Parent's pose
	ParentInv  mathutil.Mat4

	// ObMat is the evaluated world matrix. ConstInv undoes the effect of the
	// object's constraints on it.
	ObMat    mathutil.Mat4
	ConstInv mathutil.Mat4

	Armature *Armature
	Pose     *Pose
	Mesh     *Mesh
	Lattice  *Lattice
	Curve    *Curve
	Camera   *Camera
}

// NewObject returns an object at the origin with identity matrices.
func NewObject(name string, typ ObjectType) *Object {
	return &Object{
		Name:      name,
		Type:      typ,
		Transform: IdentityTransform(),
		ParentInv: mathutil.Mat4Identity(),
		ObMat:     mathutil.Mat4Identity(),
		ConstInv:  mathutil.Mat4Identity(),
	}
}

func (ob *Object) IDName() string { return ob.Name }

// LocalMatrix is the object's own loc/rot/scale as a matrix.
func (ob *Object) LocalMatrix() mathutil.Mat4 {
	return ob.Transform.Matrix()
}

// ParentMatrix returns the parent's world matrix, or the tail frame of the
// parent bone for bone parenting. ok is false for root objects.
func (ob *Object) ParentMatrix() (mathutil.Mat4, bool) {
	par := ob.Parent
	if par == nil {
		return mathutil.Mat4Identity(), false
	}
	if ob.ParentBone != "" && par.Pose != nil {
		if pchan := par.Pose.Channel(ob.ParentBone); pchan != nil {
			m := mathutil.Mat4Mul(par.ObMat, pchan.PoseMat)
			m.SetTranslation(par.ObMat.MulPoint(pchan.PoseTail))
			return m, true
		}
	}
	return par.ObMat, true
}

// WhereIsMat4 computes the world matrix from the parent chain and the local
// transform, without constraints. The parent must already be evaluated.
func (ob *Object) WhereIsMat4() mathutil.Mat4 {
	local := ob.LocalMatrix()
	if par, ok := ob.ParentMatrix(); ok {
		return mathutil.Mat4MulSeries(par, ob.ParentInv, local)
	}
	return local
}

// WhereIs stores WhereIsMat4 in ObMat.
func (ob *Object) WhereIs() {
	ob.ObMat = ob.WhereIsMat4()
}

// ApplyMat4 sets the transform properties so the object ends up at world
// matrix mat. With useParent the parent contribution is removed first.
func (ob *Object) ApplyMat4(mat mathutil.Mat4, useCompat, useParent bool) {
	if useParent {
		if par, ok := ob.ParentMatrix(); ok {
			rmat := mathutil.Mat4Mul(par, ob.ParentInv)
			mat = mathutil.Mat4Mul(rmat.Inverse(), mat)
		}
	}
	ob.Transform.SetFromMat4(mat, useCompat)
}

// HasVertexGroup reports whether the mesh or lattice data has the named group.
func (ob *Object) HasVertexGroup(name string) bool {
	switch {
	case ob.Mesh != nil:
		_, ok := ob.Mesh.Groups[name]
		return ok
	case ob.Lattice != nil:
		_, ok := ob.Lattice.Groups[name]
		return ok
	}
	return false
}

// Clone returns a copy of the object that shares type data. Parent links
// still point at the originals; callers remap them.
func (ob *Object) Clone() *Object {
	c := *ob
	if ob.Pose != nil {
		c.Pose = ob.Pose.Clone()
	}
	if ob.Curve != nil {
		cu := *ob.Curve
		c.Curve = &cu
	}
	return &c
}
