package constraint

import (
	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// ChildOfFlag selects the parented channels.
type ChildOfFlag uint32

const (
	ChildOfLocX ChildOfFlag = 1 << iota
	ChildOfLocY
	ChildOfLocZ
	ChildOfRotX
	ChildOfRotY
	ChildOfRotZ
	ChildOfSizeX
	ChildOfSizeY
	ChildOfSizeZ
	// ChildOfSetInverse recomputes the inverse matrix on the next solve.
	ChildOfSetInverse

	ChildOfAll = ChildOfLocX | ChildOfLocY | ChildOfLocZ | ChildOfRotX | ChildOfRotY | ChildOfRotZ |
		ChildOfSizeX | ChildOfSizeY | ChildOfSizeZ
)

var childOfFlagNames = []string{
	"loc_x", "loc_y", "loc_z", "rot_x", "rot_y", "rot_z",
	"scale_x", "scale_y", "scale_z", "set_inverse",
}

func (f ChildOfFlag) MarshalYAML() (any, error)          { return marshalFlags(f, childOfFlagNames) }
func (f *ChildOfFlag) UnmarshalYAML(n *yaml.Node) error { return unmarshalFlags(n, f, childOfFlagNames) }

// ChildOfData parents the owner to the target through a stored inverse.
type ChildOfData struct {
	Tar       *scene.Object `yaml:"-"`
	Subtarget string        `yaml:"subtarget,omitempty"`

	Flag   ChildOfFlag   `yaml:"flag"`
	InvMat mathutil.Mat4 `yaml:"inverse"`
}

func (d *ChildOfData) targetFields() (**scene.Object, *string) { return &d.Tar, &d.Subtarget }

type childOfType struct {
	typeBase
	singleTarget
}

func (childOfType) NewData() any {
	return &ChildOfData{
		Flag:   ChildOfAll | ChildOfSetInverse,
		InvMat: identity(),
	}
}

func (childOfType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*ChildOfData)
	if len(targets) == 0 || !targets[0].Valid() {
		c.Flag &^= FlagSpaceOnce
		return
	}
	ct := targets[0]
	// the stack result is already in world space
	c.Flag |= FlagSpaceOnce

	var parmat, inverse mathutil.Mat4
	if d.Flag&ChildOfAll == ChildOfAll {
		parmat = ct.Matrix
		inverse = d.InvMat
	} else {
		loc, eul, size := ct.Matrix.Translation(), ct.Matrix.ToEulO(ct.RotOrder), ct.Matrix.Size()
		loco, eulo, sizeo := d.InvMat.Translation(), d.InvMat.ToEulO(cob.RotOrder), d.InvMat.Size()

		for i := 0; i < 3; i++ {
			if d.Flag&(ChildOfLocX<<i) == 0 {
				loc[i], loco[i] = 0, 0
			}
			if d.Flag&(ChildOfRotX<<i) == 0 {
				eul[i], eulo[i] = 0, 0
			}
			if d.Flag&(ChildOfSizeX<<i) == 0 {
				size[i], sizeo[i] = 1, 1
			}
		}
		parmat = mathutil.LocEulOSizeToMat4(loc, eul, size, ct.RotOrder)
		inverse = mathutil.LocEulOSizeToMat4(loco, eulo, sizeo, cob.RotOrder)
	}

	if d.Flag&ChildOfSetInverse != 0 {
		d.InvMat = parmat.Inverse()
		if cob.PChan != nil {
			d.InvMat = mathutil.Mat4Mul(d.InvMat, cob.Ob.ObMat)
		}
		inverse = d.InvMat
		d.Flag &^= ChildOfSetInverse

		invmat := d.InvMat
		cob.writeback(c, func(orig *Constraint) {
			if od, ok := orig.Data.(*ChildOfData); ok {
				od.InvMat = invmat
				od.Flag &^= ChildOfSetInverse
			}
		})
	}

	orig := cob.Matrix
	cob.Matrix = mathutil.Mat4MulSeries(parmat, inverse, orig)

	// disabled location channels keep the owner's location even when the
	// parent rotates or scales
	loc := cob.Matrix.Translation()
	for i := 0; i < 3; i++ {
		if d.Flag&(ChildOfLocX<<i) == 0 {
			loc[i] = orig.Translation()[i]
		}
	}
	cob.Matrix.SetTranslation(loc)
}

// SetInverse asks c to recompute its inverse matrix on the next solve.
func (d *ChildOfData) SetInverse() { d.Flag |= ChildOfSetInverse }

// ClearInverse resets the inverse matrix to identity.
func (d *ChildOfData) ClearInverse() {
	d.InvMat = identity()
	d.Flag &^= ChildOfSetInverse
}
