// Package constraint solves stacks of object and bone constraints.
//
// A stack is an ordered List. Solve walks it once per evaluation, moving the
// owner matrix into each constraint's own space, resolving targets, running
// the type's evaluator and blending the result back by influence in world
// space. The engine never returns errors: anything unresolvable leaves the
// owner matrix untouched.
package constraint

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

var (
	// ErrNoOwner is returned when a constraint is applied without an owner.
	ErrNoOwner = errors.New("constraint: no owner")
	// ErrNotFound is returned for a constraint that is not in the list.
	ErrNotFound = errors.New("constraint: not in list")
)

const defaultName = "Const"

// Constraint is one entry of a stack.
type Constraint struct {
	Name string
	Type Type
	Flag Flag

	// Enforce is the influence. It is not clamped; 0 skips the constraint.
	Enforce float64

	OwnSpace Space
	TarSpace Space

	// SpaceObject and SpaceSubtarget define the Custom space.
	SpaceObject    *scene.Object
	SpaceSubtarget string

	// HeadTail picks a point along bone targets, 0 at the head.
	HeadTail float64

	// Data is the type payload, a pointer to one of the *Data structs.
	Data any
}

// TypeInfo returns the registry entry of the constraint's type.
func (c *Constraint) TypeInfo() TypeInfo {
	if c == nil {
		return nil
	}
	return LookupType(c.Type)
}

func (c *Constraint) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Type.Key())
}

// Muted reports whether the solver skips the constraint.
func (c *Constraint) Muted() bool {
	return c.Flag&(FlagDisable|FlagOff) != 0 || c.Enforce == 0
}

// List is an ordered constraint stack.
type List []*Constraint

// New allocates a constraint with default payload. An empty name falls back
// to the type's display name.
func New(name string, typ Type) *Constraint {
	c := &Constraint{
		Type:    typ,
		Flag:    FlagOverrideLocal,
		Enforce: 1,
	}
	ti := LookupType(typ)
	if ti != nil {
		c.Data = ti.NewData()
		if name == "" {
			name = ti.Name()
		}
	}
	if name == "" {
		name = defaultName
	}
	c.Name = name
	return c
}

// Add appends c, makes its name unique and marks it active.
func (l *List) Add(c *Constraint) {
	*l = append(*l, c)
	UniqueName(c, *l)
	l.SetActive(c)
}

func addNew(l *List, pchan *scene.PoseChannel, name string, typ Type) *Constraint {
	c := New(name, typ)
	l.Add(c)

	switch typ {
	case TypeChildOf:
		if pchan != nil {
			c.OwnSpace = SpacePose
		}
	case TypeAction:
		// before/split needs local space, which only means something on bones
		if pchan != nil {
			c.Data.(*ActionData).MixMode = ActionMixBeforeSplit
			c.OwnSpace = SpaceLocal
		}
	}
	return c
}

// AddForObject creates a constraint at the end of an object stack.
func AddForObject(l *List, name string, typ Type) *Constraint {
	return addNew(l, nil, name, typ)
}

// AddForPose creates a constraint at the end of a bone stack. It returns nil
// without a pose channel.
func AddForPose(l *List, pchan *scene.PoseChannel, name string, typ Type) *Constraint {
	if pchan == nil {
		return nil
	}
	return addNew(l, pchan, name, typ)
}

// UniqueName renames c so no other member of l shares its name. Clashes get
// a ".001" style suffix.
func UniqueName(c *Constraint, l List) {
	if c.Name == "" {
		c.Name = defaultName
	}
	taken := func(name string) bool {
		for _, o := range l {
			if o != c && o.Name == name {
				return true
			}
		}
		return false
	}
	if !taken(c.Name) {
		return
	}

	base, n := splitNumericSuffix(c.Name)
	for {
		n++
		name := fmt.Sprintf("%s.%03d", base, n)
		if !taken(name) {
			c.Name = name
			return
		}
	}
}

func splitNumericSuffix(name string) (string, int) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return name, 0
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil || n < 0 {
		return name, 0
	}
	return name[:i], n
}

// Find returns the first constraint called name.
func (l List) Find(name string) *Constraint {
	for _, c := range l {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Index returns the position of c, or -1.
func (l List) Index(c *Constraint) int {
	for i, o := range l {
		if o == c {
			return i
		}
	}
	return -1
}

// Active returns the constraint flagged active.
func (l List) Active() *Constraint {
	for _, c := range l {
		if c.Flag&FlagActive != 0 {
			return c
		}
	}
	return nil
}

// SetActive flags c as the only active constraint. nil clears the flag.
func (l List) SetActive(c *Constraint) {
	for _, o := range l {
		if o == c {
			o.Flag |= FlagActive
		} else {
			o.Flag &^= FlagActive
		}
	}
}

// FindFromTarget returns the constraint of l whose persistent target list
// holds tgt.
func (l List) FindFromTarget(tgt *Target) *Constraint {
	for _, c := range l {
		var targets []*Target
		switch d := c.Data.(type) {
		case *ArmatureData:
			targets = d.Targets
		case *ScriptData:
			targets = d.Targets
		}
		for _, t := range targets {
			if t == tgt {
				return c
			}
		}
	}
	return nil
}

// FindOriginal returns the constraint of orig at index that matches the
// evaluated copy by type and name.
func FindOriginal(orig List, index int, typ Type, name string) *Constraint {
	if index < 0 || index >= len(orig) {
		return nil
	}
	c := orig[index]
	if c.Type != typ || c.Name != name {
		return nil
	}
	return c
}

// Duplicate returns a detached copy of src. The payload is copied by value,
// so ID references stay shared with src; types owning lists or readers fix
// their copy up in CopyData.
func Duplicate(src *Constraint) *Constraint {
	dst := *src
	ti := src.TypeInfo()
	if ti != nil && src.Data != nil {
		data := ti.NewData()
		dv, sv := reflect.ValueOf(data), reflect.ValueOf(src.Data)
		if dv.Kind() != reflect.Pointer || dv.Type() != sv.Type() || sv.IsNil() {
			Logger().Warn("constraint: payload type mismatch", "name", src.Name, "type", src.Type)
			dst.Data = nil
			return &dst
		}
		dv.Elem().Set(sv.Elem())
		dst.Data = data
		if cp, ok := ti.(DataCopier); ok {
			cp.CopyData(&dst, src)
		}
	}
	return &dst
}

// CopyList duplicates every constraint of src. Copies are marked local to
// the new owner.
func CopyList(src List) List {
	dst := make(List, len(src))
	for i, c := range src {
		dst[i] = Duplicate(c)
		dst[i].Flag |= FlagOverrideLocal
	}
	return dst
}

// CopyForObject duplicates src onto the end of l.
func CopyForObject(l *List, src *Constraint) *Constraint {
	c := Duplicate(src)
	l.Add(c)
	return c
}

// CopyForPose duplicates src onto a bone stack; nil without a channel.
func CopyForPose(l *List, pchan *scene.PoseChannel, src *Constraint) *Constraint {
	if pchan == nil {
		return nil
	}
	return CopyForObject(l, src)
}

// FreeData releases what the payload owns and drops its reference IDs.
func FreeData(c *Constraint) {
	if c.Data == nil {
		return
	}
	if ti := c.TypeInfo(); ti != nil {
		if fr, ok := ti.(DataFreer); ok {
			fr.FreeData(c)
		}
		loopIDs(ti, c, func(_ *Constraint, ref IDRef, isReference bool) {
			if isReference {
				ref.Set(nil)
			}
		})
	}
	c.Data = nil
}

// Remove deletes c from l. Removing an IK or spline IK constraint drops the
// pose's IK chain data.
func (l *List) Remove(c *Constraint, pose *scene.Pose) error {
	i := l.Index(c)
	if i < 0 {
		return ErrNotFound
	}
	FreeData(c)
	*l = append((*l)[:i], (*l)[i+1:]...)
	if (c.Type == TypeKinematic || c.Type == TypeSplineIK) && pose != nil {
		pose.ClearIKData()
	}
	return nil
}

// AfterRead repairs a freshly loaded stack: payload-less constraints become
// NULL, and runtime state that must not survive a reload is reset.
func AfterRead(l List, linked bool) {
	for _, c := range l {
		if c.TypeInfo() == nil || c.Data == nil {
			c.Data = nil
			c.Type = TypeNull
		}
		if linked {
			c.Flag &^= FlagOverrideLocal
		}
		switch d := c.Data.(type) {
		case *KinematicData:
			d.Flag &^= IKAuto
		case *TransformCacheData:
			d.reader = nil
			d.readerPath = ""
		case *ArmatureData:
			reclassify(d.Targets)
		case *ScriptData:
			reclassify(d.Targets)
		}
	}
}

// reclassify restores the runtime fields of persistent targets read from a
// document.
func reclassify(targets []*Target) {
	for _, ct := range targets {
		if ct.Matrix == (mathutil.Mat4{}) {
			ct.Matrix = identity()
		}
		if ct.RotOrder == 0 {
			ct.RotOrder = mathutil.EulerXYZ
		}
		classifyTarget(ct)
	}
}

// UsesBBone reports whether ct is sampled along the b-bone curve.
func UsesBBone(c *Constraint, ct *Target) bool {
	if ct.Flag&TargetCustomSpace != 0 {
		return false
	}
	return c.Flag&FlagBBoneShape != 0 || c.Type == TypeArmature
}

func identity() mathutil.Mat4 { return mathutil.Mat4Identity() }

// fltEpsilon is the single precision epsilon the degenerate-case tests
// compare against.
const fltEpsilon = 1.1920928955078125e-07
