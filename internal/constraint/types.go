package constraint

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
)

// Type selects the constraint variant and with it the payload layout.
type Type int

const (
	TypeNull Type = iota
	TypeChildOf
	TypeTrackTo
	TypeKinematic
	TypeFollowPath
	TypeRotLimit
	TypeLocLimit
	TypeSizeLimit
	TypeRotLike
	TypeLocLike
	TypeSizeLike
	TypePython
	TypeAction
	TypeLockTrack
	TypeDistLimit
	TypeStretchTo
	TypeMinMax
	TypeRigidBodyJoint
	TypeClampTo
	TypeTransform
	TypeShrinkwrap
	TypeDampTrack
	TypeSplineIK
	TypeTransLike
	TypeSameVolume
	TypePivot
	TypeFollowTrack
	TypeCameraSolver
	TypeObjectSolver
	TypeTransformCache
	TypeArmature

	NumTypes
)

// typeKeys are the document names of each type, indexed by Type.
var typeKeys = [NumTypes]string{
	"", "child_of", "track_to", "ik", "follow_path",
	"limit_rotation", "limit_location", "limit_scale",
	"copy_rotation", "copy_location", "copy_scale", "script",
	"action", "locked_track", "limit_distance", "stretch_to", "floor",
	"rigid_body_joint", "clamp_to", "transformation", "shrinkwrap",
	"damped_track", "spline_ik", "copy_transforms", "maintain_volume",
	"pivot", "follow_track", "camera_solver", "object_solver",
	"transform_cache", "armature",
}

// Key returns the lower-case document name of the type.
func (t Type) Key() string {
	if t <= TypeNull || t >= NumTypes {
		return fmt.Sprintf("type_%d", int(t))
	}
	return typeKeys[t]
}

func (t Type) String() string {
	if t <= TypeNull || t >= NumTypes {
		return t.Key()
	}
	if ti := LookupType(t); ti != nil {
		return ti.Name()
	}
	return t.Key()
}

// ParseType maps a document name to its Type.
func ParseType(s string) (Type, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, k := range typeKeys {
		if k != "" && k == s {
			return Type(i), true
		}
	}
	return TypeNull, false
}

// Flag holds the generic constraint options.
type Flag uint32

const (
	// FlagDisable marks a constraint that cannot run, e.g. a missing target.
	FlagDisable Flag = 1 << iota
	// FlagOff is the user mute toggle.
	FlagOff
	// FlagSpaceOnce skips the conversion back to world space after evaluation.
	FlagSpaceOnce
	FlagOverrideLocal
	FlagActive
	// FlagBBoneShape samples bone targets along the b-bone curve.
	FlagBBoneShape
	// FlagBBoneShapeFull also takes the b-bone segment rotation and scale.
	FlagBBoneShapeFull
)

// Space is a coordinate frame owners and targets are interpreted in.
type Space int

const (
	SpaceWorld Space = iota
	SpaceLocal
	SpacePose
	SpaceParentLocal
	SpaceOwnerLocal
	SpaceCustom
)

var spaceNames = [...]string{"world", "local", "pose", "parent_local", "owner_local", "custom"}

func (s Space) String() string {
	if s < 0 || int(s) >= len(spaceNames) {
		return fmt.Sprintf("Space(%d)", int(s))
	}
	return spaceNames[s]
}

// ParseSpace maps a space name; "" is world.
func ParseSpace(s string) (Space, error) {
	if s == "" {
		return SpaceWorld, nil
	}
	for i, n := range spaceNames {
		if strings.EqualFold(n, s) {
			return Space(i), nil
		}
	}
	return SpaceWorld, fmt.Errorf("constraint: unknown space %q", s)
}

// Spaces lists every space in declaration order.
func Spaces() []Space {
	return []Space{SpaceWorld, SpaceLocal, SpacePose, SpaceParentLocal, SpaceOwnerLocal, SpaceCustom}
}

// OwnerType tells whether a stack belongs to an object or a bone.
type OwnerType int

const (
	OwnerObject OwnerType = iota + 1
	OwnerBone
)

// TrackAxis is a signed basis axis used by the tracking constraints.
type TrackAxis int

const (
	TrackX TrackAxis = iota
	TrackY
	TrackZ
	TrackNegX
	TrackNegY
	TrackNegZ
)

var trackAxisNames = []string{"x", "y", "z", "-x", "-y", "-z"}

// Index is the unsigned axis, 0..2.
func (a TrackAxis) Index() int { return int(a) % 3 }

// Negative reports the -X, -Y and -Z axes.
func (a TrackAxis) Negative() bool { return a >= TrackNegX }

// Vec is the unit vector along the axis.
func (a TrackAxis) Vec() mathutil.Vec3 {
	v := mathutil.Basis[a.Index()]
	if a.Negative() {
		v = v.Neg()
	}
	return v
}

func (a TrackAxis) MarshalYAML() (any, error)          { return marshalEnum(a, trackAxisNames) }
func (a *TrackAxis) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, a, trackAxisNames) }

// Axis is an unsigned basis axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

var axisNames = []string{"x", "y", "z"}

func (a Axis) MarshalYAML() (any, error)          { return marshalEnum(a, axisNames) }
func (a *Axis) UnmarshalYAML(n *yaml.Node) error { return unmarshalEnum(n, a, axisNames) }
