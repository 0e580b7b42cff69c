package scene

import (
	"fmt"
	"math"
	"strings"

	"rig-solver/internal/mathutil"
)

// BoneFlag holds per-bone options.
type BoneFlag uint32

const (
	BoneConnected BoneFlag = 1 << iota
	BoneHinge
	BoneNoLocalLocation
	BoneMultVGEnv
)

// InheritScale selects how much of the parent's scale a bone inherits.
type InheritScale int

const (
	InheritScaleFull InheritScale = iota
	InheritScaleFixShear
	InheritScaleNone
	InheritScaleAverage
	InheritScaleNoneLegacy
	InheritScaleAligned
)

var inheritScaleNames = [...]string{"full", "fix_shear", "none", "average", "none_legacy", "aligned"}

func (s InheritScale) String() string {
	if s < 0 || int(s) >= len(inheritScaleNames) {
		return fmt.Sprintf("InheritScale(%d)", int(s))
	}
	return inheritScaleNames[s]
}

// ParseInheritScale maps a lower-case mode name; "" is full.
func ParseInheritScale(s string) (InheritScale, error) {
	if s == "" {
		return InheritScaleFull, nil
	}
	for i, n := range inheritScaleNames {
		if strings.EqualFold(n, s) {
			return InheritScale(i), nil
		}
	}
	return InheritScaleFull, fmt.Errorf("scene: unknown inherit scale mode %q", s)
}

// Bone is the rest state of one armature bone.
type Bone struct {
	Name   string
	Parent *Bone

	// ArmHead, ArmTail and Roll are authored in armature space; the
	// remaining rest data is derived from them by skeleton.BuildRest.
	ArmHead, ArmTail mathutil.Vec3
	Roll             float64

	Head, Tail mathutil.Vec3 // relative to the parent's tail
	Length     float64
	BoneMat    mathutil.Mat3 // rest rotation relative to the parent
	ArmMat     mathutil.Mat4 // rest matrix in armature space

	Flag         BoneFlag
	InheritScale InheritScale
	Segments     int

	// envelope
	RadHead, RadTail float64
	Dist             float64
}

// Armature owns the rest bones, ordered so that parents come first.
type Armature struct {
	Name   string
	Bones  []*Bone
	byName map[string]*Bone
}

// NewArmature indexes bones by name. The order is fixed up by skeleton.BuildRest.
func NewArmature(name string, bones []*Bone) *Armature {
	arm := &Armature{Name: name, Bones: bones}
	arm.reindex()
	return arm
}

func (a *Armature) reindex() {
	a.byName = make(map[string]*Bone, len(a.Bones))
	for _, b := range a.Bones {
		a.byName[b.Name] = b
	}
}

// Bone looks a bone up by name.
func (a *Armature) Bone(name string) *Bone {
	if a == nil {
		return nil
	}
	return a.byName[name]
}

// SetBones replaces the bone list, keeping the name index in sync.
func (a *Armature) SetBones(bones []*Bone) {
	a.Bones = bones
	a.reindex()
}

// OffsetMatrix is the bone's rest matrix relative to its parent's tail.
func (b *Bone) OffsetMatrix() mathutil.Mat4 {
	head := b.Head
	if b.Parent != nil {
		head[1] += b.Parent.Length
	}
	return mathutil.FromMat3Translation(b.BoneMat, head)
}

// Pose holds the animated state of every bone of an armature object.
type Pose struct {
	Channels []*PoseChannel
	byName   map[string]*PoseChannel

	// IKChains maps an IK tip bone to its chain length. It is rebuilt from
	// the IK constraints on every evaluation.
	IKChains map[string]int
}

// PoseChannel is one bone's pose.
type PoseChannel struct {
	Name   string
	Bone   *Bone
	Parent *PoseChannel
	Transform

	ChanMat  mathutil.Mat4 // local loc/rot/scale matrix
	PoseMat  mathutil.Mat4 // armature-space result
	ConstInv mathutil.Mat4

	// DeformMat maps rest armature space to posed armature space.
	DeformMat mathutil.Mat4

	PoseHead, PoseTail mathutil.Vec3

	// BBonePoseMats holds Segments+1 segment frames in bone space.
	BBonePoseMats []mathutil.Mat4
}

// NewPose builds one channel per bone with an identity pose.
func NewPose(arm *Armature) *Pose {
	p := &Pose{}
	chans := make(map[*Bone]*PoseChannel, len(arm.Bones))
	for _, b := range arm.Bones {
		pc := &PoseChannel{
			Name:      b.Name,
			Bone:      b,
			Transform: IdentityTransform(),
			ChanMat:   mathutil.Mat4Identity(),
			PoseMat:   b.ArmMat,
			ConstInv:  mathutil.Mat4Identity(),
			DeformMat: mathutil.Mat4Identity(),
		}
		chans[b] = pc
		p.Channels = append(p.Channels, pc)
	}
	for _, pc := range p.Channels {
		if pc.Bone.Parent != nil {
			pc.Parent = chans[pc.Bone.Parent]
		}
	}
	p.reindex()
	return p
}

func (p *Pose) reindex() {
	p.byName = make(map[string]*PoseChannel, len(p.Channels))
	for _, pc := range p.Channels {
		p.byName[pc.Name] = pc
	}
}

// Channel looks a pose channel up by bone name.
func (p *Pose) Channel(name string) *PoseChannel {
	if p == nil {
		return nil
	}
	return p.byName[name]
}

// ClearIKData drops the IK chain bookkeeping.
func (p *Pose) ClearIKData() {
	p.IKChains = nil
}

// Clone deep-copies the channels; bones stay shared.
func (p *Pose) Clone() *Pose {
	c := &Pose{Channels: make([]*PoseChannel, len(p.Channels))}
	remap := make(map[*PoseChannel]*PoseChannel, len(p.Channels))
	for i, pc := range p.Channels {
		n := *pc
		n.BBonePoseMats = append([]mathutil.Mat4(nil), pc.BBonePoseMats...)
		c.Channels[i] = &n
		remap[pc] = &n
	}
	for _, pc := range c.Channels {
		if pc.Parent != nil {
			pc.Parent = remap[pc.Parent]
		}
	}
	if p.IKChains != nil {
		c.IKChains = make(map[string]int, len(p.IKChains))
		for k, v := range p.IKChains {
			c.IKChains[k] = v
		}
	}
	c.reindex()
	return c
}

// LocalMatrix builds the channel matrix from loc/rot/scale. Connected bones
// ignore their location.
func (pc *PoseChannel) LocalMatrix() mathutil.Mat4 {
	rs := mathutil.Mat3Mul(pc.RotMat3(), mathutil.Mat3Diag(pc.Scale[0], pc.Scale[1], pc.Scale[2]))
	var loc mathutil.Vec3
	if pc.Bone == nil || pc.Bone.Flag&BoneConnected == 0 {
		loc = pc.Loc
	}
	return mathutil.FromMat3Translation(rs, loc)
}

// ApplyMat4 sets the channel's loc/rot/scale from a bone-space matrix.
func (pc *PoseChannel) ApplyMat4(mat mathutil.Mat4, useCompat bool) {
	pc.Transform.SetFromMat4(mat, useCompat)
}

// ParentTransform returns the transform from the channel's local space to
// pose space.
func (pc *PoseChannel) ParentTransform() BoneParentTransform {
	b := pc.Bone
	if pc.Parent != nil && b.Parent != nil {
		parArm := b.Parent.ArmMat
		parPose := pc.Parent.PoseMat
		return boneParentTransformFromMatrices(b.Flag, b.InheritScale, b.OffsetMatrix(), &parArm, &parPose)
	}
	return boneParentTransformFromMatrices(b.Flag, b.InheritScale, b.ArmMat, nil, nil)
}

// PoseToBone converts a pose-space matrix to the channel's local space.
func (pc *PoseChannel) PoseToBone(m mathutil.Mat4) mathutil.Mat4 {
	bpt := pc.ParentTransform()
	return bpt.Invert().Apply(m)
}

// BoneToPose converts a local-space matrix to pose space.
func (pc *PoseChannel) BoneToPose(m mathutil.Mat4) mathutil.Mat4 {
	return pc.ParentTransform().Apply(m)
}

// BBoneSegmentAt returns the segment index and blend factor for a position
// 0..1 along the bone.
func (pc *PoseChannel) BBoneSegmentAt(headTail float64) (int, float64) {
	segs := pc.Bone.Segments
	pos := mathutil.Clamp(headTail, 0, 1) * float64(segs)
	idx := int(math.Floor(pos))
	if idx > segs-1 {
		idx = segs - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx, mathutil.Clamp(pos-float64(idx), 0, 1)
}

// BBoneDeformSegment locates a rest armature-space point along the bone.
func (pc *PoseChannel) BBoneDeformSegment(co mathutil.Vec3) (int, float64) {
	b := pc.Bone
	if b.Length == 0 {
		return 0, 0
	}
	y := b.ArmMat.Inverse().MulPoint(co)[1]
	return pc.BBoneSegmentAt(y / b.Length)
}

// BoneParentTransform splits the parent contribution into a rotation/scale
// part, a location part and a trailing per-axis scale.
type BoneParentTransform struct {
	RotScale  mathutil.Mat4
	Loc       mathutil.Mat4
	PostScale mathutil.Vec3
}

func boneParentTransformFromMatrices(flag BoneFlag, inherit InheritScale, offs mathutil.Mat4, parArm, parPose *mathutil.Mat4) BoneParentTransform {
	bpt := BoneParentTransform{PostScale: mathutil.Vec3{1, 1, 1}}

	if parPose == nil {
		bpt.RotScale = offs
		if flag&BoneNoLocalLocation != 0 {
			bpt.Loc = mathutil.Mat4Translation(offs.Translation())
		} else {
			bpt.Loc = bpt.RotScale
		}
		return bpt
	}

	useRot := flag&BoneHinge == 0
	full := useRot && inherit == InheritScaleFull

	if full {
		bpt.RotScale = mathutil.Mat4Mul(*parPose, offs)
	} else {
		var tmat mathutil.Mat4
		if useRot {
			tmat = *parPose
			switch inherit {
			case InheritScaleNone, InheritScaleAverage:
				tmat = tmat.OrthogonalizeStable(1, true)
			case InheritScaleAligned:
				tmat = tmat.OrthogonalizeStable(1, false)
				tmat, bpt.PostScale = tmat.Normalized()
			case InheritScaleNoneLegacy:
				tmat, _ = tmat.Normalized()
			}
		} else {
			tmat = *parArm
			switch inherit {
			case InheritScaleFull:
				tmat = tmat.Rescale(parPose.Size())
			case InheritScaleFixShear:
				tmat = tmat.Rescale(parPose.SizeFixShear())
			case InheritScaleAligned:
				bpt.PostScale = parPose.SizeFixShear()
			}
		}

		if inherit == InheritScaleAverage {
			tmat = tmat.WithMat3(tmat.Mat3().ScaleBy(math.Cbrt(math.Abs(parPose.Det3()))))
		}

		bpt.RotScale = mathutil.Mat4Mul(tmat, offs)
		if inherit == InheritScaleFixShear {
			bpt.RotScale = bpt.RotScale.OrthogonalizeStable(1, false)
		}
	}

	switch {
	case flag&BoneNoLocalLocation != 0:
		bpt.Loc = mathutil.Mat4Translation(parPose.MulPoint(offs.Translation()))
	case !full:
		bpt.Loc = mathutil.Mat4Mul(*parPose, offs)
	default:
		bpt.Loc = bpt.RotScale
	}
	return bpt
}

// Invert returns the transform from pose space back to local space.
func (bpt BoneParentTransform) Invert() BoneParentTransform {
	inv := BoneParentTransform{
		RotScale: bpt.RotScale.Inverse(),
		Loc:      bpt.Loc.Inverse(),
	}
	for i := 0; i < 3; i++ {
		inv.PostScale[i] = mathutil.SafeDiv(1, bpt.PostScale[i])
	}
	return inv
}

// Apply transforms in: rotation and scale through RotScale, the location
// through Loc, then PostScale.
func (bpt BoneParentTransform) Apply(in mathutil.Mat4) mathutil.Mat4 {
	loc := bpt.Loc.MulPoint(in.Translation())
	out := mathutil.Mat4Mul(bpt.RotScale, in)
	out.SetTranslation(loc)
	return out.Rescale(bpt.PostScale)
}
