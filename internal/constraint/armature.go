package constraint

import (
	"math"

	"gopkg.in/yaml.v3"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// ArmatureFlag holds Armature constraint options.
type ArmatureFlag uint32

const (
	// ArmatureQuaternion blends with dual quaternions instead of matrices.
	ArmatureQuaternion ArmatureFlag = 1 << iota
	// ArmatureEnvelope multiplies target weights by the bone envelopes.
	ArmatureEnvelope
	// ArmatureCurLocation binds bone owners at their current location
	// instead of the rest head.
	ArmatureCurLocation
)

var armatureFlagNames = []string{"preserve_volume", "use_envelopes", "use_current_location"}

func (f ArmatureFlag) MarshalYAML() (any, error) { return marshalFlags(f, armatureFlagNames) }
func (f *ArmatureFlag) UnmarshalYAML(n *yaml.Node) error {
	return unmarshalFlags(n, f, armatureFlagNames)
}

// ArmatureData deforms the owner like an armature modifier would, using a
// weighted list of bones.
type ArmatureData struct {
	Flag    ArmatureFlag `yaml:"flag"`
	Targets []*Target    `yaml:"targets"`
}

// AddTarget appends a bone target with weight.
func (d *ArmatureData) AddTarget(tar *scene.Object, bone string, weight float64) *Target {
	ct := &Target{Tar: tar, Subtarget: bone, Weight: weight, Matrix: identity(), RotOrder: mathutil.EulerXYZ}
	classifyTarget(ct)
	d.Targets = append(d.Targets, ct)
	return ct
}

type armatureType struct{ typeBase }

func (armatureType) NewData() any { return &ArmatureData{} }

func (armatureType) Targets(c *Constraint) []*Target {
	d := c.Data.(*ArmatureData)
	out := make([]*Target, len(d.Targets))
	copy(out, d.Targets)
	return out
}

func (armatureType) LoopIDs(c *Constraint, fn IDFunc) {
	d := c.Data.(*ArmatureData)
	for i, ct := range d.Targets {
		fn(c, objectRef(indexedField("targets", i), &ct.Tar), false)
	}
}

func (armatureType) CopyData(dst, src *Constraint) {
	s := src.Data.(*ArmatureData)
	d := dst.Data.(*ArmatureData)
	d.Targets = make([]*Target, len(s.Targets))
	for i, ct := range s.Targets {
		cp := *ct
		d.Targets[i] = &cp
	}
}

func (armatureType) FreeData(c *Constraint) {
	c.Data.(*ArmatureData).Targets = nil
}

// TargetMatrix is the world pose matrix of the target bone.
func (armatureType) TargetMatrix(_ *EvalContext, _ *Constraint, ct *Target, _ float64) bool {
	if !ct.Valid() || ct.Tar.Type != scene.ObjectArmature {
		if ct != nil {
			ct.Matrix = identity()
		}
		return false
	}
	pchan := ct.Tar.Pose.Channel(ct.Subtarget)
	if pchan == nil {
		ct.Matrix = identity()
		return false
	}
	ct.Matrix = mathutil.Mat4Mul(ct.Tar.ObMat, pchan.PoseMat)
	return true
}

// armatureSum accumulates weighted bone transforms.
type armatureSum struct {
	mat    mathutil.Mat4
	dq     mathutil.DualQuat
	useDQ  bool
	weight float64
}

func (s *armatureSum) add(obmat, iobmat, basemat, bonemat mathutil.Mat4, pivot mathutil.Vec3, weight float64) {
	if weight == 0 {
		return
	}
	mat := mathutil.Mat4MulSeries(obmat, bonemat, iobmat)
	if s.useDQ {
		baseWorld := mathutil.Mat4Mul(obmat, basemat).OrthogonalizeStable(1, true)
		s.dq.AddWeightedPivot(mathutil.Mat4ToDQuat(baseWorld, mat), pivot, weight)
		return
	}
	s.mat = s.mat.Add(mat.ScaleBy(weight))
}

// addBone accumulates one target bone for the world space point wco.
func (s *armatureSum) addBone(ct *Target, pchan *scene.PoseChannel, wco mathutil.Vec3, forceEnvelope bool) {
	bone := pchan.Bone
	weight := ct.Weight

	obmat := ct.Tar.ObMat
	iobmat := obmat.Inverse()
	co := iobmat.MulPoint(wco)

	if forceEnvelope || bone.Flag&scene.BoneMultVGEnv != 0 {
		weight *= distFactorToBone(co, bone.ArmHead, bone.ArmTail, bone.RadHead, bone.RadTail, bone.Dist)
	}

	if bone.Segments > 1 && len(pchan.BBonePoseMats) == bone.Segments+1 {
		idx, blend := pchan.BBoneDeformSegment(co)
		for k, w := range [2]float64{1 - blend, blend} {
			i := idx + k
			basemat := mathutil.Mat4Mul(bone.ArmMat, bboneRestSegment(bone, i))
			deform := mathutil.Mat4MulSeries(pchan.PoseMat, pchan.BBonePoseMats[i], basemat.Inverse())
			s.add(obmat, iobmat, basemat, deform, wco, weight*w)
		}
	} else {
		s.add(obmat, iobmat, bone.ArmMat, pchan.DeformMat, wco, weight)
	}
	s.weight += weight
}

// bboneRestSegment is the rest frame of segment i in bone space.
func bboneRestSegment(bone *scene.Bone, i int) mathutil.Mat4 {
	return mathutil.Mat4Translation(mathutil.Vec3{0, float64(i) * bone.Length / float64(bone.Segments), 0})
}

func (armatureType) Evaluate(c *Constraint, cob *EvalContext, targets []*Target) {
	d := c.Data.(*ArmatureData)
	sum := armatureSum{useDQ: d.Flag&ArmatureQuaternion != 0}
	useEnvelopes := d.Flag&ArmatureEnvelope != 0

	// bone owners bind at the rest head so they can move as if parented
	var inputCo mathutil.Vec3
	if cob.PChan != nil && cob.PChan.Bone != nil && d.Flag&ArmatureCurLocation == 0 {
		inputCo = cob.Ob.ObMat.MulPoint(cob.PChan.Bone.ArmHead)
	} else {
		inputCo = cob.Matrix.Translation()
	}

	for _, ct := range targets {
		if ct.Weight <= 0 {
			continue
		}
		if !ct.Valid() || ct.Tar.Type != scene.ObjectArmature {
			return
		}
		pchan := ct.Tar.Pose.Channel(ct.Subtarget)
		if pchan == nil || pchan.Bone == nil {
			return
		}
		sum.addBone(ct, pchan, inputCo, useEnvelopes)
	}

	if sum.weight <= 0 {
		return
	}
	var total mathutil.Mat4
	if sum.useDQ {
		sum.dq.Normalize(sum.weight)
		total = sum.dq.ToMat4()
	} else {
		total = sum.mat.ScaleBy(1 / sum.weight)
	}
	cob.Matrix = mathutil.Mat4Mul(total, cob.Matrix)
}

// distFactorToBone is the envelope weight of vec for a bone from b1 to b2:
// full inside the capsule, fading to zero over rdist outside it.
func distFactorToBone(vec, b1, b2 mathutil.Vec3, rad1, rad2, rdist float64) float64 {
	bdelta, l := b2.Sub(b1).NormalizeLen()
	pdelta := vec.Sub(b1)

	a := bdelta.Dot(pdelta)
	var distSq, rad float64
	switch {
	case a < 0:
		distSq = b1.Sub(vec).LenSq()
		rad = rad1
	case a > l:
		distSq = b2.Sub(vec).LenSq()
		rad = rad2
	default:
		distSq = pdelta.LenSq() - a*a
		rad = rad1
		if l != 0 {
			f := a / l
			rad = f*rad2 + (1-f)*rad1
		}
	}

	if distSq < rad*rad {
		return 1
	}
	outer := (rad + rdist) * (rad + rdist)
	if rdist == 0 || distSq >= outer {
		return 0
	}
	a = math.Sqrt(distSq) - rad
	return 1 - (a*a)/(rdist*rdist)
}
