// Package skeleton derives armature rest matrices and runs the pose pass
// that places every bone channel through the hierarchy.
package skeleton

import (
	"fmt"
	"sort"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// BuildRest orders the bones parents-first and derives the rest data
// (length, bone and armature matrices, parent-relative head and tail)
// from the armature-space head, tail and roll.
func BuildRest(arm *scene.Armature) error {
	ordered, err := sortBones(arm.Bones)
	if err != nil {
		return fmt.Errorf("skeleton: armature %s: %w", arm.Name, err)
	}
	arm.SetBones(ordered)

	for _, b := range ordered {
		vec := b.ArmTail.Sub(b.ArmHead)
		b.Length = vec.Len()
		if b.Segments < 1 {
			b.Segments = 1
		}

		arm3 := mathutil.VecRollToMat3(vec, b.Roll)
		b.ArmMat = mathutil.FromMat3Translation(arm3, b.ArmHead)

		if p := b.Parent; p != nil {
			b.BoneMat = mathutil.Mat3Mul(p.ArmMat.Mat3().Inverse(), arm3)
			b.Head = p.ArmMat.Inverse().MulPoint(b.ArmHead).Sub(mathutil.Vec3{0, p.Length, 0})
		} else {
			b.BoneMat = arm3
			b.Head = b.ArmHead
		}
		b.Tail = b.Head.Add(b.BoneMat.Axis(1).Scale(b.Length))
	}
	return nil
}

// sortBones returns the bones with every parent before its children,
// keeping declaration order otherwise.
func sortBones(bones []*scene.Bone) ([]*scene.Bone, error) {
	out := make([]*scene.Bone, 0, len(bones))
	state := make(map[*scene.Bone]int, len(bones)) // 1 visiting, 2 done

	var visit func(b *scene.Bone) error
	visit = func(b *scene.Bone) error {
		switch state[b] {
		case 1:
			return fmt.Errorf("bone %s is its own ancestor", b.Name)
		case 2:
			return nil
		}
		state[b] = 1
		if b.Parent != nil {
			if err := visit(b.Parent); err != nil {
				return err
			}
		}
		state[b] = 2
		out = append(out, b)
		return nil
	}

	for _, b := range bones {
		if err := visit(b); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Options controls a pose pass.
type Options struct {
	// RestPosition skips the pose and constraints entirely.
	RestPosition bool
	// Solve runs the bone's constraint stack on its freshly computed
	// PoseMat. It may be nil.
	Solve func(pchan *scene.PoseChannel)
}

// WhereIs computes ChanMat, PoseMat, head/tail and the deform matrix of
// every channel of ob's pose, parents first.
func WhereIs(ob *scene.Object, opts Options) {
	pose := ob.Pose
	if pose == nil {
		return
	}

	for _, pc := range pose.Channels {
		b := pc.Bone
		if opts.RestPosition {
			pc.PoseMat = b.ArmMat
			pc.PoseHead = b.ArmHead
			pc.PoseTail = b.ArmTail
			continue
		}
		whereIsBone(pc, opts.Solve)
	}

	for _, pc := range pose.Channels {
		pc.DeformMat = mathutil.Mat4Mul(pc.PoseMat, pc.Bone.ArmMat.Inverse())
		pc.BBonePoseMats = straightSegments(pc.Bone)
	}
}

func whereIsBone(pc *scene.PoseChannel, solve func(*scene.PoseChannel)) {
	pc.ChanMat = pc.LocalMatrix()
	pc.PoseMat = pc.BoneToPose(pc.ChanMat)

	if solve != nil {
		loc := pc.PoseMat.Translation()
		solve(pc)
		if pc.Bone.Flag&scene.BoneConnected != 0 {
			pc.PoseMat.SetTranslation(loc)
		}
	}

	pc.PoseHead = pc.PoseMat.Translation()
	pc.PoseTail = pc.PoseHead.Add(pc.PoseMat.Axis(1).Scale(pc.Bone.Length))
}

// straightSegments returns segment frames of an unbent b-bone.
func straightSegments(b *scene.Bone) []mathutil.Mat4 {
	if b.Segments <= 1 {
		return nil
	}
	mats := make([]mathutil.Mat4, b.Segments+1)
	step := b.Length / float64(b.Segments)
	for i := range mats {
		mats[i] = mathutil.Mat4Translation(mathutil.Vec3{0, float64(i) * step, 0})
	}
	return mats
}

// Deform moves rest-space points by the weighted deform matrices of the
// bones named by the vertex groups. Points with no bone weight stay put.
func Deform(pose *scene.Pose, verts []mathutil.Vec3, groups map[string][]float64) []mathutil.Vec3 {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]mathutil.Vec3, len(verts))
	for vi, v := range verts {
		var sum mathutil.Vec3
		var total float64
		for _, name := range names {
			weights := groups[name]
			pc := pose.Channel(name)
			if pc == nil || vi >= len(weights) || weights[vi] <= 0 {
				continue
			}
			w := weights[vi]
			sum = sum.Add(pc.DeformMat.MulPoint(v).Scale(w))
			total += w
		}
		if total > 0 {
			out[vi] = sum.Scale(1 / total)
		} else {
			out[vi] = v
		}
	}
	return out
}
