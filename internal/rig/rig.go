// Package rig evaluates a whole scene for one frame: object and bone
// constraint stacks in dependency order, on a copy of the scene, with the
// write-backs of the run applied to the original stacks afterwards.
package rig

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rig-solver/internal/constraint"
	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
	"rig-solver/internal/skeleton"
)

// Stacks are the constraint stacks owned by one object.
type Stacks struct {
	Object constraint.List
	// Bones maps pose channel names to their stacks.
	Bones map[string]constraint.List
}

func (s *Stacks) clone() *Stacks {
	c := &Stacks{Object: constraint.CopyList(s.Object)}
	if len(s.Bones) > 0 {
		c.Bones = make(map[string]constraint.List, len(s.Bones))
		for name, l := range s.Bones {
			c.Bones[name] = constraint.CopyList(l)
		}
	}
	return c
}

// Rig is a scene plus the constraint stacks of its objects.
type Rig struct {
	Scene *scene.Scene
	// Stacks is keyed by object name.
	Stacks map[string]*Stacks
	// Animation maps object names to the action driving their transform
	// and pose channels.
	Animation map[string]*scene.Action

	// Writeback enables the write-back queue. Batch runs over many frames
	// turn it off so no frame edits the stacks another frame reads.
	Writeback bool
	Scripts   constraint.ScriptEngine

	mu  sync.RWMutex
	log *slog.Logger
}

// New returns a rig over sc with empty stacks.
func New(sc *scene.Scene) *Rig {
	return &Rig{
		Scene:     sc,
		Stacks:    make(map[string]*Stacks),
		Animation: make(map[string]*scene.Action),
		Writeback: true,
		log:       constraint.Logger(),
	}
}

// SetLogger replaces the rig's logger; nil falls back to the engine logger.
func (r *Rig) SetLogger(l *slog.Logger) {
	if l == nil {
		l = constraint.Logger()
	}
	r.log = l
}

func (r *Rig) logger() *slog.Logger {
	if r.log == nil {
		return constraint.Logger()
	}
	return r.log
}

// StacksFor returns the stacks of the named object, creating them.
func (r *Rig) StacksFor(name string) *Stacks {
	if r.Stacks == nil {
		r.Stacks = make(map[string]*Stacks)
	}
	s, ok := r.Stacks[name]
	if !ok {
		s = &Stacks{}
		r.Stacks[name] = s
	}
	return s
}

// SetBoneStack replaces the stack of one bone.
func (r *Rig) SetBoneStack(object, bone string, l constraint.List) {
	s := r.StacksFor(object)
	if s.Bones == nil {
		s.Bones = make(map[string]constraint.List)
	}
	s.Bones[bone] = l
}

// Frame is the evaluated state of a rig at one frame.
type Frame struct {
	Number float64
	Scene  *scene.Scene
	Stacks map[string]*Stacks

	// Matrices holds world matrices keyed by object name and by
	// "object/bone" for pose channels.
	Matrices map[string]mathutil.Mat4
	// Evaluated counts solved, unmuted constraints by type key.
	Evaluated map[string]int
	// Applied is the number of write-backs stored on the original stacks.
	Applied  int
	Duration time.Duration
}

// BoneKey is the Matrices key of a pose channel.
func BoneKey(object, bone string) string {
	return object + "/" + bone
}

// Evaluate solves the rig at frame on a copy of the scene.
func (r *Rig) Evaluate(ctx context.Context, frame float64) (*Frame, error) {
	start := time.Now()

	r.mu.RLock()
	sc, stacks := r.cloneLocked()
	r.mu.RUnlock()
	sc.Frame = frame

	order := r.order(sc, stacks)
	dg := constraint.NewDepsgraph(frame, r.Writeback)
	out := &Frame{
		Number:    frame,
		Scene:     sc,
		Stacks:    stacks,
		Matrices:  make(map[string]mathutil.Mat4, len(sc.Objects)),
		Evaluated: make(map[string]int),
	}

	for _, ob := range order {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("rig: frame %g: %w", frame, err)
		}
		r.evalObject(sc, dg, ob, stacks[ob.Name], frame, out)
	}

	if queued := dg.Drain(); len(queued) > 0 {
		out.Applied = r.applyWriteback(queued)
	}
	out.Duration = time.Since(start)
	return out, nil
}

func (r *Rig) evalObject(sc *scene.Scene, dg *constraint.Depsgraph, ob *scene.Object, st *Stacks, frame float64, out *Frame) {
	act := r.Animation[ob.Name]
	if act != nil {
		act.EvalObject(ob, frame)
	}
	ob.WhereIs()

	if st != nil && len(st.Object) > 0 {
		cob := constraint.MakeEvalContext(sc, dg, ob, nil, constraint.OwnerObject)
		cob.Scripts = r.Scripts
		constraint.Solve(st.Object, cob, frame)
		constraint.ClearEvalContext(cob)
		count(st.Object, out.Evaluated)
	}
	out.Matrices[ob.Name] = ob.ObMat

	if ob.Pose == nil {
		return
	}
	if act != nil {
		for _, pc := range ob.Pose.Channels {
			act.EvalPoseChannel(pc, frame)
		}
	}
	skeleton.WhereIs(ob, skeleton.Options{Solve: func(pc *scene.PoseChannel) {
		if st == nil {
			return
		}
		l := st.Bones[pc.Name]
		if len(l) == 0 {
			return
		}
		cob := constraint.MakeEvalContext(sc, dg, ob, pc, constraint.OwnerBone)
		cob.Scripts = r.Scripts
		constraint.Solve(l, cob, frame)
		constraint.ClearEvalContext(cob)
		count(l, out.Evaluated)
	}})
	for _, pc := range ob.Pose.Channels {
		out.Matrices[BoneKey(ob.Name, pc.Name)] = mathutil.Mat4Mul(ob.ObMat, pc.PoseMat)
	}
}

func count(l constraint.List, into map[string]int) {
	for _, c := range l {
		if !c.Muted() && c.TypeInfo() != nil {
			into[c.Type.Key()]++
		}
	}
}

// cloneLocked copies the scene and stacks, pointing object references of
// the copied stacks at the copied objects.
func (r *Rig) cloneLocked() (*scene.Scene, map[string]*Stacks) {
	sc, remap := r.Scene.Clone()
	relink := func(_ *constraint.Constraint, ref constraint.IDRef, _ bool) {
		if ref.Kind() != constraint.IDObject {
			return
		}
		if ob, ok := ref.Get().(*scene.Object); ok {
			if c := remap[ob]; c != nil {
				ref.Set(c)
			}
		}
	}

	stacks := make(map[string]*Stacks, len(r.Stacks))
	for name, s := range r.Stacks {
		c := s.clone()
		constraint.IDLoop(c.Object, relink)
		for _, l := range c.Bones {
			constraint.IDLoop(l, relink)
		}
		stacks[name] = c
	}
	return sc, stacks
}

// applyWriteback stores queued values on the original stacks.
func (r *Rig) applyWriteback(queued []constraint.Writeback) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := 0
	for _, w := range queued {
		s := r.Stacks[w.Owner]
		if s == nil {
			continue
		}
		l := s.Object
		if w.Bone != "" {
			l = s.Bones[w.Bone]
		}
		if w.ApplyTo(l) {
			applied++
		} else {
			r.logger().Debug("rig: stale write-back", "owner", w.Owner, "bone", w.Bone, "constraint", w.Name)
		}
	}
	return applied
}

// Update runs fn with exclusive access to the original scene and stacks.
func (r *Rig) Update(fn func(sc *scene.Scene, stacks map[string]*Stacks)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.Scene, r.Stacks)
}

// View runs fn with shared access to the original scene and stacks.
func (r *Rig) View(fn func(sc *scene.Scene, stacks map[string]*Stacks)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.Scene, r.Stacks)
}
