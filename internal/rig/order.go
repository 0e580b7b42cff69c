package rig

import (
	"maps"
	"slices"

	"rig-solver/internal/constraint"
	"rig-solver/internal/scene"
)

// dependencies lists the objects ob must be evaluated after: its parent and
// every other object its stacks reference.
func dependencies(ob *scene.Object, st *Stacks) []*scene.Object {
	var deps []*scene.Object
	if ob.Parent != nil {
		deps = append(deps, ob.Parent)
	}
	if st == nil {
		return deps
	}
	collect := func(_ *constraint.Constraint, ref constraint.IDRef, _ bool) {
		if ref.Kind() != constraint.IDObject {
			return
		}
		if dep, ok := ref.Get().(*scene.Object); ok && dep != nil && dep != ob {
			deps = append(deps, dep)
		}
	}
	constraint.IDLoop(st.Object, collect)
	for _, name := range slices.Sorted(maps.Keys(st.Bones)) {
		constraint.IDLoop(st.Bones[name], collect)
	}
	return deps
}

// order returns the objects of sc with dependencies first, keeping
// declaration order otherwise. A cycle is broken at the edge that closes it.
func (r *Rig) order(sc *scene.Scene, stacks map[string]*Stacks) []*scene.Object {
	out := make([]*scene.Object, 0, len(sc.Objects))
	state := make(map[*scene.Object]int, len(sc.Objects)) // 1 visiting, 2 done
	member := make(map[*scene.Object]bool, len(sc.Objects))
	for _, ob := range sc.Objects {
		member[ob] = true
	}

	var visit func(ob *scene.Object)
	visit = func(ob *scene.Object) {
		switch state[ob] {
		case 1:
			r.logger().Warn("rig: dependency cycle", "object", ob.Name)
			return
		case 2:
			return
		}
		state[ob] = 1
		for _, dep := range dependencies(ob, stacks[ob.Name]) {
			if member[dep] {
				visit(dep)
			}
		}
		state[ob] = 2
		out = append(out, ob)
	}
	for _, ob := range sc.Objects {
		visit(ob)
	}
	return out
}
