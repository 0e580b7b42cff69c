package constraint

import (
	"strconv"

	"rig-solver/internal/scene"
)

// IDKind tells which scene collection an ID reference points into.
type IDKind int

const (
	IDObject IDKind = iota
	IDAction
	IDMovieClip
	IDCacheFile
	IDText
)

var idKindNames = [...]string{"object", "action", "clip", "cache_file", "text"}

func (k IDKind) String() string {
	if k < 0 || int(k) >= len(idKindNames) {
		return "unknown"
	}
	return idKindNames[k]
}

// IDRef is one ID pointer held by a constraint.
type IDRef interface {
	// Field names the payload field, e.g. "target" or "targets[1]".
	Field() string
	Kind() IDKind
	// Get returns nil for an unset reference.
	Get() scene.ID
	// Set stores id; values of the wrong kind are ignored.
	Set(id scene.ID)
}

// IDFunc is called once per ID reference. isReference marks references that
// count as users of the ID rather than plain links.
type IDFunc func(c *Constraint, ref IDRef, isReference bool)

type idPointer interface {
	comparable
	scene.ID
}

type ref[T idPointer] struct {
	field string
	kind  IDKind
	p     *T
}

func (r ref[T]) Field() string { return r.field }
func (r ref[T]) Kind() IDKind  { return r.kind }

func (r ref[T]) Get() scene.ID {
	var zero T
	if *r.p == zero {
		return nil
	}
	return *r.p
}

func (r ref[T]) Set(id scene.ID) {
	var zero T
	if id == nil {
		*r.p = zero
		return
	}
	if v, ok := id.(T); ok {
		*r.p = v
	}
}

func objectRef(field string, p **scene.Object) IDRef {
	return ref[*scene.Object]{field: field, kind: IDObject, p: p}
}

func actionRef(field string, p **scene.Action) IDRef {
	return ref[*scene.Action]{field: field, kind: IDAction, p: p}
}

func clipRef(field string, p **scene.MovieClip) IDRef {
	return ref[*scene.MovieClip]{field: field, kind: IDMovieClip, p: p}
}

func cacheFileRef(field string, p **scene.CacheFile) IDRef {
	return ref[*scene.CacheFile]{field: field, kind: IDCacheFile, p: p}
}

func textRef(field string, p **scene.Text) IDRef {
	return ref[*scene.Text]{field: field, kind: IDText, p: p}
}

// indexedField names element i of a list field, e.g. "targets[2]".
func indexedField(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}

func loopIDs(ti TypeInfo, c *Constraint, fn IDFunc) {
	if l, ok := ti.(IDLooper); ok && c.Data != nil {
		l.LoopIDs(c, fn)
	}
	fn(c, objectRef("space_object", &c.SpaceObject), false)
}

// IDLoop calls fn for every ID reference in the stack: payload references
// first, then the custom space object of each constraint.
func IDLoop(l List, fn IDFunc) {
	for _, c := range l {
		if ti := c.TypeInfo(); ti != nil {
			loopIDs(ti, c, fn)
		}
	}
}
