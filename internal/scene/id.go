// Package scene holds the data a rig is made of: objects and their type
// data (armatures, meshes, lattices, curves, cameras), actions, movie-clip
// tracking data and cache files.
package scene

// ID is anything a constraint can reference by name.
type ID interface {
	IDName() string
}

// Text is a named script body, referenced by script constraints.
type Text struct {
	Name string
	Body string
}

func (t *Text) IDName() string { return t.Name }
