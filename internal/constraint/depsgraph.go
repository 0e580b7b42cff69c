package constraint

import "sync"

// Writeback is a value an evaluator wants stored on the original constraint
// when it ran on a copy-on-evaluate duplicate.
type Writeback struct {
	Owner string // object name
	Bone  string // pose channel name, empty for object stacks
	Index int    // position in the owner's stack
	Type  Type
	Name  string

	Apply func(orig *Constraint)
}

// ApplyTo runs the write-back on the matching constraint of orig. It reports
// false when the stack changed and no constraint matches any more.
func (w Writeback) ApplyTo(orig List) bool {
	c := FindOriginal(orig, w.Index, w.Type, w.Name)
	if c == nil || w.Apply == nil {
		return false
	}
	w.Apply(c)
	return true
}

// Depsgraph carries the evaluation frame and collects write-backs. Only an
// active depsgraph accepts them.
type Depsgraph struct {
	Active bool
	Frame  float64

	mu    sync.Mutex
	queue []Writeback
}

// NewDepsgraph returns a depsgraph for frame.
func NewDepsgraph(frame float64, active bool) *Depsgraph {
	return &Depsgraph{Active: active, Frame: frame}
}

// IsActive is nil-safe.
func (d *Depsgraph) IsActive() bool {
	return d != nil && d.Active
}

// Enqueue records w. Inactive depsgraphs drop it.
func (d *Depsgraph) Enqueue(w Writeback) {
	if !d.IsActive() {
		return
	}
	d.mu.Lock()
	d.queue = append(d.queue, w)
	d.mu.Unlock()
}

// Drain returns and clears the pending write-backs in enqueue order.
func (d *Depsgraph) Drain() []Writeback {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.queue
	d.queue = nil
	return q
}

// Pending reports the queue length.
func (d *Depsgraph) Pending() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}
