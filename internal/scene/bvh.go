package scene

import (
	"math"
	"sort"

	"rig-solver/internal/mathutil"
)

// Hit is the result of a BVH query.
type Hit struct {
	Index int // triangle index
	Co    mathutil.Vec3
	No    mathutil.Vec3 // face normal
	Dist  float64       // ray distance, or squared distance for nearest queries
}

type aabb struct{ min, max mathutil.Vec3 }

func (b *aabb) extend(p mathutil.Vec3) {
	for i := 0; i < 3; i++ {
		b.min[i] = math.Min(b.min[i], p[i])
		b.max[i] = math.Max(b.max[i], p[i])
	}
}

func (b aabb) distSq(p mathutil.Vec3) float64 {
	var d float64
	for i := 0; i < 3; i++ {
		if v := b.min[i] - p[i]; v > 0 {
			d += v * v
		} else if v := p[i] - b.max[i]; v > 0 {
			d += v * v
		}
	}
	return d
}

// rayEnter returns the entry distance of a ray into the box, ok=false on a miss.
func (b aabb) rayEnter(orig, invDir mathutil.Vec3, maxDist float64) (float64, bool) {
	tmin, tmax := 0.0, maxDist
	for i := 0; i < 3; i++ {
		t1 := (b.min[i] - orig[i]) * invDir[i]
		t2 := (b.max[i] - orig[i]) * invDir[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

type bvhNode struct {
	box         aabb
	left, right int // child nodes, -1 for leaves
	first, n    int // leaf range in BVH.order
}

// BVH is a bounding volume tree over mesh triangles supporting nearest
// surface point and ray queries.
type BVH struct {
	verts []mathutil.Vec3
	tris  [][3]int
	order []int
	nodes []bvhNode
}

const bvhLeafSize = 4

// NewBVH builds the tree with median splits along the widest axis.
func NewBVH(verts []mathutil.Vec3, tris [][3]int) *BVH {
	t := &BVH{verts: verts, tris: tris, order: make([]int, len(tris))}
	for i := range t.order {
		t.order[i] = i
	}
	if len(tris) > 0 {
		t.build(0, len(tris))
	}
	return t
}

func (t *BVH) triBox(i int) aabb {
	tri := t.tris[i]
	b := aabb{t.verts[tri[0]], t.verts[tri[0]]}
	b.extend(t.verts[tri[1]])
	b.extend(t.verts[tri[2]])
	return b
}

func (t *BVH) centroid(i int) mathutil.Vec3 {
	tri := t.tris[i]
	return t.verts[tri[0]].Add(t.verts[tri[1]]).Add(t.verts[tri[2]]).Scale(1.0 / 3)
}

func (t *BVH) build(first, n int) int {
	box := t.triBox(t.order[first])
	for _, ti := range t.order[first+1 : first+n] {
		b := t.triBox(ti)
		box.extend(b.min)
		box.extend(b.max)
	}

	idx := len(t.nodes)
	t.nodes = append(t.nodes, bvhNode{box: box, left: -1, right: -1, first: first, n: n})
	if n <= bvhLeafSize {
		return idx
	}

	ext := box.max.Sub(box.min)
	axis := 0
	if ext[1] > ext[axis] {
		axis = 1
	}
	if ext[2] > ext[axis] {
		axis = 2
	}
	span := t.order[first : first+n]
	sort.Slice(span, func(a, b int) bool {
		return t.centroid(span[a])[axis] < t.centroid(span[b])[axis]
	})

	half := n / 2
	left := t.build(first, half)
	right := t.build(first+half, n-half)
	t.nodes[idx].left, t.nodes[idx].right = left, right
	return idx
}

// Nearest returns the closest surface point to p.
func (t *BVH) Nearest(p mathutil.Vec3) (Hit, bool) {
	best := Hit{Index: -1, Dist: math.Inf(1)}
	if len(t.nodes) > 0 {
		t.nearest(0, p, &best)
	}
	return best, best.Index >= 0
}

func (t *BVH) nearest(ni int, p mathutil.Vec3, best *Hit) {
	node := &t.nodes[ni]
	if node.box.distSq(p) >= best.Dist {
		return
	}
	if node.left < 0 {
		for _, ti := range t.order[node.first : node.first+node.n] {
			tri := t.tris[ti]
			co := closestOnTriangle(p, t.verts[tri[0]], t.verts[tri[1]], t.verts[tri[2]])
			if d := co.Sub(p).LenSq(); d < best.Dist {
				*best = Hit{Index: ti, Co: co, No: t.normal(ti), Dist: d}
			}
		}
		return
	}
	l, r := node.left, node.right
	if t.nodes[r].box.distSq(p) < t.nodes[l].box.distSq(p) {
		l, r = r, l
	}
	t.nearest(l, p, best)
	t.nearest(r, p, best)
}

// RayCast returns the first triangle hit along dir (unit length) within maxDist.
func (t *BVH) RayCast(orig, dir mathutil.Vec3, maxDist float64) (Hit, bool) {
	best := Hit{Index: -1, Dist: maxDist}
	if len(t.nodes) == 0 {
		return best, false
	}
	var inv mathutil.Vec3
	for i := 0; i < 3; i++ {
		inv[i] = 1 / dir[i]
	}
	t.rayCast(0, orig, dir, inv, &best)
	return best, best.Index >= 0
}

func (t *BVH) rayCast(ni int, orig, dir, inv mathutil.Vec3, best *Hit) {
	node := &t.nodes[ni]
	if _, ok := node.box.rayEnter(orig, inv, best.Dist); !ok {
		return
	}
	if node.left < 0 {
		for _, ti := range t.order[node.first : node.first+node.n] {
			tri := t.tris[ti]
			if d, ok := rayTriangle(orig, dir, t.verts[tri[0]], t.verts[tri[1]], t.verts[tri[2]]); ok && d < best.Dist {
				*best = Hit{Index: ti, Co: orig.Add(dir.Scale(d)), No: t.normal(ti), Dist: d}
			}
		}
		return
	}
	t.rayCast(node.left, orig, dir, inv, best)
	t.rayCast(node.right, orig, dir, inv, best)
}

func (t *BVH) normal(ti int) mathutil.Vec3 {
	tri := t.tris[ti]
	a, b, c := t.verts[tri[0]], t.verts[tri[1]], t.verts[tri[2]]
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}

// rayTriangle is the Möller–Trumbore intersection, two-sided.
func rayTriangle(orig, dir, a, b, c mathutil.Vec3) (float64, bool) {
	const eps = 1e-12
	e1, e2 := b.Sub(a), c.Sub(a)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < eps {
		return 0, false
	}
	inv := 1 / det
	s := orig.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	d := e2.Dot(q) * inv
	return d, d >= 0
}

// closestOnTriangle returns the point of triangle abc closest to p.
func closestOnTriangle(p, a, b, c mathutil.Vec3) mathutil.Vec3 {
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Scale(d1 / (d1 - d3)))
	}
	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Scale(d2 / (d2 - d6)))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return b.Add(c.Sub(b).Scale((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}
	den := 1 / (va + vb + vc)
	v, w := vb*den, vc*den
	return a.Add(ab.Scale(v)).Add(ac.Scale(w))
}
