package scene

import (
	"sync"

	"rig-solver/internal/mathutil"
)

// Mesh is an evaluated triangle mesh with per-vertex group weights.
type Mesh struct {
	Name   string
	Verts  []mathutil.Vec3
	Tris   [][3]int
	Smooth bool // interpolate vertex normals across faces

	// Groups holds one weight per vertex for each named vertex group.
	Groups map[string][]float64

	normalsOnce sync.Once
	normals     []mathutil.Vec3

	bvhOnce sync.Once
	bvh     *BVH
}

// VertexNormals returns area-weighted vertex normals, computed once.
func (m *Mesh) VertexNormals() []mathutil.Vec3 {
	m.normalsOnce.Do(func() {
		m.normals = make([]mathutil.Vec3, len(m.Verts))
		for _, t := range m.Tris {
			a, b, c := m.Verts[t[0]], m.Verts[t[1]], m.Verts[t[2]]
			n := b.Sub(a).Cross(c.Sub(a))
			for _, vi := range t {
				m.normals[vi] = m.normals[vi].Add(n)
			}
		}
		for i := range m.normals {
			m.normals[i] = m.normals[i].Normalize()
		}
	})
	return m.normals
}

// TriNormal returns the unit normal of triangle i.
func (m *Mesh) TriNormal(i int) mathutil.Vec3 {
	t := m.Tris[i]
	a, b, c := m.Verts[t[0]], m.Verts[t[1]], m.Verts[t[2]]
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}

// SmoothNormal returns the shading normal at co on triangle i: the
// interpolated vertex normal for smooth meshes, else the face normal.
func (m *Mesh) SmoothNormal(i int, co mathutil.Vec3) mathutil.Vec3 {
	if !m.Smooth {
		return m.TriNormal(i)
	}
	t := m.Tris[i]
	w := barycentric(m.Verts[t[0]], m.Verts[t[1]], m.Verts[t[2]], co)
	ns := m.VertexNormals()
	n := ns[t[0]].Scale(w[0]).Add(ns[t[1]].Scale(w[1])).Add(ns[t[2]].Scale(w[2]))
	if n = n.Normalize(); n.IsZero() {
		return m.TriNormal(i)
	}
	return n
}

// BVH returns the triangle tree, built on first use.
func (m *Mesh) BVH() *BVH {
	m.bvhOnce.Do(func() {
		m.bvh = NewBVH(m.Verts, m.Tris)
	})
	return m.bvh
}

// NearestVertex returns the index of the vertex closest to p, or -1 for an
// empty mesh.
func (m *Mesh) NearestVertex(p mathutil.Vec3) (int, float64) {
	best, bestSq := -1, 0.0
	for i, v := range m.Verts {
		if d := v.Sub(p).LenSq(); best < 0 || d < bestSq {
			best, bestSq = i, d
		}
	}
	return best, bestSq
}

func barycentric(a, b, c, p mathutil.Vec3) mathutil.Vec3 {
	v0, v1, v2 := b.Sub(a), c.Sub(a), p.Sub(a)
	d00, d01, d11 := v0.Dot(v0), v0.Dot(v1), v1.Dot(v1)
	d20, d21 := v2.Dot(v0), v2.Dot(v1)
	den := d00*d11 - d01*d01
	if den == 0 {
		return mathutil.Vec3{1, 0, 0}
	}
	v := (d11*d20 - d01*d21) / den
	w := (d00*d21 - d01*d20) / den
	return mathutil.Vec3{1 - v - w, v, w}
}

// Cube returns an axis-aligned cube with the given half size, centred on the origin.
func Cube(name string, half float64) *Mesh {
	m := &Mesh{Name: name}
	for i := 0; i < 8; i++ {
		v := mathutil.Vec3{-half, -half, -half}
		if i&1 != 0 {
			v[0] = half
		}
		if i&2 != 0 {
			v[1] = half
		}
		if i&4 != 0 {
			v[2] = half
		}
		m.Verts = append(m.Verts, v)
	}
	quads := [6][4]int{
		{0, 2, 3, 1}, // -Z
		{4, 5, 7, 6}, // +Z
		{0, 1, 5, 4}, // -Y
		{2, 6, 7, 3}, // +Y
		{0, 4, 6, 2}, // -X
		{1, 3, 7, 5}, // +X
	}
	for _, q := range quads {
		m.Tris = append(m.Tris, [3]int{q[0], q[1], q[2]}, [3]int{q[0], q[2], q[3]})
	}
	return m
}

// Grid returns an n×n quad grid of the given size in the XY plane, facing +Z.
func Grid(name string, size float64, n int) *Mesh {
	if n < 1 {
		n = 1
	}
	m := &Mesh{Name: name}
	step := size / float64(n)
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			m.Verts = append(m.Verts, mathutil.Vec3{-size/2 + float64(x)*step, -size/2 + float64(y)*step, 0})
		}
	}
	row := n + 1
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*row + x
			m.Tris = append(m.Tris, [3]int{i, i + 1, i + row + 1}, [3]int{i, i + row + 1, i + row})
		}
	}
	return m
}
