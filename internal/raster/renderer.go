package raster

import (
	"image"
	"image/color"
	"math"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/rig"
	"rig-solver/internal/scene"
	"rig-solver/internal/viewmatrix"
)

// Axis colors of the gizmos, X Y Z.
var axisColors = [3]color.NRGBA{
	{R: 225, G: 70, B: 70, A: 255},
	{R: 110, G: 200, B: 80, A: 255},
	{R: 70, G: 120, B: 230, A: 255},
}

var (
	wireColor = color.NRGBA{R: 165, G: 165, B: 175, A: 255}
	boneColor = color.NRGBA{R: 230, G: 160, B: 60, A: 255}
	pathColor = color.NRGBA{R: 200, G: 110, B: 200, A: 255}
)

// Options control a preview render.
type Options struct {
	Size        int // output edge in pixels, before supersampling
	Supersample int
	Yaw, Pitch  float64
	Perspective bool

	// Plate, when set, is stretched behind the geometry.
	Plate *image.NRGBA
	Light *LightConfig
}

// Marker is the raster position of an object origin in the returned image.
type Marker struct {
	Name string
	X, Y float64
}

// canvas accumulates projected vertices so triangles can index them.
type canvas struct {
	view       *viewmatrix.View
	px, py, pz []float64
}

func (c *canvas) project(p mathutil.Vec3) int {
	x, y, z := c.view.Point(p)
	return c.add(x, y, z)
}

func (c *canvas) add(x, y, z float64) int {
	c.px = append(c.px, x)
	c.py = append(c.py, y)
	c.pz = append(c.pz, z)
	return len(c.px) - 1
}

// strip returns the raster-space unit perpendicular of the segment a-b.
func (c *canvas) strip(a, b int) (float64, float64, bool) {
	dx := c.px[b] - c.px[a]
	dy := c.py[b] - c.py[a]
	l := math.Hypot(dx, dy)
	if l < 1e-6 {
		return 0, 0, false
	}
	return -dy / l, dx / l, true
}

// line draws a segment as a quad of the given pixel width.
func (c *canvas) line(fb *FrameBuffer, lc *LightConfig, a, b int, width, bias float64, col color.NRGBA) {
	nx, ny, ok := c.strip(a, b)
	if !ok {
		return
	}
	h := width / 2
	i0 := c.add(c.px[a]+nx*h, c.py[a]+ny*h, c.pz[a]+bias)
	i1 := c.add(c.px[a]-nx*h, c.py[a]-ny*h, c.pz[a]+bias)
	i2 := c.add(c.px[b]-nx*h, c.py[b]-ny*h, c.pz[b]+bias)
	i3 := c.add(c.px[b]+nx*h, c.py[b]+ny*h, c.pz[b]+bias)
	RasterizeTriangle(fb, c.px, c.py, c.pz, [3]int{i0, i1, i2}, col, lc)
	RasterizeTriangle(fb, c.px, c.py, c.pz, [3]int{i0, i2, i3}, col, lc)
}

// prism draws a tapering triangle from a wide base at a to a point at b.
func (c *canvas) prism(fb *FrameBuffer, lc *LightConfig, a, b int, width, bias float64, col color.NRGBA) {
	nx, ny, ok := c.strip(a, b)
	if !ok {
		return
	}
	h := width / 2
	i0 := c.add(c.px[a]+nx*h, c.py[a]+ny*h, c.pz[a]+bias)
	i1 := c.add(c.px[a]-nx*h, c.py[a]-ny*h, c.pz[a]+bias)
	i2 := c.add(c.px[b], c.py[b], c.pz[b]+bias)
	RasterizeTriangle(fb, c.px, c.py, c.pz, [3]int{i0, i1, i2}, col, lc)
}

type gizmo struct {
	name  string
	mat   mathutil.Mat4
	small bool
}

type segment struct {
	a, b mathutil.Vec3
	col  color.NRGBA
}

// collect gathers the world-space geometry of a solved frame.
func collect(f *rig.Frame) ([]gizmo, []segment, []mathutil.Vec3) {
	var (
		gizmos []gizmo
		segs   []segment
		pts    []mathutil.Vec3
	)
	if f == nil || f.Scene == nil {
		return nil, nil, nil
	}
	for _, ob := range f.Scene.Objects {
		gizmos = append(gizmos, gizmo{name: ob.Name, mat: ob.ObMat})
		pts = append(pts, ob.ObMat.Translation())

		if ob.Mesh != nil {
			world := make([]mathutil.Vec3, len(ob.Mesh.Verts))
			for i, v := range ob.Mesh.Verts {
				world[i] = ob.ObMat.MulPoint(v)
			}
			pts = append(pts, world...)
			for _, e := range meshEdges(ob.Mesh) {
				segs = append(segs, segment{world[e[0]], world[e[1]], wireColor})
			}
		}
		if ob.Curve.HasPath() {
			n := len(ob.Curve.Points)
			for i := 0; i < n; i++ {
				pts = append(pts, ob.ObMat.MulPoint(ob.Curve.Points[i].Co))
				j := i + 1
				if j == n {
					if !ob.Curve.Cyclic {
						break
					}
					j = 0
				}
				segs = append(segs, segment{
					ob.ObMat.MulPoint(ob.Curve.Points[i].Co),
					ob.ObMat.MulPoint(ob.Curve.Points[j].Co),
					pathColor,
				})
			}
		}
		if ob.Pose != nil {
			for _, pc := range ob.Pose.Channels {
				head := ob.ObMat.MulPoint(pc.PoseHead)
				tail := ob.ObMat.MulPoint(pc.PoseTail)
				pts = append(pts, head, tail)
				segs = append(segs, segment{head, tail, boneColor})
				m, ok := f.Matrices[rig.BoneKey(ob.Name, pc.Name)]
				if !ok {
					m = mathutil.Mat4Mul(ob.ObMat, pc.PoseMat)
				}
				gizmos = append(gizmos, gizmo{name: rig.BoneKey(ob.Name, pc.Name), mat: m, small: true})
			}
		}
	}
	return gizmos, segs, pts
}

// meshEdges returns each triangle edge once.
func meshEdges(me *scene.Mesh) [][2]int {
	seen := make(map[[2]int]bool, len(me.Tris)*3/2)
	var edges [][2]int
	for _, tri := range me.Tris {
		for k := 0; k < 3; k++ {
			a, b := tri[k], tri[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			if a < 0 || b >= len(me.Verts) {
				continue
			}
			e := [2]int{a, b}
			if !seen[e] {
				seen[e] = true
				edges = append(edges, e)
			}
		}
	}
	return edges
}

// RenderFrame draws a solved frame: mesh wireframes, bone and curve lines,
// and an axis gizmo at every object and bone. The image is Size×Supersample
// pixels square; markers hold object origins in its coordinates.
func RenderFrame(f *rig.Frame, opts Options) (*image.NRGBA, []Marker) {
	ss := max(opts.Supersample, 1)
	renderSize := max(opts.Size, 1) * ss

	lc := opts.Light
	if lc == nil {
		l := DefaultLightConfig()
		lc = &l
	}

	fb := NewFrameBuffer(renderSize, renderSize)
	fb.FillPlate(opts.Plate)

	gizmos, segs, pts := collect(f)
	if len(gizmos) == 0 {
		return fb.Image(), nil
	}

	margin := min(24*ss, renderSize/8)
	view := viewmatrix.Fit(viewmatrix.Orbit(opts.Yaw, opts.Pitch), pts, renderSize, margin)
	view.Perspective = opts.Perspective
	cv := &canvas{view: view}

	wireW := 1.25 * float64(ss)
	for _, s := range segs {
		a, b := cv.project(s.a), cv.project(s.b)
		w := wireW
		if s.col == boneColor {
			w *= 2
		}
		cv.line(fb, lc, a, b, w, 0, s.col)
	}

	span := view.Span()
	bias := span * 0.01
	var markers []Marker
	for _, g := range gizmos {
		length, width := span*0.12, 4*float64(ss)
		if g.small {
			length, width = span*0.06, 2.5*float64(ss)
		}
		origin := g.mat.Translation()
		o := cv.project(origin)
		for axis := 0; axis < 3; axis++ {
			dir, l := g.mat.Axis(axis).NormalizeLen()
			if l < 1e-9 {
				continue
			}
			tip := cv.project(origin.Add(dir.Scale(length)))
			cv.prism(fb, lc, o, tip, width, bias, axisColors[axis])
		}
		if !g.small {
			markers = append(markers, Marker{Name: g.name, X: cv.px[o], Y: cv.py[o]})
		}
	}

	return fb.Image(), markers
}
