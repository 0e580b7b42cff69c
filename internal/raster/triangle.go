package raster

import (
	"image/color"
	"math"

	"rig-solver/internal/mathutil"
)

// RasterizeTriangle fills one flat-shaded, depth-tested triangle. vi indexes
// px, py and pz; out-of-range indices and degenerate triangles draw nothing.
// The pixel loop does not allocate.
func RasterizeTriangle(
	fb *FrameBuffer,
	px, py, pz []float64,
	vi [3]int,
	base color.NRGBA,
	lc *LightConfig,
) {
	nv := len(px)
	for _, i := range vi {
		if i < 0 || i >= nv {
			return
		}
	}

	x0, y0, z0 := px[vi[0]], py[vi[0]], pz[vi[0]]
	x1, y1, z1 := px[vi[1]], py[vi[1]], pz[vi[1]]
	x2, y2, z2 := px[vi[2]], py[vi[2]], pz[vi[2]]

	// raster y grows downward, so flip it for a view-space normal
	e1 := mathutil.Vec3{x1 - x0, y0 - y1, z1 - z0}
	e2 := mathutil.Vec3{x2 - x0, y0 - y2, z2 - z0}
	n, nl := e1.Cross(e2).NormalizeLen()
	if nl < 1e-8 {
		return
	}
	col := lc.Apply(base, lc.ComputeShade(n))

	minX := max(int(math.Floor(min(x0, x1, x2))), 0)
	maxX := min(int(math.Ceil(max(x0, x1, x2))), fb.Width-1)
	minY := max(int(math.Floor(min(y0, y1, y2))), 0)
	maxY := min(int(math.Ceil(max(y0, y1, y2))), fb.Height-1)
	if minX > maxX || minY > maxY {
		return
	}

	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det

	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) + 0.5 - y2
		rowOff := sy * fb.Width
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) + 0.5 - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := w0*z0 + w1*z1 + w2*z2
			zIdx := rowOff + sx
			if z <= fb.ZBuf[zIdx] {
				continue
			}
			fb.ZBuf[zIdx] = z

			i := zIdx * 4
			fb.Color[i] = col.R
			fb.Color[i+1] = col.G
			fb.Color[i+2] = col.B
			fb.Color[i+3] = col.A
		}
	}
}
