package viewmatrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rig-solver/internal/mathutil"
)

func vecNear(t *testing.T, want, got mathutil.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "component %d of %v", i, got)
	}
}

func TestOrbit_Front(t *testing.T) {
	R := Orbit(0, 0)
	vecNear(t, mathutil.Vec3{1, 0, 0}, R.MulVec3(mathutil.Vec3{1, 0, 0}))
	vecNear(t, mathutil.Vec3{0, 1, 0}, R.MulVec3(mathutil.Vec3{0, 0, 1}))
	// the camera sits on -Y
	vecNear(t, mathutil.Vec3{0, 0, 1}, R.MulVec3(mathutil.Vec3{0, -1, 0}))
}

func TestOrbit_Side(t *testing.T) {
	R := Orbit(90, 0)
	vecNear(t, mathutil.Vec3{1, 0, 0}, R.MulVec3(mathutil.Vec3{0, 1, 0}))
	vecNear(t, mathutil.Vec3{0, 0, 1}, R.MulVec3(mathutil.Vec3{1, 0, 0}))
}

func TestOrbit_PitchIsClamped(t *testing.T) {
	R := Orbit(0, 120)
	assert.True(t, R.IsOrthonormal())
	up := R.MulVec3(mathutil.Vec3{0, 0, 1})
	assert.Greater(t, up[2], 0.99)
}

func TestFit_CentresPoints(t *testing.T) {
	pts := []mathutil.Vec3{{-1, 0, 0}, {1, 0, 0}}
	v := Fit(Orbit(0, 0), pts, 100, 10)
	assert.InDelta(t, 40.0, v.Scale, 1e-9)
	assert.InDelta(t, 2.0, v.Span(), 1e-9)

	px, py, pz := ProjectVertices(pts, v)
	require.Len(t, px, 2)
	assert.InDelta(t, 10.0, px[0], 1e-9)
	assert.InDelta(t, 90.0, px[1], 1e-9)
	assert.InDelta(t, 50.0, py[1], 1e-9)
	assert.InDelta(t, 0.0, pz[1], 1e-9)

	_, y, _ := v.Point(mathutil.Vec3{0, 0, 1})
	assert.InDelta(t, 10.0, y, 1e-9, "world up is raster up")
}

func TestFit_SinglePoint(t *testing.T) {
	v := Fit(Orbit(30, 20), []mathutil.Vec3{{3, 4, 5}}, 64, 4)
	x, y, _ := v.Point(mathutil.Vec3{3, 4, 5})
	assert.InDelta(t, 32.0, x, 1e-9)
	assert.InDelta(t, 32.0, y, 1e-9)
}

func TestPoint_PerspectiveShrinksFarPoints(t *testing.T) {
	pts := []mathutil.Vec3{{-1, -1, 0}, {1, 1, 0}}
	v := Fit(Orbit(0, 0), pts, 100, 0)
	v.Perspective = true

	near, _, _ := v.Point(mathutil.Vec3{1, -1, 0})
	far, _, _ := v.Point(mathutil.Vec3{1, 1, 0})
	assert.Greater(t, near, far)
	assert.Greater(t, far, 50.0)
}
