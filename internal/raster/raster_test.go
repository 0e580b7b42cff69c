package raster

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/rig"
	"rig-solver/internal/scene"
	"rig-solver/internal/skeleton"
)

func solved(t *testing.T, obs ...*scene.Object) *rig.Frame {
	t.Helper()
	sc := scene.New("preview")
	for _, ob := range obs {
		require.NoError(t, sc.AddObject(ob))
	}
	f, err := rig.New(sc).Evaluate(context.Background(), 1)
	require.NoError(t, err)
	return f
}

func pixel(img *image.NRGBA, x, y int) color.NRGBA {
	i := img.PixOffset(x, y)
	return color.NRGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: img.Pix[i+3]}
}

func solidPlate(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestRasterizeTriangle_DepthTest(t *testing.T) {
	fb := NewFrameBuffer(8, 8)
	lc := DefaultLightConfig()
	px := []float64{0, 8, 0}
	py := []float64{0, 0, 8}

	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	RasterizeTriangle(fb, px, py, []float64{1, 1, 1}, [3]int{0, 1, 2}, red, &lc)
	RasterizeTriangle(fb, px, py, []float64{0, 0, 0}, [3]int{0, 1, 2}, blue, &lc)

	c := pixel(fb.Image(), 1, 1)
	assert.Greater(t, c.R, c.B, "the nearer triangle wins")
	assert.Equal(t, uint8(255), c.A)
	assert.Zero(t, pixel(fb.Image(), 7, 7).A, "outside the triangle")
}

func TestRasterizeTriangle_IgnoresBadInput(t *testing.T) {
	fb := NewFrameBuffer(4, 4)
	lc := DefaultLightConfig()
	col := color.NRGBA{R: 255, A: 255}
	RasterizeTriangle(fb, []float64{0, 1}, []float64{0, 1}, []float64{0, 0}, [3]int{0, 1, 2}, col, &lc)
	RasterizeTriangle(fb, []float64{0, 1, 2}, []float64{0, 1, 2}, []float64{0, 0, 0}, [3]int{0, 1, 2}, col, &lc)
	for _, v := range fb.Color {
		require.Zero(t, v)
	}
}

func TestSampleTexture_Bilinear(t *testing.T) {
	tex := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	copy(tex.Pix, []uint8{0, 0, 0, 255, 200, 100, 50, 255})

	r, g, b, a := SampleTexture(tex, 0.5, 0.5)
	assert.Equal(t, []uint8{100, 50, 25, 255}, []uint8{r, g, b, a})

	r, _, _, _ = SampleTexture(tex, 2, 0.5)
	assert.Equal(t, uint8(200), r, "clamped to the edge")
}

func TestLightConfig_ApplyKeepsAlphaAndOrder(t *testing.T) {
	lc := DefaultLightConfig()
	shade := lc.ComputeShade(mathutil.Vec3{0, 0, 1})
	assert.Greater(t, shade, lc.Ambient)

	c := lc.Apply(color.NRGBA{R: 225, G: 70, B: 70, A: 200}, shade)
	assert.Equal(t, uint8(200), c.A)
	assert.Greater(t, c.R, c.G)
	assert.Equal(t, c.G, c.B)
}

func TestRenderFrame_Gizmo(t *testing.T) {
	f := solved(t, scene.NewObject("empty", scene.ObjectEmpty))

	img, markers := RenderFrame(f, Options{Size: 32, Supersample: 2})
	require.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())
	require.Len(t, markers, 1)
	assert.Equal(t, "empty", markers[0].Name)
	assert.InDelta(t, 32.0, markers[0].X, 1e-9)
	assert.InDelta(t, 32.0, markers[0].Y, 1e-9)

	// front view: the X axis points right
	c := pixel(img, 35, 32)
	assert.Equal(t, uint8(255), c.A)
	assert.Greater(t, c.R, c.G)
	assert.Greater(t, c.R, c.B)
	assert.Zero(t, pixel(img, 2, 2).A, "background stays transparent")
}

func TestRenderFrame_MeshAndBones(t *testing.T) {
	cube := scene.NewObject("cube", scene.ObjectMesh)
	cube.Mesh = scene.Cube("cube", 1)

	arm := scene.NewObject("arm", scene.ObjectArmature)
	arm.Armature = scene.NewArmature("arm", []*scene.Bone{
		{Name: "root", ArmHead: mathutil.Vec3{}, ArmTail: mathutil.Vec3{0, 0, 1}},
	})
	require.NoError(t, skeleton.BuildRest(arm.Armature))
	arm.Pose = scene.NewPose(arm.Armature)

	f := solved(t, cube, arm)
	img, markers := RenderFrame(f, Options{Size: 48, Supersample: 1, Yaw: 30, Pitch: 20, Perspective: true})
	assert.Len(t, markers, 2, "bones carry no marker")

	var drawn int
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			drawn++
		}
	}
	assert.Greater(t, drawn, 50)
}

func TestRenderFrame_Plate(t *testing.T) {
	bg := color.NRGBA{R: 10, G: 20, B: 30, A: 255}
	img, markers := RenderFrame(nil, Options{Size: 16, Supersample: 1, Plate: solidPlate(bg)})
	assert.Empty(t, markers)
	assert.Equal(t, bg, pixel(img, 0, 0))
	assert.Equal(t, bg, pixel(img, 15, 15))
}

func TestMeshEdges_Cube(t *testing.T) {
	assert.Len(t, meshEdges(scene.Cube("c", 1)), 18)
}
