package raster

import (
	"image/color"
	"math"

	"rig-solver/internal/mathutil"
)

// LightConfig holds the lighting rig used to flat-shade preview geometry.
// Directions are in view space: x right, y up, z toward the viewer.
type LightConfig struct {
	LightDir mathutil.Vec3
	RimDir   mathutil.Vec3
	ViewDir  mathutil.Vec3
	HalfMain mathutil.Vec3 // Blinn-Phong half vector of LightDir
	Ambient  float64
	Hemi     float64
	Direct   float64
	Rim      float64
	SpecInt  float64
	SpecPow  float64
	Exposure float64
	InvGamma float64
}

// DefaultLightConfig returns a key light from the upper right, a cool rim
// from behind and a soft hemisphere fill.
func DefaultLightConfig() LightConfig {
	lightDir := mathutil.Vec3{0.45, 0.65, 0.6}.Normalize()
	rimDir := mathutil.Vec3{-0.5, 0.4, -0.75}.Normalize()
	viewDir := mathutil.Vec3{0, 0, 1}

	return LightConfig{
		LightDir: lightDir,
		RimDir:   rimDir,
		ViewDir:  viewDir,
		HalfMain: lightDir.Add(viewDir).Normalize(),
		Ambient:  0.35,
		Hemi:     0.30,
		Direct:   0.80,
		Rim:      0.25,
		SpecInt:  0.30,
		SpecPow:  16,
		Exposure: 1.0,
		InvGamma: 1 / 2.2,
	}
}

// ComputeShade returns the light scalar for a unit face normal. Faces are
// lit from both sides.
func (lc *LightConfig) ComputeShade(normal mathutil.Vec3) float64 {
	ndlMain := math.Abs(normal.Dot(lc.LightDir))
	ndlRim := math.Abs(normal.Dot(lc.RimDir))

	hemi := (normal[1]*0.5 + 0.5) * lc.Hemi

	ndh := math.Abs(normal.Dot(lc.HalfMain))
	spec := math.Pow(ndh, lc.SpecPow) * lc.SpecInt

	return lc.Ambient + hemi + ndlMain*lc.Direct + ndlRim*lc.Rim + spec
}

// Apply lights an sRGB base color: decode, scale by shade, tone map, encode.
func (lc *LightConfig) Apply(c color.NRGBA, shade float64) color.NRGBA {
	k := shade * lc.Exposure
	return color.NRGBA{
		R: clamp255(math.Pow(ACESTonemap(srgbToLinear[c.R]*k), lc.InvGamma) * 255),
		G: clamp255(math.Pow(ACESTonemap(srgbToLinear[c.G]*k), lc.InvGamma) * 255),
		B: clamp255(math.Pow(ACESTonemap(srgbToLinear[c.B]*k), lc.InvGamma) * 255),
		A: c.A,
	}
}

var srgbToLinear [256]float64

func init() {
	for i := range srgbToLinear {
		srgbToLinear[i] = math.Pow(float64(i)/255, 2.2)
	}
}

// ACESTonemap applies the ACES filmic curve to a linear value.
func ACESTonemap(x float64) float64 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
