package postprocess

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	labelInk    = image.NewUniform(color.NRGBA{R: 240, G: 240, B: 240, A: 255})
	labelShadow = image.NewUniform(color.NRGBA{R: 16, G: 16, B: 20, A: 255})
)

// Label draws text with its baseline-left corner at (x, y), over a one
// pixel drop shadow. Text running past the image edge is clipped.
func Label(img *image.NRGBA, x, y int, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Face: face}

	d.Src = labelShadow
	d.Dot = fixed.P(x+1, y+1)
	d.DrawString(text)

	d.Src = labelInk
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

// LabelWidth returns the advance of text in pixels.
func LabelWidth(text string) int {
	return font.MeasureString(basicfont.Face7x13, text).Ceil()
}

// Caption writes text in the top-left corner.
func Caption(img *image.NRGBA, text string) {
	Label(img, 4, 4+basicfont.Face7x13.Ascent, text)
}
