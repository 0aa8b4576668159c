package testutils

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ImageBytes returns a w x h image filled with c, encoded in format.
func ImageBytes(w, h int, c color.Color, format imaging.Format) []byte {
	img := imaging.New(w, h, c)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PNG returns a small solid PNG. Different colors give different bytes.
func PNG(c color.Color) []byte {
	return ImageBytes(8, 8, c, imaging.PNG)
}

// Gradient returns a PNG with a horizontal gradient, for images whose
// content differs from a solid fill.
func Gradient(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / max(w-1, 1)), G: 64, B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
