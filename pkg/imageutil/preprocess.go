package imageutil

import (
	"image"

	"github.com/disintegration/imaging"
)

// Normalization holds per-channel RGB mean and standard deviation.
type Normalization struct {
	Mean [3]float32
	Std  [3]float32
}

// CLIPNormalization is the normalization used by OpenAI CLIP vision towers.
var CLIPNormalization = Normalization{
	Mean: [3]float32{0.48145466, 0.4578275, 0.40821073},
	Std:  [3]float32{0.26862954, 0.26130258, 0.27577711},
}

// Preprocess resizes and center-crops the image to size x size and returns
// a normalized float32 tensor in CHW layout.
func Preprocess(img image.Image, size int, norm Normalization) []float32 {
	cropped := imaging.Fill(img, size, size, imaging.Center, imaging.CatmullRom)

	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			// imaging returns *image.NRGBA
			i := cropped.PixOffset(x, y)
			p := cropped.Pix[i : i+3 : i+3]
			idx := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(p[c]) / 255
				out[c*plane+idx] = (v - norm.Mean[c]) / norm.Std[c]
			}
		}
	}
	return out
}
