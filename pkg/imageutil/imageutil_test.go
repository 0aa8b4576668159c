package imageutil_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/pkg/imageutil"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Validate", func() {
	It("accepts a PNG", func() {
		ct, err := imageutil.Validate(encodePNG(solid(4, 4, color.White)))
		Expect(err).NotTo(HaveOccurred())
		Expect(ct).To(Equal("image/png"))
	})

	It("accepts a JPEG", func() {
		ct, err := imageutil.Validate(encodeJPEG(solid(4, 4, color.White)))
		Expect(err).NotTo(HaveOccurred())
		Expect(ct).To(Equal("image/jpeg"))
	})

	It("rejects empty input", func() {
		_, err := imageutil.Validate(nil)
		Expect(err).To(MatchError(imageutil.ErrUnsupported))
	})

	It("rejects text", func() {
		_, err := imageutil.Validate([]byte("definitely not an image"))
		Expect(err).To(MatchError(imageutil.ErrUnsupported))
	})

	It("rejects a truncated PNG", func() {
		data := encodePNG(solid(16, 16, color.White))
		_, err := imageutil.Validate(data[:40])
		Expect(err).To(MatchError(imageutil.ErrUnsupported))
	})
})

var _ = Describe("Extension", func() {
	It("maps known types", func() {
		Expect(imageutil.Extension("image/jpeg")).To(Equal(".jpg"))
		Expect(imageutil.Extension("image/webp")).To(Equal(".webp"))
	})

	It("falls back for unknown types", func() {
		Expect(imageutil.Extension("text/plain")).To(Equal(".bin"))
	})
})

var _ = Describe("Sniff", func() {
	It("detects little-endian TIFF headers", func() {
		Expect(imageutil.Sniff([]byte("II*\x00rest"))).To(Equal("image/tiff"))
	})
})

var _ = Describe("Thumbnail", func() {
	It("fits the longest side within the requested size", func() {
		thumb, err := imageutil.Thumbnail(encodePNG(solid(600, 300, color.Black)), 256)
		Expect(err).NotTo(HaveOccurred())

		img, format, err := image.Decode(bytes.NewReader(thumb))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("jpeg"))
		Expect(img.Bounds().Dx()).To(Equal(256))
		Expect(img.Bounds().Dy()).To(Equal(128))
	})

	It("does not upscale small images", func() {
		thumb, err := imageutil.Thumbnail(encodePNG(solid(10, 20, color.Black)), 256)
		Expect(err).NotTo(HaveOccurred())

		img, _, err := image.Decode(bytes.NewReader(thumb))
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Bounds().Dx()).To(Equal(10))
	})
})

var _ = Describe("Preprocess", func() {
	It("produces a normalized CHW tensor", func() {
		out := imageutil.Preprocess(solid(50, 30, color.NRGBA{R: 255, A: 255}), 8, imageutil.Normalization{
			Mean: [3]float32{0.5, 0.5, 0.5},
			Std:  [3]float32{0.5, 0.5, 0.5},
		})
		Expect(out).To(HaveLen(3 * 8 * 8))
		// red plane is 1, green and blue are -1
		Expect(out[0]).To(BeNumerically("~", 1, 0.01))
		Expect(out[64]).To(BeNumerically("~", -1, 0.01))
		Expect(out[128]).To(BeNumerically("~", -1, 0.01))
	})
})

var _ = DescribeTable("IsImageFile",
	func(name string, want bool) {
		Expect(imageutil.IsImageFile(name)).To(Equal(want))
	},
	Entry("jpeg", "site/IMG_001.JPG", true),
	Entry("webp", "a.webp", true),
	Entry("tif", "scan.tif", true),
	Entry("text", "notes.txt", false),
	Entry("no extension", "README", false),
	Entry("partial download", "a.jpg.part", false),
)
