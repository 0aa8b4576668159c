// Package imageutil validates uploaded image bytes and prepares them for
// thumbnails and model input.
package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	// registers the webp decoder with image.Decode
	_ "golang.org/x/image/webp"
)

// ErrUnsupported is returned for bytes that are not a decodable image of an
// accepted type.
var ErrUnsupported = errors.New("unsupported image")

// DefaultThumbnailSize is the longest side of a thumbnail in pixels.
const DefaultThumbnailSize = 256

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
	"image/webp": ".webp",
}

// fileExtensions are the file name suffixes directory ingest picks up.
var fileExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// IsImageFile reports whether name has an image file extension.
func IsImageFile(name string) bool {
	return fileExtensions[strings.ToLower(filepath.Ext(name))]
}

// Sniff returns the MIME type detected from the leading bytes.
func Sniff(data []byte) string {
	ct := http.DetectContentType(data)
	// DetectContentType has no TIFF signature.
	if ct == "application/octet-stream" && len(data) >= 4 {
		if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
			return "image/tiff"
		}
	}
	return ct
}

// Extension returns the file extension used for blobs of the content type.
func Extension(contentType string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	return ".bin"
}

// Supported reports whether the content type is accepted for upload.
func Supported(contentType string) bool {
	_, ok := extensions[contentType]
	return ok
}

// Decode sniffs and fully decodes the bytes, applying EXIF orientation.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty file", ErrUnsupported)
	}

	ct := Sniff(data)
	if !Supported(ct) {
		return nil, "", fmt.Errorf("%w: content type %s", ErrUnsupported, ct)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("%w: zero-sized image", ErrUnsupported)
	}

	return img, ct, nil
}

// Validate decodes the bytes and returns the sniffed content type.
func Validate(data []byte) (string, error) {
	_, ct, err := Decode(data)
	return ct, err
}

// Thumbnail scales the image to fit within size x size and encodes it as JPEG.
func Thumbnail(data []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultThumbnailSize
	}

	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
