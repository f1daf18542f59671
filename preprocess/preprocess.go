// Package preprocess normalizes uploaded medical images into the input each
// inference backend expects. Every transform is a fixed, deterministic
// function of the raw bytes so a given upload always produces the same
// tensor.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/bmp"
)

// ErrUnsupportedFormat is returned for uploads that are not JPEG or BMP.
var ErrUnsupportedFormat = errors.New("unsupported image format: only .jpg and .bmp are accepted")

// ErrDecode is returned when an accepted format fails to decode.
var ErrDecode = errors.New("failed to decode image")

// AcceptedFilename reports whether the upload filename carries an accepted
// image extension.
func AcceptedFilename(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".bmp":
		return true
	}
	return false
}

// Decode sniffs the payload, decodes JPEG or BMP data and applies the EXIF
// orientation when present. Anything else fails with ErrUnsupportedFormat.
func Decode(data []byte) (image.Image, error) {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return applyOrientation(img, readOrientation(data)), nil
	case len(data) >= 2 && data[0] == 'B' && data[1] == 'M':
		img, err := bmp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return img, nil
	}
	return nil, ErrUnsupportedFormat
}

// readOrientation extracts the EXIF orientation tag, defaulting to 1
// (upright) when the payload has no usable EXIF block.
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil || orientation < 1 || orientation > 8 {
		return 1
	}
	return orientation
}

// applyOrientation bakes the EXIF orientation into the pixel data so the
// rest of the pipeline can treat every image as upright.
func applyOrientation(img image.Image, orientation int) image.Image {
	if orientation <= 1 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.NRGBA
	if orientation >= 5 {
		dst = image.NewNRGBA(image.Rect(0, 0, h, w))
	} else {
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			switch orientation {
			case 2: // mirrored horizontally
				dst.Set(w-1-x, y, c)
			case 3: // rotated 180
				dst.Set(w-1-x, h-1-y, c)
			case 4: // mirrored vertically
				dst.Set(x, h-1-y, c)
			case 5: // mirrored then rotated 270 CW
				dst.Set(y, x, c)
			case 6: // rotated 90 CW
				dst.Set(h-1-y, x, c)
			case 7: // mirrored then rotated 90 CW
				dst.Set(h-1-y, w-1-x, c)
			case 8: // rotated 270 CW
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst
}

// toRGBA copies an arbitrary decoded image into RGBA memory.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
