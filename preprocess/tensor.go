package preprocess

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Input sizes for the two backends.
const (
	ClassifierSize = 180
	DetectorSize   = 512
)

// ForClassifier runs the classifier preprocessing chain: Gaussian-blurred
// grayscale, CLAHE, resize to 180x180, then replication of the single
// channel into a 1x180x180x3 float32 NHWC tensor. Values stay in the 0-255
// range the model was trained on.
func ForClassifier(img image.Image) []float32 {
	enhanced := EnhanceGray(img)
	resized := resizeGray(enhanced, ClassifierSize, ClassifierSize)

	tensor := make([]float32, 1*ClassifierSize*ClassifierSize*3)
	for y := 0; y < ClassifierSize; y++ {
		for x := 0; x < ClassifierSize; x++ {
			v := float32(resized.Pix[y*resized.Stride+x])
			base := (y*ClassifierSize + x) * 3
			tensor[base] = v
			tensor[base+1] = v
			tensor[base+2] = v
		}
	}
	return tensor
}

// EnhanceGray is the grayscale contrast chain shared by the classifier
// pipeline and exposed for inspection in tests.
func EnhanceGray(img image.Image) *image.Gray {
	return CLAHE(GaussianBlur(Grayscale(img)))
}

// ForDetector runs the detector preprocessing chain: CLAHE on the luminance
// channel of a Y'CbCr decomposition, recomposition to color, and a resize to
// 512x512.
func ForDetector(img image.Image) image.Image {
	src := toRGBA(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	// Split luminance from chroma.
	yPlane := image.NewGray(image.Rect(0, 0, w, h))
	cbPlane := make([]uint8, w*h)
	crPlane := make([]uint8, w*h)
	for yy := 0; yy < h; yy++ {
		for xx := 0; xx < w; xx++ {
			i := src.PixOffset(xx, yy)
			yv, cb, cr := color.RGBToYCbCr(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
			yPlane.Pix[yy*yPlane.Stride+xx] = yv
			cbPlane[yy*w+xx] = cb
			crPlane[yy*w+xx] = cr
		}
	}

	enhanced := CLAHE(yPlane)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for yy := 0; yy < h; yy++ {
		for xx := 0; xx < w; xx++ {
			r, g, bl := color.YCbCrToRGB(enhanced.Pix[yy*enhanced.Stride+xx], cbPlane[yy*w+xx], crPlane[yy*w+xx])
			i := out.PixOffset(xx, yy)
			out.Pix[i] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = bl
			out.Pix[i+3] = 0xFF
		}
	}

	resized := image.NewRGBA(image.Rect(0, 0, DetectorSize, DetectorSize))
	xdraw.BiLinear.Scale(resized, resized.Bounds(), out, out.Bounds(), xdraw.Src, nil)
	return resized
}

func resizeGray(src *image.Gray, w, h int) *image.Gray {
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
