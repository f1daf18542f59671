package preprocess

import (
	"image"
)

// CLAHE parameters shared by both backends. These mirror the values the
// models were trained with and must not drift per deployment.
const (
	claheClipLimit = 2.0
	claheTiles     = 8
)

// Grayscale converts an image to 8-bit grayscale using the standard
// ITU-R BT.601 luma weights. The source is treated as RGB; the historical
// BGR-order conversion drafts carried was a defect and is not reproduced.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// 16-bit channels; BT.601 integer luma.
			luma := (299*(r>>8) + 587*(g>>8) + 114*(bl>>8) + 500) / 1000
			dst.Pix[y*dst.Stride+x] = uint8(luma)
		}
	}
	return dst
}

// GaussianBlur applies a separable 5-tap binomial blur ([1 4 6 4 1]/16)
// with edge replication, matching the 5x5 smoothing pass the classifier
// was trained against.
func GaussianBlur(src *image.Gray) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	kernel := [5]int{1, 4, 6, 4, 1}

	tmp := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for k := -2; k <= 2; k++ {
				xx := clampIndex(x+k, w)
				sum += kernel[k+2] * int(src.Pix[y*src.Stride+xx])
			}
			tmp.Pix[y*tmp.Stride+x] = uint8((sum + 8) / 16)
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for k := -2; k <= 2; k++ {
				yy := clampIndex(y+k, h)
				sum += kernel[k+2] * int(tmp.Pix[yy*tmp.Stride+x])
			}
			dst.Pix[y*dst.Stride+x] = uint8((sum + 8) / 16)
		}
	}
	return dst
}

// CLAHE performs contrast-limited adaptive histogram equalization over an
// 8x8 tile grid with bilinear interpolation between per-tile mappings.
func CLAHE(src *image.Gray) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w == 0 || h == 0 {
		return image.NewGray(image.Rect(0, 0, w, h))
	}

	tilesX, tilesY := claheTiles, claheTiles
	if tilesX > w {
		tilesX = w
	}
	if tilesY > h {
		tilesY = h
	}
	// Floor-sized tiles with the remainder folded into the last row and
	// column, so every tile holds at least one pixel.
	tileW := w / tilesX
	tileH := h / tilesY

	// Per-tile clipped-histogram lookup tables.
	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := x0+tileW, y0+tileH
			if tx == tilesX-1 {
				x1 = w
			}
			if ty == tilesY-1 {
				y1 = h
			}

			var hist [256]int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[src.Pix[y*src.Stride+x]]++
				}
			}
			pixels := (x1 - x0) * (y1 - y0)
			luts[ty*tilesX+tx] = buildTileLUT(hist, pixels)
		}
	}

	// Bilinear interpolation between the four surrounding tile mappings,
	// weighted by the distance to each tile center.
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		tyf := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(tyf)
		if tyf < 0 {
			ty0 = 0
			tyf = 0
		}
		ty1 := minInt(ty0+1, tilesY-1)
		if ty0 > tilesY-1 {
			ty0 = tilesY - 1
		}
		fy := tyf - float64(ty0)
		if fy < 0 {
			fy = 0
		} else if fy > 1 {
			fy = 1
		}

		for x := 0; x < w; x++ {
			txf := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(txf)
			if txf < 0 {
				tx0 = 0
				txf = 0
			}
			tx1 := minInt(tx0+1, tilesX-1)
			if tx0 > tilesX-1 {
				tx0 = tilesX - 1
			}
			fx := txf - float64(tx0)
			if fx < 0 {
				fx = 0
			} else if fx > 1 {
				fx = 1
			}

			v := src.Pix[y*src.Stride+x]
			tl := float64(luts[ty0*tilesX+tx0][v])
			tr := float64(luts[ty0*tilesX+tx1][v])
			bl := float64(luts[ty1*tilesX+tx0][v])
			br := float64(luts[ty1*tilesX+tx1][v])

			top := tl + (tr-tl)*fx
			bottom := bl + (br-bl)*fx
			dst.Pix[y*dst.Stride+x] = uint8(top + (bottom-top)*fy + 0.5)
		}
	}
	return dst
}

// buildTileLUT clips a tile histogram at the configured limit, redistributes
// the excess uniformly and returns the equalization mapping. The mapping is
// computed over the normalized histogram so tiles of different sizes with
// the same distribution map values identically.
func buildTileLUT(hist [256]int, pixels int) [256]uint8 {
	var lut [256]uint8
	if pixels == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	var p [256]float64
	for i, c := range hist {
		p[i] = float64(c) / float64(pixels)
	}

	clip := claheClipLimit / 256.0
	excess := 0.0
	for i := range p {
		if p[i] > clip {
			excess += p[i] - clip
			p[i] = clip
		}
	}
	bonus := excess / 256.0

	cum := 0.0
	for i := range p {
		cum += p[i] + bonus
		v := cum * 255.0
		if v > 255 {
			v = 255
		}
		lut[i] = uint8(v + 0.5)
	}
	return lut
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
