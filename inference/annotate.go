package inference

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/fogleman/gg"
)

// annotateDetections draws the detector's bounding boxes and scores onto the
// preprocessed frame and returns it as JPEG bytes.
func annotateDetections(img image.Image, dets []Detection) ([]byte, error) {
	dc := gg.NewContextForImage(img)

	for _, d := range dets {
		x, y := d.Box[0], d.Box[1]
		w, h := d.Box[2]-d.Box[0], d.Box[3]-d.Box[1]
		if w <= 0 || h <= 0 {
			continue
		}

		dc.SetRGB(1, 0, 0)
		dc.SetLineWidth(2)
		dc.DrawRectangle(x, y, w, h)
		dc.Stroke()

		caption := fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence)
		textY := y - 4
		if textY < 10 {
			textY = y + 12
		}
		dc.DrawString(caption, x+2, textY)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
