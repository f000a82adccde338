package ocr

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/aei/innovision/internal/geometry"
)

// Crop cuts box out of img. The box is clamped to the image; nil is returned
// when nothing remains.
func Crop(img image.Image, box geometry.Box) image.Image {
	bounds := img.Bounds()
	b := box.Clamp(float64(bounds.Dx()), float64(bounds.Dy()))

	rect := image.Rect(
		bounds.Min.X+int(math.Floor(b.Left)),
		bounds.Min.Y+int(math.Floor(b.Top)),
		bounds.Min.X+int(math.Ceil(b.Right)),
		bounds.Min.Y+int(math.Ceil(b.Bottom)),
	)
	if rect.Empty() {
		return nil
	}
	return imaging.Crop(img, rect)
}
