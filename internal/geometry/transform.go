package geometry

import (
	"fmt"
	"math"
)

// RotatedDimensions returns the size of a width x height frame after rotation r.
func RotatedDimensions(width, height int, r Rotation) (int, int) {
	if r.SwapsAxes() {
		return height, width
	}
	return width, height
}

// UnrotateBox maps a box observed in the upright frame (rotatedWidth x rotatedHeight)
// back into the un-rotated sensor frame.
func UnrotateBox(b Box, r Rotation, rotatedWidth, rotatedHeight float64) Box {
	switch r {
	case Rotation90:
		// upright (x, y) came from sensor (y, rotatedWidth - x)
		return Box{
			Left:   b.Top,
			Top:    rotatedWidth - b.Right,
			Right:  b.Bottom,
			Bottom: rotatedWidth - b.Left,
		}
	case Rotation180:
		return Box{
			Left:   rotatedWidth - b.Right,
			Top:    rotatedHeight - b.Bottom,
			Right:  rotatedWidth - b.Left,
			Bottom: rotatedHeight - b.Top,
		}
	case Rotation270:
		// upright (x, y) came from sensor (rotatedHeight - y, x)
		return Box{
			Left:   rotatedHeight - b.Bottom,
			Top:    b.Left,
			Right:  rotatedHeight - b.Top,
			Bottom: b.Right,
		}
	default:
		return b
	}
}

// Letterbox describes how a source image was scaled and padded into a square
// model input of Size x Size pixels.
type Letterbox struct {
	Scale         float64
	OffsetX       float64
	OffsetY       float64
	ResizedWidth  int
	ResizedHeight int
	Size          int
}

// ComputeLetterbox fits a srcW x srcH image into a size x size square while
// preserving aspect ratio. Offsets are whole pixels so that the padded canvas
// and the inverse transform agree exactly.
func ComputeLetterbox(srcW, srcH, size int) (Letterbox, error) {
	if srcW <= 0 || srcH <= 0 || size <= 0 {
		return Letterbox{}, fmt.Errorf("letterbox %dx%d into %d: %w", srcW, srcH, size, ErrInvalidInput)
	}

	scale := math.Min(float64(size)/float64(srcW), float64(size)/float64(srcH))
	resizedW := int(math.Round(float64(srcW) * scale))
	resizedH := int(math.Round(float64(srcH) * scale))
	if resizedW < 1 {
		resizedW = 1
	}
	if resizedH < 1 {
		resizedH = 1
	}

	return Letterbox{
		Scale:         scale,
		OffsetX:       float64((size - resizedW) / 2),
		OffsetY:       float64((size - resizedH) / 2),
		ResizedWidth:  resizedW,
		ResizedHeight: resizedH,
		Size:          size,
	}, nil
}

// Unletterbox maps a point in model space back to source image space.
func (l Letterbox) Unletterbox(p Point) Point {
	return Point{
		X: (p.X - l.OffsetX) / l.Scale,
		Y: (p.Y - l.OffsetY) / l.Scale,
	}
}

// UnletterboxBox maps both corners of a model-space box back to source image space.
func (l Letterbox) UnletterboxBox(b Box) Box {
	tl := l.Unletterbox(Point{X: b.Left, Y: b.Top})
	br := l.Unletterbox(Point{X: b.Right, Y: b.Bottom})
	return Box{Left: tl.X, Top: tl.Y, Right: br.X, Bottom: br.Y}
}
