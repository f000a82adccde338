package detector

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/aei/innovision/internal/geometry"
)

// PadValue is the grey level used for letterbox padding.
const PadValue = 114

// Preprocessor rotates a camera image upright, letterboxes it into the model
// input square and writes it as [0, 1] floats in the engine's layout.
type Preprocessor struct {
	size   int
	layout Layout
	buffer []float32
}

// NewPreprocessor creates a Preprocessor for a size x size model input.
func NewPreprocessor(size int, layout Layout) *Preprocessor {
	return &Preprocessor{
		size:   size,
		layout: layout,
		buffer: make([]float32, size*size*3),
	}
}

// Process prepares img for inference. The returned buffer is reused by the
// next call.
func (p *Preprocessor) Process(img image.Image, r geometry.Rotation) ([]float32, Frame, error) {
	upright := Upright(img, r)
	bounds := upright.Bounds()

	lb, err := geometry.ComputeLetterbox(bounds.Dx(), bounds.Dy(), p.size)
	if err != nil {
		return nil, Frame{}, err
	}

	canvas := p.Letterbox(upright, lb)
	p.fill(canvas)

	return p.buffer, Frame{
		Letterbox: lb,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Rotation:  r,
	}, nil
}

// Letterbox resizes img by lb and pastes it centred on a padded square canvas.
func (p *Preprocessor) Letterbox(img image.Image, lb geometry.Letterbox) *image.NRGBA {
	resized := imaging.Resize(img, lb.ResizedWidth, lb.ResizedHeight, imaging.Linear)
	canvas := imaging.New(lb.Size, lb.Size, color.NRGBA{R: PadValue, G: PadValue, B: PadValue, A: 255})
	return imaging.Paste(canvas, resized, image.Pt(int(lb.OffsetX), int(lb.OffsetY)))
}

func (p *Preprocessor) fill(canvas *image.NRGBA) {
	plane := p.size * p.size
	for y := 0; y < p.size; y++ {
		row := canvas.Pix[y*canvas.Stride:]
		for x := 0; x < p.size; x++ {
			r := float32(row[x*4]) / 255.0
			g := float32(row[x*4+1]) / 255.0
			b := float32(row[x*4+2]) / 255.0

			i := y*p.size + x
			switch p.layout {
			case LayoutNHWC:
				p.buffer[i*3] = r
				p.buffer[i*3+1] = g
				p.buffer[i*3+2] = b
			default:
				p.buffer[i] = r
				p.buffer[plane+i] = g
				p.buffer[plane*2+i] = b
			}
		}
	}
}

// Upright rotates img clockwise by r so that it matches what the model expects.
func Upright(img image.Image, r geometry.Rotation) image.Image {
	switch r {
	case geometry.Rotation90:
		// imaging rotates counter-clockwise
		return imaging.Rotate270(img)
	case geometry.Rotation180:
		return imaging.Rotate180(img)
	case geometry.Rotation270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
