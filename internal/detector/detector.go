// Package detector turns raw detection-head output into post-it candidates.
// It covers model input preparation, tensor decoding, non-max suppression
// and the inference engines that sit behind the Engine interface.
package detector

import (
	"errors"
	"fmt"

	"github.com/aei/innovision/internal/geometry"
)

// ErrTensorShape is returned when a tensor's data does not match its declared shape.
var ErrTensorShape = errors.New("unexpected tensor shape")

// DefaultLabel is the class name used when no labels file is configured.
const DefaultLabel = "postit"

// Detection is a single observation within one frame.
type Detection struct {
	Box   geometry.Box `json:"box"`
	Label string       `json:"label"`
	Score float64      `json:"score"`
}

// Layout describes the memory order of the model input tensor.
type Layout int

const (
	// LayoutNCHW stores each colour plane contiguously (ONNX exports).
	LayoutNCHW Layout = iota
	// LayoutNHWC interleaves colour channels per pixel (TFLite exports).
	LayoutNHWC
)

// Engine runs the detection network.
type Engine interface {
	// Infer runs the model on a normalised input buffer of
	// InputSize*InputSize*3 values and returns the raw [1, C, N] output.
	Infer(input []float32) (Tensor, error)

	// InputSize is the side of the square model input in pixels.
	InputSize() int

	// Layout is the channel order the model expects.
	Layout() Layout

	// Close releases any resources held by the engine.
	Close() error
}

// Tensor is a raw [1, Channels, Anchors] output flattened channel-major.
type Tensor struct {
	Data     []float32
	Channels int
	Anchors  int
}

// At returns the value of channel c at anchor i.
func (t Tensor) At(c, i int) float32 {
	return t.Data[c*t.Anchors+i]
}

// Validate checks that the tensor carries at least four box parameters and a
// score per anchor and that its data length matches the shape.
func (t Tensor) Validate() error {
	if t.Channels < 5 || t.Anchors <= 0 {
		return fmt.Errorf("%w: [1, %d, %d]", ErrTensorShape, t.Channels, t.Anchors)
	}
	if len(t.Data) != t.Channels*t.Anchors {
		return fmt.Errorf("%w: got %d values, want %d", ErrTensorShape, len(t.Data), t.Channels*t.Anchors)
	}
	return nil
}
