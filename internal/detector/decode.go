package detector

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/aei/innovision/internal/geometry"
)

// normalizedLimit is the largest centre coordinate still treated as a fraction
// of the input size. It sits above 1.0 to tolerate overshoot at the border.
const normalizedLimit = 1.1

// DecodeConfig holds the decoder thresholds.
type DecodeConfig struct {
	// ConfThreshold drops anchors scoring below it (0.0-1.0).
	ConfThreshold float64

	// Label is the class name assigned to every detection.
	Label string
}

// DefaultDecodeConfig returns the decoder defaults.
func DefaultDecodeConfig() DecodeConfig {
	return DecodeConfig{
		ConfThreshold: 0.25,
		Label:         DefaultLabel,
	}
}

// Frame describes the geometry of the image a tensor was produced from.
type Frame struct {
	Letterbox geometry.Letterbox
	// Width and Height are the upright image dimensions the model observed.
	Width  int
	Height int
	// Rotation maps upright boxes back into the sensor frame.
	Rotation geometry.Rotation
}

// Decoder converts raw output tensors into detections in original image space.
type Decoder struct {
	config DecodeConfig
}

// NewDecoder creates a Decoder with the given configuration.
func NewDecoder(config DecodeConfig) *Decoder {
	if config.Label == "" {
		config.Label = DefaultLabel
	}
	return &Decoder{config: config}
}

// Decode returns one detection per anchor that clears the confidence threshold.
// Candidates are left unordered and may overlap heavily.
func (d *Decoder) Decode(t Tensor, f Frame) ([]Detection, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	size := float32(f.Letterbox.Size)
	width, height := float64(f.Width), float64(f.Height)
	detections := make([]Detection, 0, 64)

	for i := 0; i < t.Anchors; i++ {
		score := t.At(4, i)
		// NaN scores fail this comparison and are dropped too.
		if !(float64(score) >= d.config.ConfThreshold) {
			continue
		}

		xc, yc := t.At(0, i), t.At(1, i)
		w, h := t.At(2, i), t.At(3, i)

		if xc <= normalizedLimit {
			xc *= size
			yc *= size
			w *= size
			h *= size
		}

		model := geometry.Box{
			Left:   float64(xc - w/2),
			Top:    float64(yc - h/2),
			Right:  float64(xc + w/2),
			Bottom: float64(yc + h/2),
		}

		if !model.Finite() {
			continue
		}

		upright := f.Letterbox.UnletterboxBox(model).Clamp(width, height)
		if !upright.Valid() {
			continue
		}

		detections = append(detections, Detection{
			Box:   geometry.UnrotateBox(upright, f.Rotation, width, height),
			Label: d.config.Label,
			Score: float64(score),
		})
	}

	return detections, nil
}

// LoadLabel returns the first non-empty line of a labels file.
func LoadLabel(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open labels: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read labels: %w", err)
	}
	return "", fmt.Errorf("labels file %s is empty", path)
}
