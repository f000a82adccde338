// Package geometry provides the coordinate transforms shared by the detection pipeline:
// sensor/upright rotation and letterboxed model space.
package geometry

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned for zero-sized images and rotations that are not
// a multiple of 90 degrees.
var ErrInvalidInput = errors.New("invalid input")

// Rotation is the clockwise rotation, in degrees, that turns a sensor frame upright.
// Only the four right-angle values are representable.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// ParseRotation normalises deg into [0, 360) and maps it onto a Rotation.
func ParseRotation(deg int) (Rotation, error) {
	norm := ((deg % 360) + 360) % 360
	switch norm {
	case 0:
		return Rotation0, nil
	case 90:
		return Rotation90, nil
	case 180:
		return Rotation180, nil
	case 270:
		return Rotation270, nil
	default:
		return Rotation0, fmt.Errorf("rotation %d: %w", deg, ErrInvalidInput)
	}
}

// Degrees returns the rotation as an integer angle.
func (r Rotation) Degrees() int {
	return int(r)
}

// SwapsAxes reports whether the rotation exchanges width and height.
func (r Rotation) SwapsAxes() bool {
	return r == Rotation90 || r == Rotation270
}

func (r Rotation) String() string {
	return fmt.Sprintf("%d°", int(r))
}
