package geometry

import "math"

// Point is a position in pixel space.
type Point struct {
	X float64
	Y float64
}

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 {
	return b.Right - b.Left
}

// Height returns the vertical extent of the box.
func (b Box) Height() float64 {
	return b.Bottom - b.Top
}

// Area returns the box area, or 0 for inverted boxes.
func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Center returns the midpoint of the box.
func (b Box) Center() Point {
	return Point{X: (b.Left + b.Right) / 2, Y: (b.Top + b.Bottom) / 2}
}

// Finite reports whether no edge is NaN or infinite.
func (b Box) Finite() bool {
	for _, v := range [4]float64{b.Left, b.Top, b.Right, b.Bottom} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Valid reports whether all edges are finite and the box has a positive area.
func (b Box) Valid() bool {
	return b.Finite() && b.Right > b.Left && b.Bottom > b.Top
}

// Clamp limits the box to [0, width] x [0, height].
func (b Box) Clamp(width, height float64) Box {
	return Box{
		Left:   clamp(b.Left, 0, width),
		Top:    clamp(b.Top, 0, height),
		Right:  clamp(b.Right, 0, width),
		Bottom: clamp(b.Bottom, 0, height),
	}
}

// Blend returns alpha*b + (1-alpha)*prev applied to every edge.
func (b Box) Blend(prev Box, alpha float64) Box {
	return Box{
		Left:   alpha*b.Left + (1-alpha)*prev.Left,
		Top:    alpha*b.Top + (1-alpha)*prev.Top,
		Right:  alpha*b.Right + (1-alpha)*prev.Right,
		Bottom: alpha*b.Bottom + (1-alpha)*prev.Bottom,
	}
}

// IoU returns the intersection-over-union of two boxes.
// Disjoint or degenerate boxes yield 0.
func IoU(a, b Box) float64 {
	left := math.Max(a.Left, b.Left)
	top := math.Max(a.Top, b.Top)
	right := math.Min(a.Right, b.Right)
	bottom := math.Min(a.Bottom, b.Bottom)

	if right <= left || bottom <= top {
		return 0
	}

	intersection := (right - left) * (bottom - top)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
