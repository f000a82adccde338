package tracker

import (
	"github.com/aei/innovision/internal/detector"
	"github.com/aei/innovision/internal/geometry"
)

// HoldFilter smooths detections without assigning identities. When a frame
// comes back empty it replays the last non-empty frame with a decaying score
// for up to MaxHold frames. Emitted tracks carry ID 0.
type HoldFilter struct {
	config  Config
	maxHold int
	last    []detector.Detection
	held    int
}

// NewHoldFilter creates a HoldFilter. MatchThreshold and Alpha are taken from
// config; maxHold is the number of empty frames to bridge.
func NewHoldFilter(config Config, maxHold int) *HoldFilter {
	return &HoldFilter{config: config, maxHold: maxHold}
}

// Update returns the smoothed detections for this frame.
func (h *HoldFilter) Update(detections []detector.Detection) []Track {
	if len(detections) == 0 {
		if len(h.last) == 0 || h.held >= h.maxHold {
			h.last = nil
			return []Track{}
		}
		h.held++
		factor := 1 - float64(h.held)/float64(h.maxHold+1)
		out := make([]Track, len(h.last))
		for i, d := range h.last {
			d.Score *= factor
			out[i] = Track{Detection: d, FramesSinceMatch: h.held}
		}
		return out
	}

	smoothed := make([]detector.Detection, len(detections))
	for i, d := range detections {
		for _, prev := range h.last {
			if geometry.IoU(d.Box, prev.Box) > h.config.MatchThreshold {
				d.Box = d.Box.Blend(prev.Box, h.config.Alpha)
				break
			}
		}
		smoothed[i] = d
	}
	detector.SortByScore(smoothed)

	h.last = smoothed
	h.held = 0

	out := make([]Track, len(smoothed))
	for i, d := range smoothed {
		out[i] = Track{Detection: d}
	}
	return out
}

// Reset forgets the remembered frame.
func (h *HoldFilter) Reset() {
	h.last = nil
	h.held = 0
}
