package tracker

import (
	"github.com/aei/innovision/internal/detector"
	"github.com/aei/innovision/internal/geometry"
)

// Unmatched marks a detection that did not claim any track.
const Unmatched = -1

// Assign greedily pairs detections with tracks. Detections are visited in
// the order given; each claims the unclaimed track with the highest IoU if
// that IoU is at least threshold. The result holds one track index (or
// Unmatched) per detection. Neither input is modified.
func Assign(tracks []Track, detections []detector.Detection, threshold float64) []int {
	matches := make([]int, len(detections))
	claimed := make([]bool, len(tracks))

	for di, d := range detections {
		matches[di] = Unmatched
		best, bestIoU := Unmatched, 0.0

		for ti, tr := range tracks {
			if claimed[ti] {
				continue
			}
			if iou := geometry.IoU(d.Box, tr.Box); iou > bestIoU {
				best, bestIoU = ti, iou
			}
		}

		if best != Unmatched && bestIoU >= threshold {
			matches[di] = best
			claimed[best] = true
		}
	}

	return matches
}
