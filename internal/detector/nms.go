package detector

import (
	"sort"

	"github.com/aei/innovision/internal/geometry"
)

// SortByScore orders detections by descending score in place.
// Equal scores keep their original relative order.
func SortByScore(detections []Detection) {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})
}

// Suppress applies greedy non-max suppression: walking candidates from the
// highest score down, it keeps a box and drops every later box whose IoU with
// it exceeds iouThreshold. The input slice is not modified.
func Suppress(candidates []Detection, iouThreshold float64) []Detection {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]Detection, len(candidates))
	copy(sorted, candidates)
	SortByScore(sorted)

	kept := make([]Detection, 0, len(sorted))
	suppressed := make([]bool, len(sorted))

	for i := range sorted {
		if suppressed[i] {
			continue
		}
		a := sorted[i]
		kept = append(kept, a)

		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] {
				continue
			}
			if geometry.IoU(a.Box, sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return kept
}
