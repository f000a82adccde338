// Package tracker gives post-it detections stable identities across frames.
package tracker

import (
	"sort"

	"github.com/aei/innovision/internal/detector"
)

// Config holds tracker parameters.
type Config struct {
	// MatchThreshold is the minimum IoU for a detection to continue a track.
	MatchThreshold float64

	// MaxMissed is how many consecutive frames a track may go unmatched
	// before it is evicted.
	MaxMissed int

	// MaxTracks caps the number of live tracks.
	MaxTracks int

	// Alpha is the weight of the new detection when smoothing a box.
	Alpha float64

	// ScoreDecay is applied to a track's previous score before comparing
	// it with the score of the matched detection.
	ScoreDecay float64
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		MatchThreshold: 0.30,
		MaxMissed:      5,
		MaxTracks:      30,
		Alpha:          0.6,
		ScoreDecay:     0.6,
	}
}

// Track is a detection that has persisted across frames.
type Track struct {
	ID int `json:"id"`
	detector.Detection
	FramesSinceMatch int `json:"framesSinceMatch"`
}

// Smoother turns per-frame detections into a temporally stable list.
type Smoother interface {
	Update(detections []detector.Detection) []Track
	Reset()
}

// Tracker assigns persistent IDs to detections by greedy IoU matching.
// It is not safe for concurrent use.
type Tracker struct {
	config Config
	tracks []Track
	nextID int
}

// New creates a Tracker with the given configuration.
func New(config Config) *Tracker {
	return &Tracker{
		config: config,
		nextID: 1,
	}
}

// Update advances the tracker by one frame and returns the live tracks
// ordered by descending score.
func (t *Tracker) Update(detections []detector.Detection) []Track {
	for i := range t.tracks {
		t.tracks[i].FramesSinceMatch++
	}

	sorted := make([]detector.Detection, len(detections))
	copy(sorted, detections)
	detector.SortByScore(sorted)

	matches := Assign(t.tracks, sorted, t.config.MatchThreshold)

	for di, d := range sorted {
		ti := matches[di]
		if ti == Unmatched {
			if len(t.tracks) < t.config.MaxTracks {
				t.tracks = append(t.tracks, Track{ID: t.nextID, Detection: d})
				t.nextID++
			}
			continue
		}

		tr := &t.tracks[ti]
		tr.Box = d.Box.Blend(tr.Box, t.config.Alpha)
		tr.Score = max(tr.Score*t.config.ScoreDecay, d.Score)
		tr.Label = d.Label
		tr.FramesSinceMatch = 0
	}

	live := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.FramesSinceMatch <= t.config.MaxMissed {
			live = append(live, tr)
		}
	}
	t.tracks = live

	return t.Snapshot()
}

// Snapshot returns a copy of the live tracks ordered by descending score.
func (t *Tracker) Snapshot() []Track {
	out := make([]Track, len(t.tracks))
	copy(out, t.tracks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Reset drops all tracks. IDs keep counting from where they were.
func (t *Tracker) Reset() {
	t.tracks = nil
}

// Len returns the number of live tracks.
func (t *Tracker) Len() int {
	return len(t.tracks)
}
