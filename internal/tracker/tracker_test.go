package tracker

import (
	"math"
	"testing"

	"github.com/aei/innovision/internal/detector"
	"github.com/aei/innovision/internal/geometry"
)

func det(left, top, size, score float64) detector.Detection {
	return detector.Detection{
		Box:   geometry.Box{Left: left, Top: top, Right: left + size, Bottom: top + size},
		Label: detector.DefaultLabel,
		Score: score,
	}
}

func TestTracker_CreatesTracks(t *testing.T) {
	tr := New(DefaultConfig())

	got := tr.Update([]detector.Detection{det(0, 0, 50, 0.6), det(200, 200, 50, 0.9)})
	if len(got) != 2 {
		t.Fatalf("len(tracks) = %d, want 2", len(got))
	}

	// highest score is processed first and gets the first ID
	if got[0].ID != 1 || got[0].Score != 0.9 {
		t.Errorf("tracks[0] = %+v, want ID 1 score 0.9", got[0])
	}
	if got[1].ID != 2 {
		t.Errorf("tracks[1].ID = %d, want 2", got[1].ID)
	}
	for _, track := range got {
		if track.FramesSinceMatch != 0 {
			t.Errorf("track %d FramesSinceMatch = %d, want 0", track.ID, track.FramesSinceMatch)
		}
	}
}

func TestTracker_KeepsIDUnderDrift(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Update([]detector.Detection{det(100, 100, 100, 0.8)})

	for i := 1; i <= 20; i++ {
		got := tr.Update([]detector.Detection{det(100+float64(i)*5, 100, 100, 0.8)})
		if len(got) != 1 || got[0].ID != 1 {
			t.Fatalf("frame %d: tracks = %+v, want single track with ID 1", i, got)
		}
	}
}

func TestTracker_SmoothsBox(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Update([]detector.Detection{det(100, 100, 100, 0.8)})

	got := tr.Update([]detector.Detection{det(110, 100, 100, 0.5)})
	if len(got) != 1 {
		t.Fatalf("len(tracks) = %d, want 1", len(got))
	}

	// 0.6*110 + 0.4*100
	if math.Abs(got[0].Box.Left-106) > 1e-9 {
		t.Errorf("Left = %f, want 106", got[0].Box.Left)
	}
	// max(0.8*0.6, 0.5)
	if math.Abs(got[0].Score-0.5) > 1e-9 {
		t.Errorf("Score = %f, want 0.5", got[0].Score)
	}
}

func TestTracker_ConvergesOnStaticInput(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Update([]detector.Detection{det(100, 100, 100, 0.8)})

	target := det(140, 100, 100, 0.8)
	var got []Track
	for i := 0; i < 10; i++ {
		got = tr.Update([]detector.Detection{target})
	}

	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("tracks = %+v, want single track with ID 1", got)
	}
	if math.Abs(got[0].Box.Left-target.Box.Left) > 0.01 {
		t.Errorf("Left = %f, want close to %f", got[0].Box.Left, target.Box.Left)
	}
}

func TestTracker_Eviction(t *testing.T) {
	config := DefaultConfig()
	tr := New(config)
	tr.Update([]detector.Detection{det(0, 0, 50, 0.9)})

	for i := 1; i <= config.MaxMissed; i++ {
		got := tr.Update(nil)
		if len(got) != 1 {
			t.Fatalf("after %d empty frames: len(tracks) = %d, want 1", i, len(got))
		}
		if got[0].FramesSinceMatch != i {
			t.Errorf("FramesSinceMatch = %d, want %d", got[0].FramesSinceMatch, i)
		}
	}

	if got := tr.Update(nil); len(got) != 0 {
		t.Fatalf("after %d empty frames: tracks = %+v, want none", config.MaxMissed+1, got)
	}

	got := tr.Update([]detector.Detection{det(0, 0, 50, 0.9)})
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("reappearance = %+v, want new ID 2", got)
	}
}

func TestTracker_SeparateObjects(t *testing.T) {
	tr := New(DefaultConfig())
	first := tr.Update([]detector.Detection{det(0, 0, 50, 0.9), det(300, 0, 50, 0.8)})

	ids := map[float64]int{}
	for _, track := range first {
		ids[math.Round(track.Box.Left)] = track.ID
	}

	for i := 0; i < 5; i++ {
		got := tr.Update([]detector.Detection{det(300, 0, 50, 0.8), det(0, 0, 50, 0.9)})
		if len(got) != 2 {
			t.Fatalf("len(tracks) = %d, want 2", len(got))
		}
		for _, track := range got {
			if ids[math.Round(track.Box.Left)] != track.ID {
				t.Errorf("box %+v changed ID to %d", track.Box, track.ID)
			}
		}
	}
}

func TestTracker_OneDetectionPerTrack(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Update([]detector.Detection{det(0, 0, 100, 0.9)})

	// both overlap the existing track; only the stronger one may claim it
	got := tr.Update([]detector.Detection{det(5, 0, 100, 0.7), det(2, 0, 100, 0.8)})
	if len(got) != 2 {
		t.Fatalf("len(tracks) = %d, want 2", len(got))
	}

	var continued, created bool
	for _, track := range got {
		switch track.ID {
		case 1:
			continued = track.FramesSinceMatch == 0
		case 2:
			created = track.Score == 0.7
		}
	}
	if !continued || !created {
		t.Errorf("tracks = %+v, want ID 1 continued and ID 2 created from the weaker detection", got)
	}
}

func TestTracker_MaxTracks(t *testing.T) {
	config := DefaultConfig()
	config.MaxTracks = 3
	tr := New(config)

	var detections []detector.Detection
	for i := 0; i < 5; i++ {
		detections = append(detections, det(float64(i)*100, 0, 50, 0.5+float64(i)*0.1))
	}

	got := tr.Update(detections)
	if len(got) != 3 {
		t.Fatalf("len(tracks) = %d, want 3", len(got))
	}
	// strongest detections win the slots
	if math.Abs(got[2].Score-0.7) > 1e-9 {
		t.Errorf("weakest kept score = %f, want 0.7", got[2].Score)
	}
}

func TestTracker_OutputSortedAndCopied(t *testing.T) {
	tr := New(DefaultConfig())
	got := tr.Update([]detector.Detection{det(0, 0, 50, 0.3), det(100, 0, 50, 0.9), det(200, 0, 50, 0.6)})

	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("tracks not sorted by score: %+v", got)
		}
	}

	got[0].Score = 0
	if tr.Snapshot()[0].Score != 0.9 {
		t.Error("mutating the returned slice changed tracker state")
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Update([]detector.Detection{det(0, 0, 50, 0.9), det(100, 0, 50, 0.8)})

	tr.Reset()
	if tr.Len() != 0 {
		t.Fatalf("Len() = %d after Reset, want 0", tr.Len())
	}

	got := tr.Update([]detector.Detection{det(0, 0, 50, 0.9)})
	if len(got) != 1 || got[0].ID != 3 {
		t.Errorf("tracks = %+v, want ID 3 after reset", got)
	}
}

func TestAssign(t *testing.T) {
	tracks := []Track{
		{ID: 1, Detection: det(0, 0, 100, 0.9)},
		{ID: 2, Detection: det(500, 0, 100, 0.9)},
	}

	tests := []struct {
		name       string
		detections []detector.Detection
		threshold  float64
		want       []int
	}{
		{
			name:       "matches overlapping",
			detections: []detector.Detection{det(510, 0, 100, 0.9), det(10, 0, 100, 0.8)},
			threshold:  0.3,
			want:       []int{1, 0},
		},
		{
			name:       "below threshold",
			detections: []detector.Detection{det(80, 0, 100, 0.9)},
			threshold:  0.3,
			want:       []int{Unmatched},
		},
		{
			name:       "claimed track is skipped",
			detections: []detector.Detection{det(0, 0, 100, 0.9), det(1, 0, 100, 0.8)},
			threshold:  0.3,
			want:       []int{0, Unmatched},
		},
		{
			name:       "disjoint never matches",
			detections: []detector.Detection{det(1000, 1000, 10, 0.9)},
			threshold:  0,
			want:       []int{Unmatched},
		},
		{
			name:       "no detections",
			detections: nil,
			threshold:  0.3,
			want:       []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assign(tracks, tt.detections, tt.threshold)
			if len(got) != len(tt.want) {
				t.Fatalf("Assign() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Assign() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}
