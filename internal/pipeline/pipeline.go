// Package pipeline runs one camera frame through preprocessing, inference,
// decoding, non-max suppression and temporal smoothing.
package pipeline

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aei/innovision/internal/detector"
	"github.com/aei/innovision/internal/geometry"
	"github.com/aei/innovision/internal/tracker"
)

// Smoothing modes.
const (
	ModeTrack = "track"
	ModeHold  = "hold"
)

// Config holds pipeline parameters.
type Config struct {
	// ConfThreshold is the minimum anchor score kept by the decoder.
	ConfThreshold float64

	// NMSThreshold is the IoU above which a weaker overlapping box is suppressed.
	NMSThreshold float64

	// Label is the class name given to every detection.
	Label string

	// Mode selects identity tracking (ModeTrack) or the hold filter (ModeHold).
	Mode string

	// HoldFrames is how many empty frames the hold filter bridges.
	HoldFrames int

	Tracker tracker.Config
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		ConfThreshold: 0.25,
		NMSThreshold:  0.45,
		Label:         detector.DefaultLabel,
		Mode:          ModeTrack,
		HoldFrames:    5,
		Tracker:       tracker.DefaultConfig(),
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.ConfThreshold < 0 || c.ConfThreshold > 1 {
		return fmt.Errorf("confidence threshold %v out of range [0, 1]", c.ConfThreshold)
	}
	if c.NMSThreshold < 0 || c.NMSThreshold > 1 {
		return fmt.Errorf("nms threshold %v out of range [0, 1]", c.NMSThreshold)
	}
	if c.Tracker.Alpha <= 0 || c.Tracker.Alpha > 1 {
		return fmt.Errorf("smoothing alpha %v out of range (0, 1]", c.Tracker.Alpha)
	}
	if c.Tracker.MaxTracks <= 0 {
		return fmt.Errorf("max tracks must be positive, got %d", c.Tracker.MaxTracks)
	}
	switch c.Mode {
	case ModeTrack, ModeHold:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}

// Timings records how long each stage of the last frame took.
type Timings struct {
	Preprocess time.Duration
	Inference  time.Duration
	Decode     time.Duration
	Suppress   time.Duration
	Track      time.Duration
}

// Total returns the sum of all stages.
func (t Timings) Total() time.Duration {
	return t.Preprocess + t.Inference + t.Decode + t.Suppress + t.Track
}

// Pipeline turns frames into tracked post-its. Detect calls are serialised.
type Pipeline struct {
	config       Config
	engine       detector.Engine
	preprocessor *detector.Preprocessor
	decoder      *detector.Decoder
	smoother     tracker.Smoother

	mu      sync.Mutex
	frames  int
	timings Timings
}

// New creates a Pipeline that runs inference on engine.
func New(engine detector.Engine, config Config) (*Pipeline, error) {
	if engine == nil {
		return nil, fmt.Errorf("pipeline requires an inference engine")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	var smoother tracker.Smoother
	if config.Mode == ModeHold {
		smoother = tracker.NewHoldFilter(config.Tracker, config.HoldFrames)
	} else {
		smoother = tracker.New(config.Tracker)
	}

	return &Pipeline{
		config:       config,
		engine:       engine,
		preprocessor: detector.NewPreprocessor(engine.InputSize(), engine.Layout()),
		decoder: detector.NewDecoder(detector.DecodeConfig{
			ConfThreshold: config.ConfThreshold,
			Label:         config.Label,
		}),
		smoother: smoother,
	}, nil
}

// Detect runs one frame through the pipeline and returns the current tracks in
// original image coordinates. rotationDegrees is the clockwise rotation that
// makes img upright. Invalid input is rejected before any state changes.
func (p *Pipeline) Detect(img image.Image, rotationDegrees int) ([]tracker.Track, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image: %w", geometry.ErrInvalidInput)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("image is %dx%d: %w", bounds.Dx(), bounds.Dy(), geometry.ErrInvalidInput)
	}
	rotation, err := geometry.ParseRotation(rotationDegrees)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var timings Timings

	start := time.Now()
	input, frame, err := p.preprocessor.Process(img, rotation)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	timings.Preprocess = time.Since(start)

	start = time.Now()
	output, err := p.engine.Infer(input)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	timings.Inference = time.Since(start)

	start = time.Now()
	candidates, err := p.decoder.Decode(output, frame)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	timings.Decode = time.Since(start)

	start = time.Now()
	kept := detector.Suppress(candidates, p.config.NMSThreshold)
	timings.Suppress = time.Since(start)

	start = time.Now()
	tracks := p.smoother.Update(kept)
	timings.Track = time.Since(start)

	p.frames++
	p.timings = timings

	log.Debug().
		Int("frame", p.frames).
		Int("candidates", len(candidates)).
		Int("kept", len(kept)).
		Int("tracks", len(tracks)).
		Dur("preprocess", timings.Preprocess).
		Dur("inference", timings.Inference).
		Dur("decode", timings.Decode).
		Dur("nms", timings.Suppress).
		Dur("track", timings.Track).
		Msg("frame processed")

	return tracks, nil
}

// Reset forgets all tracks. Track IDs are not reused afterwards.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.smoother.Reset()
}

// LastTimings returns the stage timings of the most recent frame.
func (p *Pipeline) LastTimings() Timings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timings
}

// Frames returns how many frames have been processed.
func (p *Pipeline) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// Mode returns the configured smoothing mode.
func (p *Pipeline) Mode() string {
	return p.config.Mode
}
