// Package capture reads camera frames with GoCV and hands the most recent one
// to the detection loop.
package capture

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Capture rates. The camera idles at IdleFPS and speeds up while something moves.
const (
	IdleFPS   = 5
	ActiveFPS = 15
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Config selects and configures a video source.
type Config struct {
	// Source is a device index ("0"), a video file or a stream URL.
	Source string
	Width  int
	Height int
	FPS    int
}

// DefaultConfig returns the settings for the first attached camera.
func DefaultConfig() Config {
	return Config{
		Source: "0",
		Width:  1280,
		Height: 720,
		FPS:    IdleFPS,
	}
}

// Frame is a captured image with its sequence number. The owner must Close it.
type Frame struct {
	Mat       gocv.Mat
	Seq       uint64
	Timestamp time.Time
}

// NewFrame wraps mat. The frame takes ownership of it.
func NewFrame(mat gocv.Mat, seq uint64) *Frame {
	return &Frame{Mat: mat, Seq: seq, Timestamp: time.Now()}
}

// Image converts the frame to an image.Image.
func (f *Frame) Image() (image.Image, error) {
	return f.Mat.ToImage()
}

// Close releases the frame's pixel buffer.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// cameraImpl manages video capture from a device, file or stream using GoCV.
type cameraImpl struct {
	config  Config
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewCamera creates a Camera for config. FPS values <= 0 fall back to IdleFPS.
func NewCamera(config Config) Camera {
	if config.FPS <= 0 {
		config.FPS = IdleFPS
	}
	return &cameraImpl{config: config}
}

// Open opens the video source.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var source interface{} = c.config.Source
	if id, err := strconv.Atoi(c.config.Source); err == nil {
		source = id
	}

	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return fmt.Errorf("open video source %q: %w", c.config.Source, err)
	}

	if c.config.Width > 0 && c.config.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	}
	capture.Set(gocv.VideoCaptureFPS, float64(c.config.FPS))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame. The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// SetFPS sets the capture rate. Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.config.FPS = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current capture rate.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.config.FPS
}

// IsOpen returns true if the camera is currently open.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
