package detector

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig holds options for the ONNX Runtime engine.
type ONNXConfig struct {
	ModelPath   string
	LibraryPath string // shared onnxruntime library; empty uses the loader default
	InputSize   int
	Channels    int // output channels: 4 box parameters + 1 score
	Anchors     int
	InputName   string
	OutputName  string
	Threads     int
}

// DefaultONNXConfig returns settings matching a single-class YOLOv8 export.
func DefaultONNXConfig() ONNXConfig {
	return ONNXConfig{
		InputSize:  640,
		Channels:   5,
		Anchors:    8400,
		InputName:  "images",
		OutputName: "output0",
		Threads:    runtime.NumCPU(),
	}
}

// ONNXEngine runs the detector through ONNX Runtime with preallocated tensors.
type ONNXEngine struct {
	config  ONNXConfig
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	mu      sync.Mutex
}

// NewONNXEngine initialises the runtime environment if needed and opens a session.
func NewONNXEngine(config ONNXConfig) (*ONNXEngine, error) {
	if !ort.IsInitialized() {
		if config.LibraryPath != "" {
			ort.SetSharedLibraryPath(config.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx environment: %w", err)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	if config.Threads > 0 {
		options.SetIntraOpNumThreads(config.Threads)
		options.SetInterOpNumThreads(config.Threads)
	}

	inputShape := ort.NewShape(1, 3, int64(config.InputSize), int64(config.InputSize))
	outputShape := ort.NewShape(1, int64(config.Channels), int64(config.Anchors))

	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		config.ModelPath,
		[]string{config.InputName},
		[]string{config.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &ONNXEngine{
		config:  config,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// Infer copies input into the session tensor, runs the model and returns a
// copy of the output.
func (e *ONNXEngine) Infer(input []float32) (Tensor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dst := e.input.GetData()
	if len(input) != len(dst) {
		return Tensor{}, fmt.Errorf("%w: input has %d values, want %d", ErrTensorShape, len(input), len(dst))
	}
	copy(dst, input)

	if err := e.session.Run(); err != nil {
		return Tensor{}, fmt.Errorf("model inference: %w", err)
	}

	raw := e.output.GetData()
	data := make([]float32, len(raw))
	copy(data, raw)

	return Tensor{Data: data, Channels: e.config.Channels, Anchors: e.config.Anchors}, nil
}

// InputSize returns the model input side.
func (e *ONNXEngine) InputSize() int {
	return e.config.InputSize
}

// Layout returns LayoutNCHW.
func (e *ONNXEngine) Layout() Layout {
	return LayoutNCHW
}

// Close destroys the session and its tensors.
func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.input != nil {
		e.input.Destroy()
		e.input = nil
	}
	if e.output != nil {
		e.output.Destroy()
		e.output = nil
	}
	return nil
}

// ShutdownONNX releases the process-wide ONNX Runtime environment.
func ShutdownONNX() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}
