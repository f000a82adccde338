package detector

import (
	"fmt"
	"sync"

	"github.com/mattn/go-tflite"
)

// TFLiteConfig holds options for the TensorFlow Lite engine.
type TFLiteConfig struct {
	ModelPath string
	Threads   int
}

// TFLiteEngine runs a float TFLite export of the detector. Shapes are read
// from the model: input [1, S, S, 3], output [1, C, N].
type TFLiteEngine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	inputSize   int
	channels    int
	anchors     int
	mu          sync.Mutex
}

// NewTFLiteEngine loads the model and allocates its tensors.
func NewTFLiteEngine(config TFLiteConfig) (*TFLiteEngine, error) {
	model := tflite.NewModelFromFile(config.ModelPath)
	if model == nil {
		return nil, fmt.Errorf("load tflite model %s", config.ModelPath)
	}

	options := tflite.NewInterpreterOptions()
	if config.Threads > 0 {
		options.SetNumThread(config.Threads)
	}

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("create tflite interpreter")
	}

	e := &TFLiteEngine{
		model:       model,
		options:     options,
		interpreter: interpreter,
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		e.Close()
		return nil, fmt.Errorf("allocate tensors: status %v", status)
	}

	input := interpreter.GetInputTensor(0)
	output := interpreter.GetOutputTensor(0)
	if input.NumDims() != 4 || output.NumDims() != 3 {
		e.Close()
		return nil, fmt.Errorf("%w: input dims %d, output dims %d", ErrTensorShape, input.NumDims(), output.NumDims())
	}

	e.inputSize = input.Dim(1)
	e.channels = output.Dim(1)
	e.anchors = output.Dim(2)

	return e, nil
}

// Infer writes input into the interpreter, invokes it and returns a copy of the output.
func (e *TFLiteEngine) Infer(input []float32) (Tensor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dst := e.interpreter.GetInputTensor(0).Float32s()
	if len(input) != len(dst) {
		return Tensor{}, fmt.Errorf("%w: input has %d values, want %d", ErrTensorShape, len(input), len(dst))
	}
	copy(dst, input)

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return Tensor{}, fmt.Errorf("model inference: status %v", status)
	}

	raw := e.interpreter.GetOutputTensor(0).Float32s()
	data := make([]float32, len(raw))
	copy(data, raw)

	return Tensor{Data: data, Channels: e.channels, Anchors: e.anchors}, nil
}

// InputSize returns the model input side read from the model.
func (e *TFLiteEngine) InputSize() int {
	return e.inputSize
}

// Layout returns LayoutNHWC.
func (e *TFLiteEngine) Layout() Layout {
	return LayoutNHWC
}

// Close deletes the interpreter, options and model.
func (e *TFLiteEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}
