package detector

import "sync"

// MockEngine is a test implementation of the Engine interface.
// It allows tests to control the raw network output.
type MockEngine struct {
	size   int
	output Tensor
	err    error
	calls  int
	mu     sync.Mutex
}

// NewMockEngine creates a MockEngine with a size x size input.
func NewMockEngine(size int) *MockEngine {
	return &MockEngine{
		size:   size,
		output: NewTensor(1),
	}
}

// SetOutput sets the tensor that will be returned by Infer.
func (m *MockEngine) SetOutput(t Tensor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = t
}

// SetError sets the error that will be returned by Infer.
func (m *MockEngine) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Infer was invoked.
func (m *MockEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Infer returns the pre-configured tensor or error.
func (m *MockEngine) Infer(input []float32) (Tensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return Tensor{}, m.err
	}
	return m.output, nil
}

// InputSize returns the configured input side.
func (m *MockEngine) InputSize() int {
	return m.size
}

// Layout returns LayoutNCHW.
func (m *MockEngine) Layout() Layout {
	return LayoutNCHW
}

// Close is a no-op for the mock engine.
func (m *MockEngine) Close() error {
	return nil
}

// Anchor is one column of a synthetic [1, 5, N] output.
type Anchor struct {
	XCenter float32
	YCenter float32
	Width   float32
	Height  float32
	Score   float32
}

// NewTensor builds a [1, 5, anchors] tensor whose leading columns hold the
// given rows. Remaining anchors score zero.
func NewTensor(anchors int, rows ...Anchor) Tensor {
	if anchors < len(rows) {
		anchors = len(rows)
	}
	data := make([]float32, 5*anchors)
	for i, a := range rows {
		data[i] = a.XCenter
		data[anchors+i] = a.YCenter
		data[2*anchors+i] = a.Width
		data[3*anchors+i] = a.Height
		data[4*anchors+i] = a.Score
	}
	return Tensor{Data: data, Channels: 5, Anchors: anchors}
}
