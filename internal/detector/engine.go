package detector

import (
	"fmt"
	"path/filepath"
	"strings"
)

// EngineConfig selects and configures an inference engine.
type EngineConfig struct {
	ModelPath   string
	LibraryPath string
	Threads     int
}

// OpenEngine opens the engine matching the model file extension:
// .onnx uses ONNX Runtime, .tflite uses TensorFlow Lite.
func OpenEngine(config EngineConfig) (Engine, error) {
	switch strings.ToLower(filepath.Ext(config.ModelPath)) {
	case ".onnx":
		onnx := DefaultONNXConfig()
		onnx.ModelPath = config.ModelPath
		onnx.LibraryPath = config.LibraryPath
		if config.Threads > 0 {
			onnx.Threads = config.Threads
		}
		return NewONNXEngine(onnx)
	case ".tflite":
		return NewTFLiteEngine(TFLiteConfig{
			ModelPath: config.ModelPath,
			Threads:   config.Threads,
		})
	default:
		return nil, fmt.Errorf("unsupported model format %q", filepath.Ext(config.ModelPath))
	}
}
