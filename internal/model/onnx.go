package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/digit-api/internal/tensor"
)

// ONNXConfig describes an ONNX export of the digit network. The graph must
// take a [1, InputWidth] float32 input and produce [1, NumClasses]
// probabilities.
type ONNXConfig struct {
	ModelPath   string
	LibraryPath string // onnxruntime shared library; empty uses the default lookup
	InputName   string
	OutputName  string
	InputWidth  int
}

func (c *ONNXConfig) defaults() {
	if c.InputName == "" {
		c.InputName = "input"
	}
	if c.OutputName == "" {
		c.OutputName = "output"
	}
	if c.InputWidth == 0 {
		c.InputWidth = InputWidth
	}
}

// ONNXEngine is a Forwarder backed by ONNX Runtime. The session binds one
// pair of tensors, so runs are serialized.
type ONNXEngine struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputWidth   int
}

// NewONNXEngine initializes the runtime environment and opens a session.
func NewONNXEngine(cfg ONNXConfig) (*ONNXEngine, error) {
	cfg.defaults()
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx: model path is required")
	}
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.InputWidth)))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, NumClasses))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEngine{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputWidth:   cfg.InputWidth,
	}, nil
}

// InputWidth is the number of values Forward expects.
func (e *ONNXEngine) InputWidth() int { return e.inputWidth }

// Forward copies x into the session input, runs the graph and returns a
// copy of the output.
func (e *ONNXEngine) Forward(x tensor.Tensor) (tensor.Tensor, error) {
	if x.Len() != e.inputWidth {
		return tensor.Tensor{}, &ShapeMismatchError{Want: e.inputWidth, Got: x.Len()}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	in := e.inputTensor.GetData()
	for i := range in {
		in[i] = x.At(i)
	}

	if err := e.session.Run(); err != nil {
		return tensor.Tensor{}, fmt.Errorf("inference failed: %w", err)
	}

	return tensor.New(e.outputTensor.GetData(), 1, NumClasses)
}

// Close releases the session, its tensors and the runtime environment.
func (e *ONNXEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	ort.DestroyEnvironment()
}
