package model

import (
	"fmt"

	"github.com/Brownie44l1/digit-api/internal/tensor"
)

const (
	// InputSize is the side of the square bitmap the network was trained on.
	InputSize = 28
	// InputWidth is the flattened width of a preprocessed bitmap.
	InputWidth = InputSize * InputSize
	// NumClasses is the number of digit labels.
	NumClasses = 10
)

// Activation tags the nonlinearity applied after a dense layer.
type Activation string

const (
	ReLU    Activation = "relu"
	Softmax Activation = "softmax"
)

func (a Activation) valid() bool {
	return a == ReLU || a == Softmax
}

// LayerWeights is one dense layer: a row-major kernel of shape
// [inputWidth, outputWidth] and a bias of length outputWidth.
type LayerWeights struct {
	Name       string
	Kernel     tensor.Tensor
	Bias       tensor.Tensor
	Activation Activation
}

// InputWidth returns the kernel row count.
func (l LayerWeights) InputWidth() int {
	s := l.Kernel.Shape()
	if len(s) != 2 {
		return 0
	}
	return s[0]
}

// OutputWidth returns the kernel column count.
func (l LayerWeights) OutputWidth() int {
	s := l.Kernel.Shape()
	if len(s) != 2 {
		return 0
	}
	return s[1]
}

// Model is a validated, read-only stack of dense layers. It is safe to
// share between goroutines.
type Model struct {
	layers []LayerWeights
}

// NewModel validates the layer stack: every kernel is two-dimensional,
// bias lengths match output widths, widths chain from layer to layer and
// the last layer produces NumClasses outputs.
func NewModel(layers ...LayerWeights) (*Model, error) {
	if len(layers) == 0 {
		return nil, &FormatError{Layer: -1, Detail: "no dense layers"}
	}
	prev := 0
	for i, l := range layers {
		if !l.Activation.valid() {
			return nil, &FormatError{Layer: i, Name: l.Name, Detail: fmt.Sprintf("unknown activation %q", l.Activation)}
		}
		if len(l.Kernel.Shape()) != 2 {
			return nil, &FormatError{Layer: i, Name: l.Name, Detail: fmt.Sprintf("kernel shape %v is not two-dimensional", l.Kernel.Shape())}
		}
		in, out := l.InputWidth(), l.OutputWidth()
		if l.Bias.Len() != out {
			return nil, &FormatError{Layer: i, Name: l.Name, Detail: "bias length", Want: out, Got: l.Bias.Len()}
		}
		if i > 0 && in != prev {
			return nil, &FormatError{Layer: i, Name: l.Name, Detail: "input width does not match previous output width", Want: prev, Got: in}
		}
		prev = out
	}
	if prev != NumClasses {
		last := len(layers) - 1
		return nil, &FormatError{Layer: last, Name: layers[last].Name, Detail: "final output width", Want: NumClasses, Got: prev}
	}
	m := &Model{layers: make([]LayerWeights, len(layers))}
	copy(m.layers, layers)
	return m, nil
}

// InputWidth is the width the first layer expects.
func (m *Model) InputWidth() int { return m.layers[0].InputWidth() }

// OutputWidth is the width of the final layer.
func (m *Model) OutputWidth() int { return m.layers[len(m.layers)-1].OutputWidth() }

// NumLayers returns the number of dense layers.
func (m *Model) NumLayers() int { return len(m.layers) }

// Layer returns the i-th layer.
func (m *Model) Layer(i int) LayerWeights { return m.layers[i] }

// Prediction is a scored result: a digit in [0, 9] and the confidence as a
// percentage rounded to one decimal.
type Prediction struct {
	Digit      int     `json:"digit"`
	Confidence float64 `json:"confidence"`
}

func (p Prediction) String() string {
	return fmt.Sprintf("Prediction: %d (%.1f%%)", p.Digit, p.Confidence)
}
