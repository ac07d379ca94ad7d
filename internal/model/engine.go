package model

import (
	"errors"

	"github.com/Brownie44l1/digit-api/internal/tensor"
)

// ErrNilModel is returned by NewEngine when it is given no model.
var ErrNilModel = errors.New("model: engine needs a loaded model")

// Forwarder turns a flattened input into a class probability tensor.
type Forwarder interface {
	Forward(x tensor.Tensor) (tensor.Tensor, error)
	InputWidth() int
}

// Engine runs the dense layers of a Model in order. It holds no state
// besides the model, so one Engine serves any number of goroutines.
type Engine struct {
	model *Model
}

// NewEngine returns an engine owning m. m must not be modified afterwards.
func NewEngine(m *Model) (*Engine, error) {
	if m == nil {
		return nil, ErrNilModel
	}
	return &Engine{model: m}, nil
}

// InputWidth is the number of values Forward expects.
func (e *Engine) InputWidth() int { return e.model.InputWidth() }

// Forward applies every layer to x. Any shape of x is accepted as long as
// it holds InputWidth values.
func (e *Engine) Forward(x tensor.Tensor) (tensor.Tensor, error) {
	if x.Len() != e.model.InputWidth() {
		return tensor.Tensor{}, &ShapeMismatchError{Want: e.model.InputWidth(), Got: x.Len()}
	}
	out := x
	for _, l := range e.model.layers {
		var err error
		out, err = Dense(l, out)
		if err != nil {
			return tensor.Tensor{}, err
		}
	}
	return out, nil
}

// Predict runs Forward and scores the result.
func (e *Engine) Predict(x tensor.Tensor) (Prediction, error) {
	probs, err := e.Forward(x)
	if err != nil {
		return Prediction{}, err
	}
	return Score(probs), nil
}
