// Package tensor holds the flat float32 container passed between the
// preprocessor, the dense layers and the scorer.
package tensor

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidShape is returned when a shape has a non-positive dimension or
// its product does not match the number of values.
var ErrInvalidShape = errors.New("tensor: invalid shape")

// Tensor is an immutable sequence of float32 values with a shape. The
// zero value is an empty tensor.
type Tensor struct {
	data  []float32
	shape []int
}

// New copies data into a tensor of the given shape. With no shape the
// tensor is one-dimensional.
func New(data []float32, shape ...int) (Tensor, error) {
	values := make([]float32, len(data))
	copy(values, data)
	return Wrap(values, shape...)
}

// Wrap builds a tensor around data without copying it. The caller hands
// over ownership and must not modify data afterwards.
func Wrap(data []float32, shape ...int) (Tensor, error) {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return Tensor{}, fmt.Errorf("%w: dimension %d in %v", ErrInvalidShape, d, shape)
		}
		n *= d
	}
	if n != len(data) {
		return Tensor{}, fmt.Errorf("%w: %v holds %d values, got %d", ErrInvalidShape, shape, n, len(data))
	}
	dims := make([]int, len(shape))
	copy(dims, shape)
	return Tensor{data: data, shape: dims}, nil
}

// Zeros returns a zero-filled tensor.
func Zeros(shape ...int) (Tensor, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n < 0 {
		n = 0
	}
	return Wrap(make([]float32, n), shape...)
}

// Len returns the number of values.
func (t Tensor) Len() int { return len(t.data) }

// At returns the i-th value in row-major order.
func (t Tensor) At(i int) float32 { return t.data[i] }

// Shape returns a copy of the shape.
func (t Tensor) Shape() []int {
	s := make([]int, len(t.shape))
	copy(s, t.shape)
	return s
}

// Values returns a copy of the values.
func (t Tensor) Values() []float32 {
	v := make([]float32, len(t.data))
	copy(v, t.data)
	return v
}

// Reshape returns a tensor sharing the same values under a new shape.
func (t Tensor) Reshape(shape ...int) (Tensor, error) {
	return Wrap(t.data, shape...)
}

// Equal reports whether both tensors have the same shape and bit-identical
// values.
func (t Tensor) Equal(o Tensor) bool {
	if len(t.shape) != len(o.shape) || len(t.data) != len(o.data) {
		return false
	}
	for i := range t.shape {
		if t.shape[i] != o.shape[i] {
			return false
		}
	}
	for i := range t.data {
		if math.Float32bits(t.data[i]) != math.Float32bits(o.data[i]) {
			return false
		}
	}
	return true
}

func (t Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, len=%d)", t.shape, len(t.data))
}
