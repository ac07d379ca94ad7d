package model

import (
	"math"

	"github.com/Brownie44l1/digit-api/internal/tensor"
)

// Dense applies the affine transform of l to x followed by l's activation.
// x must have l.InputWidth() values; the result has shape [1, outputWidth].
//
// Dropout only exists at training time, so nothing here is stochastic.
func Dense(l LayerWeights, x tensor.Tensor) (tensor.Tensor, error) {
	in, out := l.InputWidth(), l.OutputWidth()
	if x.Len() != in {
		return tensor.Tensor{}, &ShapeMismatchError{Want: in, Got: x.Len()}
	}

	acc := affine(l, x, in, out)
	switch l.Activation {
	case ReLU:
		relu(acc)
	case Softmax:
		softmax(acc)
	}
	return tensor.Wrap(acc, 1, out)
}

// affine computes bias[j] + sum_i x[i]*kernel[i][j]. The sum for each j
// runs over i in ascending order; walking the kernel row by row keeps that
// order while reading memory sequentially.
func affine(l LayerWeights, x tensor.Tensor, in, out int) []float32 {
	acc := make([]float32, out)
	for i := 0; i < in; i++ {
		xi := x.At(i)
		row := i * out
		for j := 0; j < out; j++ {
			// Explicit conversion rounds the product and stops the
			// compiler from fusing it into an FMA on some architectures.
			acc[j] += float32(xi * l.Kernel.At(row+j))
		}
	}
	for j := 0; j < out; j++ {
		acc[j] = l.Bias.At(j) + acc[j]
	}
	return acc
}

func relu(v []float32) {
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		}
	}
}

// softmax normalizes v in place after shifting by its maximum. The shift
// and the exponentials are computed in float64.
func softmax(v []float32) {
	if len(v) == 0 {
		return
	}
	maxV := v[0]
	for _, x := range v[1:] {
		if x > maxV {
			maxV = x
		}
	}
	exps := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x) - float64(maxV))
		exps[i] = e
		sum += e
	}
	for i, e := range exps {
		v[i] = float32(e / sum)
	}
}

// ReLUValues returns max(0, x) element-wise without touching v.
func ReLUValues(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	relu(out)
	return out
}

// SoftmaxValues returns the softmax of v without touching v.
func SoftmaxValues(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	softmax(out)
	return out
}
