package model

import (
	"math"

	"github.com/Brownie44l1/digit-api/internal/tensor"
)

// Score picks the most likely class. Ties go to the lowest index, and the
// confidence is 100*max rounded half away from zero to one decimal.
func Score(probs tensor.Tensor) Prediction {
	if probs.Len() == 0 {
		return Prediction{}
	}
	maxIdx := 0
	maxVal := probs.At(0)
	for i := 1; i < probs.Len(); i++ {
		if v := probs.At(i); v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	return Prediction{Digit: maxIdx, Confidence: Confidence(maxVal)}
}

// Confidence converts a probability into a percentage with one decimal,
// clamped to [0, 100].
func Confidence(p float32) float64 {
	c := math.Round(float64(p)*1000) / 10
	switch {
	case c < 0 || math.IsNaN(c):
		return 0
	case c > 100:
		return 100
	}
	return c
}
