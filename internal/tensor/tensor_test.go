package tensor

import (
	"errors"
	"testing"
)

func TestNewValidatesShape(t *testing.T) {
	cases := []struct {
		name  string
		n     int
		shape []int
		ok    bool
	}{
		{"flat", 6, nil, true},
		{"matrix", 6, []int{2, 3}, true},
		{"image", 784, []int{1, 28, 28}, true},
		{"product mismatch", 6, []int{4, 2}, false},
		{"zero dim", 0, []int{0, 3}, false},
		{"negative dim", 6, []int{-2, -3}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := New(make([]float32, c.n), c.shape...)
			if c.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !c.ok && !errors.Is(err, ErrInvalidShape) {
				t.Fatalf("expected ErrInvalidShape, got %v", err)
			}
		})
	}
}

func TestTensorDoesNotAliasCaller(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	shape := []int{2, 2}
	x, err := New(src, shape...)
	if err != nil {
		t.Fatal(err)
	}
	src[0] = 99
	shape[0] = 7
	if x.At(0) != 1 {
		t.Fatalf("New aliased its input: %v", x.At(0))
	}
	if s := x.Shape(); s[0] != 2 {
		t.Fatalf("New aliased its shape: %v", s)
	}

	v := x.Values()
	v[1] = 42
	s := x.Shape()
	s[1] = 9
	if x.At(1) != 2 || x.Shape()[1] != 2 {
		t.Fatal("accessors leaked internal storage")
	}
}

func TestReshapeAndEqual(t *testing.T) {
	x, err := New([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	y, err := x.Reshape(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if y.Equal(x) {
		t.Fatal("different shapes compare equal")
	}
	z, _ := y.Reshape(2, 3)
	if !z.Equal(x) {
		t.Fatal("round-tripped reshape not equal")
	}
	if _, err := x.Reshape(4, 2); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("expected ErrInvalidShape, got %v", err)
	}

	zeros, err := Zeros(1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if zeros.Len() != 10 || zeros.At(9) != 0 {
		t.Fatalf("unexpected zeros tensor %v", zeros)
	}
}
