package recognizer

import (
	"bytes"
	"errors"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Brownie44l1/digit-api/internal/canvas"
	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/preprocess"
	"github.com/Brownie44l1/digit-api/internal/tensor"
)

// inkEngine votes for digit 7 in proportion to total ink.
func inkEngine(t *testing.T) *model.Engine {
	t.Helper()
	k1 := make([]float32, model.InputWidth*model.NumClasses)
	for i := 0; i < model.InputWidth; i++ {
		k1[i*model.NumClasses+7] = 1
	}
	k2 := make([]float32, model.NumClasses*model.NumClasses)
	for i := 0; i < model.NumClasses; i++ {
		k2[i*model.NumClasses+i] = 1
	}
	w := func(data []float32, shape ...int) tensor.Tensor {
		x, err := tensor.New(data, shape...)
		if err != nil {
			t.Fatal(err)
		}
		return x
	}
	m, err := model.NewModel(
		model.LayerWeights{Name: "dense1", Kernel: w(k1, model.InputWidth, model.NumClasses), Bias: w(make([]float32, model.NumClasses)), Activation: model.ReLU},
		model.LayerWeights{Name: "dense2", Kernel: w(k2, model.NumClasses, model.NumClasses), Bias: w(make([]float32, model.NumClasses)), Activation: model.Softmax},
	)
	if err != nil {
		t.Fatal(err)
	}
	e, err := model.NewEngine(m)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

type countingForwarder struct {
	model.Forwarder
	calls atomic.Int32
}

func (c *countingForwarder) Forward(x tensor.Tensor) (tensor.Tensor, error) {
	c.calls.Add(1)
	return c.Forwarder.Forward(x)
}

func drawnDigit(t *testing.T) []byte {
	t.Helper()
	c := canvas.Default()
	for y := 60; y < 220; y += 4 {
		c.Stamp(140, y)
	}
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPredictBytes(t *testing.T) {
	r, err := New(inkEngine(t), Options{InputSize: 28}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := r.PredictBytes(drawnDigit(t))
	if err != nil {
		t.Fatalf("PredictBytes: %v", err)
	}
	if p.Digit != 7 {
		t.Fatalf("expected 7, got %d", p.Digit)
	}
	if p.Confidence <= 10 || p.Confidence > 100 {
		t.Fatalf("unexpected confidence %v", p.Confidence)
	}
}

func TestBlankCanvasIsUniform(t *testing.T) {
	r, err := New(inkEngine(t), Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := r.PredictImage(canvas.Default().Bitmap())
	if err != nil {
		t.Fatal(err)
	}
	if p.Digit != 0 || p.Confidence != 10 {
		t.Fatalf("blank canvas: got %+v, want digit 0 at 10%%", p)
	}
}

func TestCacheSkipsForwardPass(t *testing.T) {
	fwd := &countingForwarder{Forwarder: inkEngine(t)}
	r, err := New(fwd, Options{InputSize: 28, CacheSize: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	data := drawnDigit(t)
	first, err := r.PredictBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.PredictBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("cached prediction differs: %+v vs %+v", first, second)
	}
	if n := fwd.calls.Load(); n != 1 {
		t.Fatalf("expected 1 forward pass, got %d", n)
	}
}

func TestDecodeErrorPropagates(t *testing.T) {
	r, err := New(inkEngine(t), Options{CacheSize: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.PredictBytes([]byte("nope"))
	var de *preprocess.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestInputSizeMustMatchModel(t *testing.T) {
	_, err := New(inkEngine(t), Options{InputSize: 32}, nil)
	var sm *model.ShapeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
}

func TestNativeResolutionUpload(t *testing.T) {
	c := canvas.New(28, 3)
	c.Stamp(14, 14)
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Bitmap()); err != nil {
		t.Fatal(err)
	}
	r, err := New(inkEngine(t), Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p, err := r.PredictBytes(buf.Bytes()); err != nil || p.Digit != 7 {
		t.Fatalf("got %+v, %v", p, err)
	}
}

func TestRecognizerSharedAcrossGoroutines(t *testing.T) {
	r, err := New(inkEngine(t), Options{InputSize: 28, CacheSize: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	payloads := [][]byte{drawnDigit(t), []byte("nope")}
	blank := canvas.Default()
	var buf bytes.Buffer
	if err := blank.EncodePNG(&buf); err != nil {
		t.Fatal(err)
	}
	payloads = append(payloads, buf.Bytes())

	want := make([]model.Prediction, len(payloads))
	for i, data := range payloads {
		want[i], _ = r.PredictBytes(data)
	}

	const workers = 32
	var wg sync.WaitGroup
	got := make([][]model.Prediction, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for n := 0; n < 20; n++ {
				i := (w + n) % len(payloads)
				p, _ := r.PredictBytes(payloads[i])
				if p != want[i] {
					got[w] = append(got[w], p)
				}
			}
		}(w)
	}
	wg.Wait()

	for w, bad := range got {
		if len(bad) > 0 {
			t.Fatalf("worker %d saw diverging predictions %v, want one of %v", w, bad, want)
		}
	}
	if want[0].Digit != 7 || want[2].Confidence != 10 {
		t.Fatalf("unexpected baseline predictions %v", want)
	}
}
