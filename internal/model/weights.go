package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Brownie44l1/digit-api/internal/tensor"
)

// layerRecord is one entry of the weight artifact:
//
//	"dense1": {"kernel": [...], "bias": [...], "shape": [784, 128]}
type layerRecord struct {
	Kernel []float32 `json:"kernel"`
	Bias   []float32 `json:"bias"`
	Shape  []int     `json:"shape"`
}

// Loader parses weight artifacts into models.
type Loader struct {
	// InputWidth is the width the first layer must accept. Zero skips the
	// check.
	InputWidth int
}

// DefaultLoader expects a first layer fed by a 28x28 bitmap.
var DefaultLoader = Loader{InputWidth: InputWidth}

// LoadFile reads and parses the artifact at path with DefaultLoader.
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}
	return DefaultLoader.Parse(data)
}

// Load parses an artifact from r.
func (l Loader) Load(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}
	return l.Parse(data)
}

// Parse decodes and validates an artifact. Layers are keyed dense1..denseN
// and applied in that order; every layer but the last uses ReLU, the last
// uses softmax. Loading is all-or-nothing.
func (l Loader) Parse(data []byte) (*Model, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, &FormatError{Layer: -1, Detail: "invalid artifact", Err: err}
	}

	keys, err := layerKeys(raw)
	if err != nil {
		return nil, err
	}

	layers := make([]LayerWeights, 0, len(keys))
	for i, key := range keys {
		var rec layerRecord
		if err := json.Unmarshal(raw[key], &rec); err != nil {
			return nil, &FormatError{Layer: i, Name: key, Detail: "invalid layer record", Err: err}
		}
		act := ReLU
		if i == len(keys)-1 {
			act = Softmax
		}
		lw, err := rec.layer(i, key, act)
		if err != nil {
			return nil, err
		}
		layers = append(layers, lw)
	}

	if l.InputWidth > 0 && layers[0].InputWidth() != l.InputWidth {
		return nil, &FormatError{Layer: 0, Name: keys[0], Detail: "input width does not match image width", Want: l.InputWidth, Got: layers[0].InputWidth()}
	}
	return NewModel(layers...)
}

func (rec layerRecord) layer(i int, key string, act Activation) (LayerWeights, error) {
	if len(rec.Shape) != 2 {
		return LayerWeights{}, &FormatError{Layer: i, Name: key, Detail: "shape must be [inputWidth, outputWidth]", Want: 2, Got: len(rec.Shape)}
	}
	in, out := rec.Shape[0], rec.Shape[1]
	if in <= 0 || out <= 0 {
		return LayerWeights{}, &FormatError{Layer: i, Name: key, Detail: fmt.Sprintf("shape %v has a non-positive dimension", rec.Shape)}
	}
	if len(rec.Kernel) != in*out {
		return LayerWeights{}, &FormatError{Layer: i, Name: key, Detail: fmt.Sprintf("kernel length for shape %v", rec.Shape), Want: in * out, Got: len(rec.Kernel)}
	}
	if len(rec.Bias) != out {
		return LayerWeights{}, &FormatError{Layer: i, Name: key, Detail: "bias length", Want: out, Got: len(rec.Bias)}
	}
	kernel, err := tensor.Wrap(rec.Kernel, in, out)
	if err != nil {
		return LayerWeights{}, &FormatError{Layer: i, Name: key, Detail: "kernel", Err: err}
	}
	bias, err := tensor.Wrap(rec.Bias, out)
	if err != nil {
		return LayerWeights{}, &FormatError{Layer: i, Name: key, Detail: "bias", Err: err}
	}
	return LayerWeights{Name: key, Kernel: kernel, Bias: bias, Activation: act}, nil
}

// layerKeys returns dense1..denseN in order, rejecting gaps and unknown keys.
func layerKeys(raw map[string]json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, &FormatError{Layer: -1, Detail: "no dense layers"}
	}
	indices := make([]int, 0, len(raw))
	for key := range raw {
		n, err := strconv.Atoi(strings.TrimPrefix(key, "dense"))
		if err != nil || n < 1 || key != "dense"+strconv.Itoa(n) {
			return nil, &FormatError{Layer: -1, Detail: fmt.Sprintf("unexpected entry %q", key)}
		}
		indices = append(indices, n)
	}
	sort.Ints(indices)
	keys := make([]string, len(indices))
	for i, n := range indices {
		if n != i+1 {
			return nil, &FormatError{Layer: i, Name: "dense" + strconv.Itoa(i+1), Detail: "missing layer"}
		}
		keys[i] = "dense" + strconv.Itoa(n)
	}
	return keys, nil
}
