// Package recognizer is the decision path shared by every front end:
// bitmap bytes in, digit and confidence out.
package recognizer

import (
	"crypto/sha256"
	"fmt"
	"image"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/preprocess"
	"github.com/Brownie44l1/digit-api/internal/tensor"
)

const (
	// foregroundThreshold marks a sample as ink.
	foregroundThreshold = 0.5
	// maxForeground is the ink share above which the bitmap probably has
	// dark strokes on a light background.
	maxForeground = 0.5
)

// Recognizer preprocesses, runs the network and scores. The forwarder is
// injected once and never replaced.
type Recognizer struct {
	fwd    model.Forwarder
	pre    *preprocess.Preprocessor
	cache  *lru.Cache[[sha256.Size]byte, model.Prediction]
	logger *zap.SugaredLogger
}

// Options tune a Recognizer.
type Options struct {
	InputSize int // side of the preprocessed bitmap
	CacheSize int // predictions kept per payload hash; 0 disables
}

// New builds a Recognizer. The forwarder's input width must equal
// InputSize squared.
func New(fwd model.Forwarder, opts Options, logger *zap.SugaredLogger) (*Recognizer, error) {
	if opts.InputSize <= 0 {
		opts.InputSize = model.InputSize
	}
	if w := opts.InputSize * opts.InputSize; w != fwd.InputWidth() {
		return nil, &model.ShapeMismatchError{Want: fwd.InputWidth(), Got: w}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := &Recognizer{
		fwd:    fwd,
		pre:    preprocess.New(opts.InputSize),
		logger: logger,
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[[sha256.Size]byte, model.Prediction](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create prediction cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// PredictBytes decodes an encoded bitmap and classifies it. Identical
// payloads are served from the cache when one is configured.
func (r *Recognizer) PredictBytes(data []byte) (model.Prediction, error) {
	var key [sha256.Size]byte
	if r.cache != nil {
		key = sha256.Sum256(data)
		if p, ok := r.cache.Get(key); ok {
			return p, nil
		}
	}

	img, format, err := preprocess.Decode(data)
	if err != nil {
		return model.Prediction{}, err
	}
	r.logger.Debugw("decoded image", "format", format, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	p, err := r.PredictImage(img)
	if err != nil {
		return model.Prediction{}, err
	}
	if r.cache != nil {
		r.cache.Add(key, p)
	}
	return p, nil
}

// PredictImage classifies an already decoded bitmap.
func (r *Recognizer) PredictImage(img image.Image) (model.Prediction, error) {
	x, err := r.pre.Tensor(img)
	if err != nil {
		return model.Prediction{}, err
	}
	return r.PredictTensor(x)
}

// PredictTensor classifies a preprocessed tensor.
func (r *Recognizer) PredictTensor(x tensor.Tensor) (model.Prediction, error) {
	if fg := preprocess.ForegroundFraction(x, foregroundThreshold); fg > maxForeground {
		r.logger.Warnw("bitmap is mostly bright, strokes may have inverted polarity", "foreground", fg)
	}

	probs, err := r.fwd.Forward(x)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("forward pass: %w", err)
	}
	return model.Score(probs), nil
}

// InputSize is the side of the bitmap the network consumes.
func (r *Recognizer) InputSize() int { return r.pre.Size() }
