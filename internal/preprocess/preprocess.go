// Package preprocess turns encoded bitmaps into the flat tensor the digit
// network consumes: decode, grayscale, resample to S x S, scale to [0, 1].
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/Brownie44l1/digit-api/internal/tensor"
)

// MaxIntensity is the brightest 8-bit sample.
const MaxIntensity = 255

// DecodeError means an image payload could not be turned into a bitmap.
// Callers answer it with "unable to decode image".
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return "decode image: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Preprocessor resamples bitmaps to a fixed square resolution.
type Preprocessor struct {
	size int
}

// New returns a Preprocessor producing size x size tensors.
func New(size int) *Preprocessor {
	return &Preprocessor{size: size}
}

// Size is the side of the output bitmap.
func (p *Preprocessor) Size() int { return p.size }

// Decode parses PNG, JPEG or GIF bytes.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &DecodeError{Reason: "empty payload"}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Reason: "unsupported or corrupt encoding", Err: err}
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", &DecodeError{Reason: fmt.Sprintf("zero-area image %dx%d", b.Dx(), b.Dy())}
	}
	return img, format, nil
}

// FromBytes decodes data and converts it with Tensor.
func (p *Preprocessor) FromBytes(data []byte) (tensor.Tensor, error) {
	img, _, err := Decode(data)
	if err != nil {
		return tensor.Tensor{}, err
	}
	return p.Tensor(img)
}

// Tensor converts img into a [1, S, S] tensor of intensities in [0, 1],
// row-major.
func (p *Preprocessor) Tensor(img image.Image) (tensor.Tensor, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return tensor.Tensor{}, &DecodeError{Reason: fmt.Sprintf("zero-area image %dx%d", b.Dx(), b.Dy())}
	}

	gray := Grayscale(img)
	var resized image.Image = gray
	if b.Dx() != p.size || b.Dy() != p.size {
		resized = resize.Resize(uint(p.size), uint(p.size), gray, resize.Bilinear)
	}

	values := make([]float32, 0, p.size*p.size)
	rb := resized.Bounds()
	for y := rb.Min.Y; y < rb.Max.Y; y++ {
		for x := rb.Min.X; x < rb.Max.X; x++ {
			values = append(values, float32(intensity(resized, x, y))/MaxIntensity)
		}
	}
	return tensor.Wrap(values, 1, p.size, p.size)
}

func intensity(img image.Image, x, y int) uint8 {
	if g, ok := img.(*image.Gray); ok {
		return g.GrayAt(x, y).Y
	}
	return Luminance(img.At(x, y))
}

// Grayscale copies img into an 8-bit gray bitmap anchored at the origin
// using Luminance.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return out
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = Luminance(img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// Luminance is ITU-R BT.601 luma on 8-bit channels in 16-bit fixed point:
//
//	L = (19595*R + 38470*G + 7471*B + 1<<15) >> 16
//
// Transparent pixels count as black because RGBA is alpha-premultiplied.
func Luminance(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	r8, g8, b8 := r>>8, g>>8, b>>8
	return uint8((19595*r8 + 38470*g8 + 7471*b8 + 1<<15) >> 16)
}

// ForegroundFraction is the share of samples brighter than threshold. A
// bright-on-dark digit usually covers well under half of the bitmap.
func ForegroundFraction(t tensor.Tensor, threshold float32) float64 {
	if t.Len() == 0 {
		return 0
	}
	n := 0
	for i := 0; i < t.Len(); i++ {
		if t.At(i) > threshold {
			n++
		}
	}
	return float64(n) / float64(t.Len())
}
