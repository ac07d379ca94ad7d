// Package canvas accumulates brush strokes into a grayscale bitmap: white
// ink on a black background, the polarity the digit network was trained on.
// Front ends call Stamp for every pointer event and hand Bitmap to the
// recognizer when the user asks for a prediction.
package canvas

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

const (
	DefaultSize   = 280
	DefaultRadius = 10
)

// Canvas is a square drawing surface. It is not safe for concurrent use.
type Canvas struct {
	img    *image.Gray
	radius int
	inked  bool
}

// New returns a black canvas of size x size with the given brush radius.
func New(size, radius int) *Canvas {
	return &Canvas{img: image.NewGray(image.Rect(0, 0, size, size)), radius: radius}
}

// Default returns a 280x280 canvas with a radius 10 brush.
func Default() *Canvas { return New(DefaultSize, DefaultRadius) }

// Size is the side of the canvas in pixels.
func (c *Canvas) Size() int { return c.img.Bounds().Dx() }

// Stamp paints a filled disk centred on (x, y), clipped to the canvas.
func (c *Canvas) Stamp(x, y int) {
	r := c.radius
	bounds := c.img.Bounds()
	area := image.Rect(x-r, y-r, x+r+1, y+r+1).Intersect(bounds)
	for py := area.Min.Y; py < area.Max.Y; py++ {
		for px := area.Min.X; px < area.Max.X; px++ {
			dx, dy := px-x, py-y
			if dx*dx+dy*dy <= r*r {
				c.img.SetGray(px, py, color.Gray{Y: 255})
				c.inked = true
			}
		}
	}
}

// Stroke stamps every point of a pointer drag.
func (c *Canvas) Stroke(points ...image.Point) {
	for _, p := range points {
		c.Stamp(p.X, p.Y)
	}
}

// Replay stamps recorded strokes read as JSON, one array of [x, y]
// points per pointer drag: [[[140,60],[140,64]],[[100,100]]].
func (c *Canvas) Replay(r io.Reader) error {
	var strokes [][][]int
	if err := json.NewDecoder(r).Decode(&strokes); err != nil {
		return fmt.Errorf("canvas: invalid stroke file: %w", err)
	}
	for i, stroke := range strokes {
		points := make([]image.Point, 0, len(stroke))
		for j, pt := range stroke {
			if len(pt) != 2 {
				return fmt.Errorf("canvas: stroke %d point %d has %d coordinates, want 2", i, j, len(pt))
			}
			points = append(points, image.Pt(pt[0], pt[1]))
		}
		c.Stroke(points...)
	}
	return nil
}

// Clear resets the canvas to black.
func (c *Canvas) Clear() {
	for i := range c.img.Pix {
		c.img.Pix[i] = 0
	}
	c.inked = false
}

// Empty reports whether nothing has been drawn since the last Clear.
func (c *Canvas) Empty() bool { return !c.inked }

// Bitmap returns a copy of the current drawing.
func (c *Canvas) Bitmap() *image.Gray {
	out := image.NewGray(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out
}

// EncodePNG writes the drawing as a grayscale PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	return png.Encode(w, c.img)
}

// DataURI returns the drawing the way a browser canvas exports it.
func (c *Canvas) DataURI() (string, error) {
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
