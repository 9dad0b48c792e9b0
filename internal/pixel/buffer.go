// Pixel buffer shared by every filter stage
package pixel

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ErrInvalidDimensions is returned for negative sizes or a pixel slice
// whose length does not match width*height.
var ErrInvalidDimensions = errors.New("invalid buffer dimensions")

// Pixel holds one ARGB sample, 8 bits per channel.
type Pixel struct {
	A, R, G, B uint8
}

// Opaque returns a fully opaque pixel.
func Opaque(r, g, b uint8) Pixel {
	return Pixel{A: 255, R: r, G: g, B: b}
}

// Buffer is an immutable row-major grid of pixels.
// Filters never write into an existing Buffer; they allocate a new one.
type Buffer struct {
	width  int
	height int
	pix    []Pixel
}

// New validates the dimensions and copies pix into a new Buffer.
func New(width, height int, pix []Pixel) (*Buffer, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("%w: %dx%d with %d pixels", ErrInvalidDimensions, width, height, len(pix))
	}

	owned := make([]Pixel, len(pix))
	copy(owned, pix)
	return &Buffer{width: width, height: height, pix: owned}, nil
}

// Filled returns a width x height buffer with every pixel set to p.
func Filled(width, height int, p Pixel) (*Buffer, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	b := alloc(width, height)
	for i := range b.pix {
		b.pix[i] = p
	}
	return b, nil
}

func alloc(width, height int) *Buffer {
	return &Buffer{width: width, height: height, pix: make([]Pixel, width*height)}
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

// Len returns the number of pixels.
func (b *Buffer) Len() int { return len(b.pix) }

// Empty reports whether the buffer has zero area.
func (b *Buffer) Empty() bool { return len(b.pix) == 0 }

// At returns the pixel at column x, row y.
func (b *Buffer) At(x, y int) Pixel {
	return b.pix[y*b.width+x]
}

// Pixels returns a copy of the pixel data in row-major order.
func (b *Buffer) Pixels() []Pixel {
	out := make([]Pixel, len(b.pix))
	copy(out, b.pix)
	return out
}

// Validate checks the internal invariants. A zero Buffer value passes.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidDimensions)
	}
	if b.width < 0 || b.height < 0 || len(b.pix) != b.width*b.height {
		return fmt.Errorf("%w: %dx%d with %d pixels", ErrInvalidDimensions, b.width, b.height, len(b.pix))
	}
	return nil
}

// Equal reports whether both buffers have the same size and pixels.
func (b *Buffer) Equal(o *Buffer) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.width != o.width || b.height != o.height || len(b.pix) != len(o.pix) {
		return false
	}
	for i := range b.pix {
		if b.pix[i] != o.pix[i] {
			return false
		}
	}
	return true
}

func (b *Buffer) String() string {
	return fmt.Sprintf("%dx%d", b.width, b.height)
}

// FromImage converts any image.Image into a Buffer. Colors are
// un-premultiplied through an NRGBA intermediate.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}

	w, h := bounds.Dx(), bounds.Dy()
	out := alloc(w, h)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := 0; x < w; x++ {
			s := row[x*4 : x*4+4]
			out.pix[y*w+x] = Pixel{A: s[3], R: s[0], G: s[1], B: s[2]}
		}
	}
	return out
}

// ToNRGBA renders the buffer as a standard library image.
func (b *Buffer) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.width, b.height))
	for i, p := range b.pix {
		img.Pix[i*4+0] = p.R
		img.Pix[i*4+1] = p.G
		img.Pix[i*4+2] = p.B
		img.Pix[i*4+3] = p.A
	}
	return img
}
