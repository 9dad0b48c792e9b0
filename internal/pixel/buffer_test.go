package pixel

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesDimensions(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		pixels        int
		wantErr       bool
	}{
		{"matching", 2, 3, 6, false},
		{"empty", 0, 0, 0, false},
		{"zero height", 4, 0, 0, false},
		{"negative width", -1, 2, 0, true},
		{"too few pixels", 2, 2, 3, true},
		{"too many pixels", 1, 1, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.width, tt.height, make([]Pixel, tt.pixels))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDimensions)
				assert.Nil(t, b)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.width, b.Width())
			assert.Equal(t, tt.height, b.Height())
			assert.Equal(t, tt.pixels, b.Len())
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	src := []Pixel{Opaque(1, 2, 3)}
	b, err := New(1, 1, src)
	require.NoError(t, err)

	src[0] = Opaque(9, 9, 9)
	assert.Equal(t, Opaque(1, 2, 3), b.At(0, 0))

	out := b.Pixels()
	out[0] = Opaque(7, 7, 7)
	assert.Equal(t, Opaque(1, 2, 3), b.At(0, 0))
}

func TestAtIsRowMajor(t *testing.T) {
	b, err := New(2, 2, []Pixel{
		Opaque(1, 0, 0), Opaque(2, 0, 0),
		Opaque(3, 0, 0), Opaque(4, 0, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, uint8(2), b.At(1, 0).R)
	assert.Equal(t, uint8(3), b.At(0, 1).R)
}

func TestEqual(t *testing.T) {
	a, _ := Filled(2, 1, Opaque(5, 5, 5))
	b, _ := Filled(2, 1, Opaque(5, 5, 5))
	c, _ := Filled(1, 2, Opaque(5, 5, 5))
	d, _ := Filled(2, 1, Opaque(5, 5, 6))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(nil))
}

func TestImageConversion(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 20, 13, 22))
	src.Set(10, 20, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	src.Set(12, 21, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	b := FromImage(src)
	require.Equal(t, 3, b.Width())
	require.Equal(t, 2, b.Height())
	assert.Equal(t, Pixel{A: 255, R: 200, G: 100, B: 50}, b.At(0, 0))
	assert.Equal(t, Pixel{A: 255, R: 1, G: 2, B: 3}, b.At(2, 1))
	assert.Equal(t, Pixel{}, b.At(1, 0))

	back := FromImage(b.ToNRGBA())
	assert.True(t, b.Equal(back))
}

func TestSamplePattern(t *testing.T) {
	b := SamplePattern(200, 100)
	require.Equal(t, 200*100, b.Len())

	assert.Equal(t, Opaque(40, 80, 120), b.At(0, 0))
	assert.Equal(t, Opaque(139, 80, 219), b.At(99, 0))
	assert.Equal(t, Opaque(40, 80, 120), b.At(100, 0))
	assert.Equal(t, Opaque(45, 87, 132), b.At(5, 7))
}
