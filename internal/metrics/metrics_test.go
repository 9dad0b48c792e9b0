package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-filter-pipeline/internal/pixel"
)

func filled(t *testing.T, w, h int, p pixel.Pixel) *pixel.Buffer {
	t.Helper()
	b, err := pixel.Filled(w, h, p)
	require.NoError(t, err)
	return b
}

func TestIdenticalImages(t *testing.T) {
	a := pixel.SamplePattern(20, 10)
	e := NewEvaluator()

	all := e.CalculateAll(a, a)
	assert.Equal(t, 0.0, all["mse"])
	assert.True(t, math.IsInf(all["psnr"], 1))
	assert.InDelta(t, 1.0, all["ssim"], 1e-6)
	assert.Equal(t, 0.0, all["luminance_shift"])
}

func TestUniformOffset(t *testing.T) {
	a := filled(t, 3, 3, pixel.Opaque(100, 100, 100))
	b := filled(t, 3, 3, pixel.Opaque(105, 105, 105))
	e := NewEvaluator()

	mse, err := e.Calculate("mse", a, b)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, mse, 1e-9)

	psnr, err := e.Calculate("psnr", a, b)
	require.NoError(t, err)
	assert.InDelta(t, 34.1514, psnr, 1e-4)

	// Flat images have no structure term, only the luminance term
	// (2*100*105 + c1) / (100^2 + 105^2 + c1).
	ssim, err := e.Calculate("ssim", a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.998811, ssim, 1e-4)

	shift, err := e.Calculate("luminance_shift", a, b)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, shift, 1e-9)
}

func TestMismatchedImages(t *testing.T) {
	e := NewEvaluator()
	a := filled(t, 2, 2, pixel.Opaque(1, 1, 1))
	b := filled(t, 1, 4, pixel.Opaque(1, 1, 1))
	empty := filled(t, 0, 0, pixel.Pixel{})

	_, err := e.Calculate("psnr", a, b)
	assert.Error(t, err)
	_, err = e.Calculate("mse", a, empty)
	assert.Error(t, err)
	_, err = e.Calculate("sharpness", a, a)
	assert.Error(t, err)

	assert.Empty(t, e.CalculateAll(a, b))
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"luminance_shift", "mse", "psnr", "ssim"}, NewEvaluator().Names())
}

func TestSSIMDropsWithStructureLoss(t *testing.T) {
	a := pixel.SamplePattern(40, 40)
	flat := filled(t, 40, 40, pixel.Opaque(128, 128, 128))

	same, err := NewSSIM().Calculate(a, a)
	require.NoError(t, err)
	lost, err := NewSSIM().Calculate(a, flat)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, same, 1e-6)
	assert.Less(t, lost, same)
}
