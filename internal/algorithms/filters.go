// Brightness, contrast, saturation and gamma adjustments
package algorithms

import (
	"context"
	"math"

	"image-filter-pipeline/internal/pixel"
)

// Stage is one filter's slot in the fixed pipeline order.
type Stage struct {
	Kind  Kind
	Apply func(ctx context.Context, in *pixel.Buffer, p Parameters, workers int) (*pixel.Buffer, error)
}

// Stages returns the filters in the order they are always applied:
// brightness, contrast, saturation, gamma.
func Stages() []Stage {
	return []Stage{
		{Kind: Brightness, Apply: func(ctx context.Context, in *pixel.Buffer, p Parameters, workers int) (*pixel.Buffer, error) {
			return ApplyBrightness(ctx, in, p.Brightness, workers)
		}},
		{Kind: Contrast, Apply: func(ctx context.Context, in *pixel.Buffer, p Parameters, workers int) (*pixel.Buffer, error) {
			return ApplyContrast(ctx, in, p.Contrast, workers)
		}},
		{Kind: Saturation, Apply: func(ctx context.Context, in *pixel.Buffer, p Parameters, workers int) (*pixel.Buffer, error) {
			return ApplySaturation(ctx, in, p.Saturation, workers)
		}},
		{Kind: Gamma, Apply: func(ctx context.Context, in *pixel.Buffer, p Parameters, workers int) (*pixel.Buffer, error) {
			return ApplyGamma(ctx, in, p.Gamma, workers)
		}},
	}
}

// ApplyBrightness adds b to every color channel.
func ApplyBrightness(ctx context.Context, in *pixel.Buffer, b int, workers int) (*pixel.Buffer, error) {
	return pixel.Map(ctx, in, workers, func(p pixel.Pixel) pixel.Pixel {
		return pixel.Pixel{
			A: p.A,
			R: clampInt(int(p.R) + b),
			G: clampInt(int(p.G) + b),
			B: clampInt(int(p.B) + b),
		}
	})
}

// AverageBrightness is the mean over all pixels of (R+G+B)/3, using
// truncating integer division at both steps. An empty buffer averages to 0.
func AverageBrightness(ctx context.Context, in *pixel.Buffer, workers int) (int, error) {
	sum, err := pixel.Sum(ctx, in, workers, func(p pixel.Pixel) int64 {
		return int64(pixelGray(p))
	})
	if err != nil {
		return 0, err
	}
	if in.Len() == 0 {
		return 0, nil
	}
	return int(sum / int64(in.Len())), nil
}

// ApplyContrast stretches channels around the average brightness of in.
func ApplyContrast(ctx context.Context, in *pixel.Buffer, c int, workers int) (*pixel.Buffer, error) {
	avg, err := AverageBrightness(ctx, in, workers)
	if err != nil {
		return nil, err
	}
	factor := stretchFactor(c)
	center := float64(avg)

	return pixel.Map(ctx, in, workers, func(p pixel.Pixel) pixel.Pixel {
		return pixel.Pixel{
			A: p.A,
			R: stretch(p.R, factor, center),
			G: stretch(p.G, factor, center),
			B: stretch(p.B, factor, center),
		}
	})
}

// ApplySaturation stretches channels around each pixel's own gray level.
func ApplySaturation(ctx context.Context, in *pixel.Buffer, s int, workers int) (*pixel.Buffer, error) {
	factor := stretchFactor(s)

	return pixel.Map(ctx, in, workers, func(p pixel.Pixel) pixel.Pixel {
		center := float64(pixelGray(p))
		return pixel.Pixel{
			A: p.A,
			R: stretch(p.R, factor, center),
			G: stretch(p.G, factor, center),
			B: stretch(p.B, factor, center),
		}
	})
}

// ApplyGamma maps every channel through (v/255)^g * 255. g must be
// positive.
func ApplyGamma(ctx context.Context, in *pixel.Buffer, g float64, workers int) (*pixel.Buffer, error) {
	var lut [256]uint8
	for v := range lut {
		lut[v] = clampFloat(math.Pow(float64(v)/255.0, g) * 255)
	}

	return pixel.Map(ctx, in, workers, func(p pixel.Pixel) pixel.Pixel {
		return pixel.Pixel{A: p.A, R: lut[p.R], G: lut[p.G], B: lut[p.B]}
	})
}

func pixelGray(p pixel.Pixel) int {
	return (int(p.R) + int(p.G) + int(p.B)) / 3
}

// stretchFactor computes (255+v)/(255-v) with v held inside the open
// interval (-255, 255).
func stretchFactor(v int) float64 {
	v = min(max(v, -maxFactorParam), maxFactorParam)
	return (255.0 + float64(v)) / (255.0 - float64(v))
}

func stretch(v uint8, factor, center float64) uint8 {
	return clampFloat(factor*(float64(v)-center) + center)
}

func clampInt(v int) uint8 {
	return uint8(min(max(v, 0), 255))
}

// clampFloat truncates toward zero, then saturates to [0,255].
func clampFloat(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
