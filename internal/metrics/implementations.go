package metrics

import (
	"errors"
	"fmt"
	"math"

	"image-filter-pipeline/internal/pixel"
)

var errEmpty = errors.New("empty images")

func checkPair(original, processed *pixel.Buffer) error {
	if original == nil || processed == nil || original.Empty() || processed.Empty() {
		return errEmpty
	}
	if original.Width() != processed.Width() || original.Height() != processed.Height() {
		return fmt.Errorf("image dimensions mismatch: %v vs %v", original, processed)
	}
	return nil
}

// MSE is the mean squared error over the R, G and B channels.
type MSE struct{}

func NewMSE() *MSE { return &MSE{} }

func (m *MSE) Calculate(original, processed *pixel.Buffer) (float64, error) {
	if err := checkPair(original, processed); err != nil {
		return 0, err
	}
	return meanSquaredError(original, processed), nil
}

func (m *MSE) GetName() string      { return "Mean Squared Error" }
func (m *MSE) IsHigherBetter() bool { return false }

func meanSquaredError(a, b *pixel.Buffer) float64 {
	var sum float64
	for y := 0; y < a.Height(); y++ {
		for x := 0; x < a.Width(); x++ {
			p, q := a.At(x, y), b.At(x, y)
			dr := float64(p.R) - float64(q.R)
			dg := float64(p.G) - float64(q.G)
			db := float64(p.B) - float64(q.B)
			sum += dr*dr + dg*dg + db*db
		}
	}
	return sum / float64(a.Len()*3)
}

// PSNR implements Peak Signal-to-Noise Ratio metric
type PSNR struct{}

func NewPSNR() *PSNR { return &PSNR{} }

func (p *PSNR) Calculate(original, processed *pixel.Buffer) (float64, error) {
	if err := checkPair(original, processed); err != nil {
		return 0, err
	}

	mse := meanSquaredError(original, processed)
	if mse == 0 {
		return math.Inf(1), nil // Perfect match
	}
	return 20 * math.Log10(255.0/math.Sqrt(mse)), nil
}

func (p *PSNR) GetName() string      { return "Peak Signal-to-Noise Ratio" }
func (p *PSNR) IsHigherBetter() bool { return true }

// LuminanceShift is the change in mean gray level, processed minus original.
type LuminanceShift struct{}

func NewLuminanceShift() *LuminanceShift { return &LuminanceShift{} }

func (l *LuminanceShift) Calculate(original, processed *pixel.Buffer) (float64, error) {
	if err := checkPair(original, processed); err != nil {
		return 0, err
	}
	return meanGray(processed) - meanGray(original), nil
}

func (l *LuminanceShift) GetName() string      { return "Luminance Shift" }
func (l *LuminanceShift) IsHigherBetter() bool { return false }

func meanGray(b *pixel.Buffer) float64 {
	var sum float64
	for _, p := range b.Pixels() {
		sum += (float64(p.R) + float64(p.G) + float64(p.B)) / 3
	}
	return sum / float64(b.Len())
}
