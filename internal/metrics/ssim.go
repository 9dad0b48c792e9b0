package metrics

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"image-filter-pipeline/internal/pixel"
)

// SSIM is the mean structural similarity of the grayscale images, using
// an 11x11 Gaussian window with sigma 1.5.
type SSIM struct{}

func NewSSIM() *SSIM { return &SSIM{} }

func (s *SSIM) Calculate(original, processed *pixel.Buffer) (float64, error) {
	if err := checkPair(original, processed); err != nil {
		return 0, err
	}

	gray1, err := grayMat(original)
	if err != nil {
		return 0, err
	}
	defer gray1.Close()

	gray2, err := grayMat(processed)
	if err != nil {
		return 0, err
	}
	defer gray2.Close()

	return calculateSSIM(gray1, gray2), nil
}

func (s *SSIM) GetName() string      { return "SSIM" }
func (s *SSIM) IsHigherBetter() bool { return true }

func grayMat(b *pixel.Buffer) (gocv.Mat, error) {
	bgr, err := gocv.ImageToMatRGB(b.ToNRGBA())
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert image: %w", err)
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	if err := gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray); err != nil {
		gray.Close()
		return gocv.Mat{}, fmt.Errorf("failed to convert to grayscale: %w", err)
	}
	return gray, nil
}

func calculateSSIM(img1, img2 gocv.Mat) float64 {
	const (
		c1 = 6.5025  // (0.01 * 255)^2
		c2 = 58.5225 // (0.03 * 255)^2
	)

	window := image.Pt(11, 11)
	blur := func(src gocv.Mat, dst *gocv.Mat) {
		gocv.GaussianBlur(src, dst, window, 1.5, 1.5, gocv.BorderDefault)
	}

	f1 := gocv.NewMat()
	defer f1.Close()
	img1.ConvertTo(&f1, gocv.MatTypeCV32F)

	f2 := gocv.NewMat()
	defer f2.Close()
	img2.ConvertTo(&f2, gocv.MatTypeCV32F)

	mu1 := gocv.NewMat()
	defer mu1.Close()
	blur(f1, &mu1)

	mu2 := gocv.NewMat()
	defer mu2.Close()
	blur(f2, &mu2)

	mu1Sq := gocv.NewMat()
	defer mu1Sq.Close()
	gocv.Multiply(mu1, mu1, &mu1Sq)

	mu2Sq := gocv.NewMat()
	defer mu2Sq.Close()
	gocv.Multiply(mu2, mu2, &mu2Sq)

	mu1Mu2 := gocv.NewMat()
	defer mu1Mu2.Close()
	gocv.Multiply(mu1, mu2, &mu1Mu2)

	// sigma = blur(f*g) - mu_f*mu_g
	tmp := gocv.NewMat()
	defer tmp.Close()

	sigma1Sq := gocv.NewMat()
	defer sigma1Sq.Close()
	gocv.Multiply(f1, f1, &tmp)
	blur(tmp, &sigma1Sq)
	gocv.Subtract(sigma1Sq, mu1Sq, &sigma1Sq)

	sigma2Sq := gocv.NewMat()
	defer sigma2Sq.Close()
	gocv.Multiply(f2, f2, &tmp)
	blur(tmp, &sigma2Sq)
	gocv.Subtract(sigma2Sq, mu2Sq, &sigma2Sq)

	sigma12 := gocv.NewMat()
	defer sigma12.Close()
	gocv.Multiply(f1, f2, &tmp)
	blur(tmp, &sigma12)
	gocv.Subtract(sigma12, mu1Mu2, &sigma12)

	numerator1 := mu1Mu2.Clone()
	defer numerator1.Close()
	numerator1.MultiplyFloat(2)
	numerator1.AddFloat(c1)

	numerator2 := sigma12.Clone()
	defer numerator2.Close()
	numerator2.MultiplyFloat(2)
	numerator2.AddFloat(c2)

	numerator := gocv.NewMat()
	defer numerator.Close()
	gocv.Multiply(numerator1, numerator2, &numerator)

	denominator1 := gocv.NewMat()
	defer denominator1.Close()
	gocv.Add(mu1Sq, mu2Sq, &denominator1)
	denominator1.AddFloat(c1)

	denominator2 := gocv.NewMat()
	defer denominator2.Close()
	gocv.Add(sigma1Sq, sigma2Sq, &denominator2)
	denominator2.AddFloat(c2)

	denominator := gocv.NewMat()
	defer denominator.Close()
	gocv.Multiply(denominator1, denominator2, &denominator)

	ssimMap := gocv.NewMat()
	defer ssimMap.Close()
	gocv.Divide(numerator, denominator, &ssimMap)

	return ssimMap.Mean().Val1
}
