// Image loading through OpenCV
package io

import (
	"fmt"
	goio "io"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"image-filter-pipeline/internal/pixel"
)

// maxDimension bounds decoded images to keep per-stage buffers sane.
const maxDimension = 16384

// ImageLoader decodes source images into pixel buffers
type ImageLoader struct {
	logger logrus.FieldLogger
}

func NewImageLoader(logger logrus.FieldLogger) *ImageLoader {
	return &ImageLoader{
		logger: logger,
	}
}

// LoadImage reads and decodes the image file at path.
func (il *ImageLoader) LoadImage(path string) (*pixel.Buffer, error) {
	il.logger.WithField("filepath", path).Debug("Loading image")

	if !isSupportedImageFormat(path) {
		return nil, fmt.Errorf("unsupported image format: %s", path)
	}

	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("failed to load image: %s", path)
	}

	buf, err := matToBuffer(mat)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image %s: %w", path, err)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    buf.Width(),
		"height":   buf.Height(),
	}).Info("Image loaded successfully")
	return buf, nil
}

// Decode decodes an encoded image held in memory (JPEG, PNG, BMP, TIFF).
func (il *ImageLoader) Decode(data []byte) (*pixel.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot decode empty data")
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("failed to decode image: unrecognized data")
	}

	buf, err := matToBuffer(mat)
	if err != nil {
		return nil, err
	}

	il.logger.WithFields(logrus.Fields{
		"bytes":  len(data),
		"width":  buf.Width(),
		"height": buf.Height(),
	}).Info("Image decoded successfully")
	return buf, nil
}

// Read decodes an image from r, as handed over by a file picker.
func (il *ImageLoader) Read(r goio.Reader) (*pixel.Buffer, error) {
	data, err := goio.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return il.Decode(data)
}

// matToBuffer converts a decoded Mat of any channel count and 8 or 16 bit
// depth into a buffer, keeping the alpha channel when the source has one.
func matToBuffer(mat gocv.Mat) (*pixel.Buffer, error) {
	if mat.Cols() > maxDimension || mat.Rows() > maxDimension {
		return nil, fmt.Errorf("image too large: %dx%d (max: %d)", mat.Cols(), mat.Rows(), maxDimension)
	}

	src := mat
	switch depth := mat.Type() & 7; depth {
	case gocv.MatTypeCV8U:
	case gocv.MatTypeCV16U:
		narrowed := gocv.NewMat()
		defer narrowed.Close()
		if err := mat.ConvertToWithParams(&narrowed, gocv.MatTypeCV8U, 1.0/257, 0); err != nil {
			return nil, fmt.Errorf("failed to narrow 16-bit image: %w", err)
		}
		src = narrowed
	default:
		return nil, fmt.Errorf("unsupported image depth: %d", depth)
	}

	bgra := gocv.NewMat()
	defer bgra.Close()
	switch src.Channels() {
	case 4:
		if err := src.CopyTo(&bgra); err != nil {
			return nil, fmt.Errorf("failed to copy image: %w", err)
		}
	case 3:
		if err := gocv.CvtColor(src, &bgra, gocv.ColorBGRToBGRA); err != nil {
			return nil, fmt.Errorf("failed to add alpha channel: %w", err)
		}
	case 1:
		if err := gocv.CvtColor(src, &bgra, gocv.ColorGrayToBGRA); err != nil {
			return nil, fmt.Errorf("failed to expand grayscale image: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported channel count: %d", src.Channels())
	}

	pix, err := bgraToPixels(bgra.ToBytes(), bgra.Cols()*bgra.Rows())
	if err != nil {
		return nil, err
	}
	return pixel.New(bgra.Cols(), bgra.Rows(), pix)
}

// bgraToPixels unpacks OpenCV's interleaved B, G, R, A byte order.
func bgraToPixels(data []byte, n int) ([]pixel.Pixel, error) {
	if len(data) != n*4 {
		return nil, fmt.Errorf("unexpected BGRA data length %d for %d pixels", len(data), n)
	}
	pix := make([]pixel.Pixel, n)
	for i := range pix {
		s := data[i*4 : i*4+4]
		pix[i] = pixel.Pixel{A: s[3], R: s[2], G: s[1], B: s[0]}
	}
	return pix, nil
}

func isSupportedImageFormat(path string) bool {
	return lo.Contains(SupportedExtensions(), strings.ToLower(getFileExtension(path)))
}

func getFileExtension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}

// SupportedExtensions lists the file extensions LoadImage accepts.
func SupportedExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"}
}
