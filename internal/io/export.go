// Encoding and storing rendered images
package io

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"image-filter-pipeline/internal/pixel"
)

// Format is an export encoding.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
)

// ParseFormat accepts "jpeg", "jpg" or "png".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	}
	return "", fmt.Errorf("unsupported export format: %q", s)
}

// ErrNothingToExport is returned when no rendered image is available.
var ErrNothingToExport = errors.New("no rendered image to export")

// ExportError reports a failed export. Retryable failures (permission
// denied, I/O errors from the store) may succeed when tried again.
type ExportError struct {
	Op        string
	Name      string
	Retryable bool
	Err       error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is an export failure that may succeed
// when tried again.
func IsRetryable(err error) bool {
	var exportErr *ExportError
	return errors.As(err, &exportErr) && exportErr.Retryable
}

// Store persists encoded images, for example into a media library.
type Store interface {
	Put(name string, data []byte) error
}

// DirStore writes images into a directory, creating it on demand.
type DirStore struct {
	Dir string
}

func (d DirStore) Put(name string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.Dir, ".pending-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(d.Dir, name))
}

// Exporter encodes rendered buffers and hands them to a Store.
type Exporter struct {
	logger  logrus.FieldLogger
	store   Store
	format  Format
	quality int
	now     func() time.Time
}

func NewExporter(logger logrus.FieldLogger, store Store, format Format, quality int) *Exporter {
	return &Exporter{
		logger:  logger,
		store:   store,
		format:  format,
		quality: min(max(quality, 0), 100),
		now:     time.Now,
	}
}

// Filename returns the name for the next export: IMG_<unix millis>.<ext>.
func (e *Exporter) Filename() string {
	return fmt.Sprintf("IMG_%d.%s", e.now().UnixMilli(), e.format)
}

// Export encodes buf and stores it, returning the stored name.
func (e *Exporter) Export(buf *pixel.Buffer) (string, error) {
	name := e.Filename()
	if buf == nil || buf.Empty() {
		return "", &ExportError{Op: "encode", Name: name, Err: ErrNothingToExport}
	}

	data, err := Encode(buf, e.format, e.quality)
	if err != nil {
		return "", &ExportError{Op: "encode", Name: name, Err: err}
	}

	if err := e.store.Put(name, data); err != nil {
		e.logger.WithError(err).WithField("name", name).Warn("Export failed")
		return "", &ExportError{Op: "store", Name: name, Retryable: true, Err: err}
	}

	e.logger.WithFields(logrus.Fields{
		"name":   name,
		"bytes":  len(data),
		"width":  buf.Width(),
		"height": buf.Height(),
	}).Info("Image exported")
	return name, nil
}

// Encode converts buf to the given format. quality applies to JPEG only.
func Encode(buf *pixel.Buffer, format Format, quality int) ([]byte, error) {
	if buf == nil || buf.Empty() {
		return nil, ErrNothingToExport
	}

	var (
		mat    gocv.Mat
		err    error
		ext    gocv.FileExt
		params []int
	)
	switch format {
	case JPEG:
		mat, err = gocv.ImageToMatRGB(buf.ToNRGBA())
		ext = gocv.JPEGFileExt
		params = []int{int(gocv.IMWriteJpegQuality), quality}
	case PNG:
		mat, err = gocv.NewMatFromBytes(buf.Height(), buf.Width(), gocv.MatTypeCV8UC4, pixelsToBGRA(buf.Pixels()))
		ext = gocv.PNGFileExt
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	native, err := gocv.IMEncodeWithParams(ext, mat, params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	defer native.Close()

	data := native.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// pixelsToBGRA packs straight (non-premultiplied) pixels in OpenCV order.
func pixelsToBGRA(pix []pixel.Pixel) []byte {
	data := make([]byte, len(pix)*4)
	for i, p := range pix {
		data[i*4+0] = p.B
		data[i*4+1] = p.G
		data[i*4+2] = p.R
		data[i*4+3] = p.A
	}
	return data
}

// SaveImage encodes buf according to the extension of path and writes it.
func SaveImage(buf *pixel.Buffer, path string, quality int) error {
	format, err := ParseFormat(strings.TrimPrefix(getFileExtension(path), "."))
	if err != nil {
		return err
	}

	data, err := Encode(buf, format, quality)
	if err != nil {
		return &ExportError{Op: "encode", Name: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &ExportError{Op: "write", Name: path, Retryable: true, Err: err}
	}
	return nil
}
