package io

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-filter-pipeline/internal/pixel"
)

type failingStore struct{ err error }

func (f failingStore) Put(string, []byte) error { return f.err }

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"jpeg": JPEG, "JPG": JPEG, "png": PNG} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("gif")
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	logger, _ := test.NewNullLogger()
	e := NewExporter(logger, DirStore{Dir: t.TempDir()}, JPEG, 100)
	e.now = func() time.Time { return time.UnixMilli(1700000000123) }

	assert.Equal(t, "IMG_1700000000123.jpeg", e.Filename())
}

func TestExportNothing(t *testing.T) {
	logger, _ := test.NewNullLogger()
	e := NewExporter(logger, DirStore{Dir: t.TempDir()}, JPEG, 100)

	_, err := e.Export(nil)
	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.False(t, exportErr.Retryable)
	assert.False(t, IsRetryable(err))
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestExportStoreFailureIsRetryable(t *testing.T) {
	logger, _ := test.NewNullLogger()
	e := NewExporter(logger, failingStore{err: os.ErrPermission}, PNG, 100)

	_, err := e.Export(pixel.SamplePattern(8, 4))
	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.True(t, exportErr.Retryable)
	assert.Equal(t, "store", exportErr.Op)
	assert.True(t, errors.Is(err, os.ErrPermission))
	assert.True(t, IsRetryable(err))
	assert.True(t, IsRetryable(fmt.Errorf("save: %w", err)))
	assert.False(t, IsRetryable(os.ErrPermission))
}

func TestExportRoundTrip(t *testing.T) {
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()
	e := NewExporter(logger, DirStore{Dir: dir}, PNG, 100)
	src := pixel.SamplePattern(30, 20)

	name, err := e.Export(src)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	decoded, err := NewImageLoader(logger).Decode(data)
	require.NoError(t, err)
	assert.True(t, src.Equal(decoded))
}

func TestSupportedFormats(t *testing.T) {
	assert.True(t, isSupportedImageFormat("/photos/a.JPG"))
	assert.True(t, isSupportedImageFormat("b.tiff"))
	assert.False(t, isSupportedImageFormat("c.gif"))
	assert.False(t, isSupportedImageFormat("dir.png/file"))
}
