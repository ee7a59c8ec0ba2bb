package images

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessor_Analyze(t *testing.T) {
	p := NewProcessor(nil)

	tests := []struct {
		name     string
		encode   func(*bytes.Buffer, image.Image) error
		format   string
		mimeType string
		ext      string
	}{
		{"png", func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }, "png", "image/png", ".png"},
		{"jpeg", func(b *bytes.Buffer, i image.Image) error { return jpeg.Encode(b, i, nil) }, "jpeg", "image/jpeg", ".jpg"},
		{"gif", func(b *bytes.Buffer, i image.Image) error { return gif.Encode(b, i, nil) }, "gif", "image/gif", ".gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.encode(&buf, gradient(120, 80)))

			info, err := p.Analyze(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)

			assert.Equal(t, 120, info.Width)
			assert.Equal(t, 80, info.Height)
			assert.Equal(t, tt.format, info.Format)
			assert.Equal(t, tt.mimeType, info.MimeType)
			assert.Equal(t, tt.ext, info.Ext())
			assert.NotEmpty(t, info.BlurHash)
		})
	}
}

func TestProcessor_AnalyzeRejectsNonImages(t *testing.T) {
	p := NewProcessor(nil)

	_, err := p.Analyze(strings.NewReader("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestProcessor_AnalyzeFile(t *testing.T) {
	p := NewProcessor(nil)
	path := filepath.Join(t.TempDir(), "tiny.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, gradient(3, 5)), 0o600))

	info, err := p.AnalyzeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Width)
	assert.Equal(t, 5, info.Height)

	_, err = p.AnalyzeFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestBlurHash(t *testing.T) {
	hash, err := BlurHash(gradient(300, 200))
	require.NoError(t, err)
	// 4x3 components: 1 size + 1 max AC + 4 DC + 2*11 AC characters.
	assert.Len(t, hash, 28)

	small, err := BlurHash(gradient(10, 10))
	require.NoError(t, err)
	assert.NotEqual(t, hash, small)
}

func TestShrink(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"already small", 40, 30, 40, 30},
		{"landscape", 640, 320, 64, 32},
		{"portrait", 100, 400, 16, 64},
		{"sliver", 10000, 10, 64, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shrink(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))).Bounds()
			assert.Equal(t, tt.wantW, got.Dx())
			assert.Equal(t, tt.wantH, got.Dy())
		})
	}
}
