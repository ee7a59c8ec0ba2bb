package images

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"log/slog"
	"os"

	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// maxBlurHashPixels skips full decoding of very large images.
const maxBlurHashPixels = 40_000_000

// ErrUnsupportedFormat is returned for files no registered decoder accepts.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Info holds the properties extracted from an image file.
type Info struct {
	Width    int
	Height   int
	Format   string // decoder name: jpeg, png, gif, webp, bmp, tiff
	MimeType string
	BlurHash string
}

// Ext returns the canonical file extension for the format.
func (i *Info) Ext() string {
	switch i.Format {
	case "jpeg":
		return ".jpg"
	case "":
		return ""
	default:
		return "." + i.Format
	}
}

var mimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// Processor reads image headers and computes placeholders.
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a processor. A nil logger discards output.
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{logger: logger}
}

// AnalyzeFile opens path and analyzes it.
func (p *Processor) AnalyzeFile(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return p.Analyze(f)
}

// Analyze reads the image header for dimensions and format, then decodes the
// full image for a BlurHash. A BlurHash failure is logged, not returned.
func (p *Processor) Analyze(r io.ReadSeeker) (*Info, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	info := &Info{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   format,
		MimeType: mimeTypes[format],
	}
	if info.MimeType == "" {
		info.MimeType = "image/" + format
	}

	if cfg.Width*cfg.Height > maxBlurHashPixels {
		p.logger.Debug("skipping blurhash for large image",
			"width", cfg.Width,
			"height", cfg.Height,
		)
		return info, nil
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return info, nil
	}
	img, _, err := image.Decode(r)
	if err != nil {
		p.logger.Warn("failed to decode image for blurhash", "format", format, "error", err)
		return info, nil
	}

	hash, err := BlurHash(img)
	if err != nil {
		p.logger.Warn("failed to compute blurhash", "format", format, "error", err)
		return info, nil
	}
	info.BlurHash = hash
	return info, nil
}
