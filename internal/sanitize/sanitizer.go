package sanitize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Sanitization errors. They surface only to the caller of the privacy-clean
// operation and never affect the main pipeline.
var (
	ErrUnsupportedTarget = errors.New("sanitize: unsupported target format")
	ErrRasterSurface     = errors.New("sanitize: cannot acquire raster surface")
	ErrEmptyResult       = errors.New("sanitize: re-encode produced no bytes")
)

// jpegQuality is the fixed quality factor applied when re-serializing to
// JPEG. It matches the quality the camera intake path encodes at.
const jpegQuality = 95

// Sanitizer produces a metadata-free copy of an image. It works by full
// re-rasterization: decode to pixels, blit onto a fresh surface, re-encode.
// A fresh surface never carries any of the source container's auxiliary
// chunks, so the output is metadata-free by construction. Copying the source
// container and removing known tags would miss proprietary ones and is not
// an acceptable substitute.
type Sanitizer struct{}

// New creates a Sanitizer.
func New() *Sanitizer {
	return &Sanitizer{}
}

// Strip returns a re-encoded copy of the image with no container metadata.
// targetFormat may be "jpeg" (default when empty) or "png".
func (s *Sanitizer) Strip(ctx context.Context, data []byte, targetFormat string) ([]byte, error) {
	format, opts, err := encodeTarget(targetFormat)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("sanitize: decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrRasterSurface, width, height)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sanitize: %w", err)
	}

	// The surface is sized exactly to the decoded bounds and the image is
	// blitted at the origin with no transform, so pixel content survives
	// unchanged up to the lossy re-encode.
	dc := gg.NewContext(width, height)
	dc.DrawImage(img, 0, 0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dc.Image(), format, opts...); err != nil {
		return nil, fmt.Errorf("sanitize: re-encode image: %w", err)
	}
	if buf.Len() == 0 {
		return nil, ErrEmptyResult
	}

	return buf.Bytes(), nil
}

func encodeTarget(name string) (imaging.Format, []imaging.EncodeOption, error) {
	switch strings.ToLower(name) {
	case "", "jpeg", "jpg":
		return imaging.JPEG, []imaging.EncodeOption{imaging.JPEGQuality(jpegQuality)}, nil
	case "png":
		return imaging.PNG, nil, nil
	default:
		return imaging.JPEG, nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, name)
	}
}
