package intake

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/aliskhannn/image-insight/internal/model"
)

// Validation errors returned to the transport layer. Handlers map them to
// the matching HTTP status codes.
var (
	ErrEmpty             = errors.New("intake: empty image payload")
	ErrTooLarge          = errors.New("intake: image exceeds size limit")
	ErrUnsupportedFormat = errors.New("intake: unsupported image format")
	ErrUndecodable       = errors.New("intake: image cannot be decoded")
	ErrDimensions        = errors.New("intake: image dimensions exceed limits")
)

// imageSignatures maps a decoded format to the magic bytes its container
// must start with.
var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46},
	"bmp":  {0x42, 0x4D},
}

// mimeByFormat maps a decoded format to the MIME type used on the wire.
var mimeByFormat = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
}

// Limits bound what the validator accepts. Zero values fall back to the
// defaults below.
type Limits struct {
	MaxFileSize    int64
	MaxWidth       int
	MaxHeight      int
	MaxPixels      int64
	AllowedFormats []string
}

const (
	defaultMaxFileSize = 10 << 20
	defaultMaxWidth    = 10000
	defaultMaxHeight   = 10000
	defaultMaxPixels   = 50_000_000
)

// Validator checks user-supplied images before they enter the pipeline:
// size cap, container signature, decodability and pixel limits. Every
// intake path (upload, drop, camera) funnels through it.
type Validator struct {
	limits Limits
}

// NewValidator creates a Validator with the given limits.
func NewValidator(limits Limits) *Validator {
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = defaultMaxFileSize
	}
	if limits.MaxWidth <= 0 {
		limits.MaxWidth = defaultMaxWidth
	}
	if limits.MaxHeight <= 0 {
		limits.MaxHeight = defaultMaxHeight
	}
	if limits.MaxPixels <= 0 {
		limits.MaxPixels = defaultMaxPixels
	}
	return &Validator{limits: limits}
}

// Validate reads one image from src and returns the immutable asset the
// pipeline will own. The reader is consumed up to the size limit plus one
// byte; anything beyond that fails with ErrTooLarge.
func (v *Validator) Validate(src io.Reader, filename string, source model.Source) (model.Asset, error) {
	limited := &io.LimitedReader{R: src, N: v.limits.MaxFileSize + 1}

	data, err := io.ReadAll(limited)
	if err != nil {
		return model.Asset{}, fmt.Errorf("read image: %w", err)
	}
	if limited.N <= 0 {
		return model.Asset{}, fmt.Errorf("%w: max %d bytes", ErrTooLarge, v.limits.MaxFileSize)
	}
	if len(data) == 0 {
		return model.Asset{}, ErrEmpty
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.Asset{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	if !v.formatAllowed(format) {
		return model.Asset{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if !signatureMatches(data, format) {
		return model.Asset{}, fmt.Errorf("%w: container signature does not match %s", ErrUndecodable, format)
	}

	if cfg.Width > v.limits.MaxWidth || cfg.Height > v.limits.MaxHeight {
		return model.Asset{}, fmt.Errorf("%w: %dx%d (max %dx%d)",
			ErrDimensions, cfg.Width, cfg.Height, v.limits.MaxWidth, v.limits.MaxHeight)
	}
	if total := int64(cfg.Width) * int64(cfg.Height); total > v.limits.MaxPixels {
		return model.Asset{}, fmt.Errorf("%w: %d pixels (max %d)", ErrDimensions, total, v.limits.MaxPixels)
	}

	if !source.IsValid() {
		source = model.SourceUpload
	}

	return model.Asset{
		Filename: cleanFilename(filename, format),
		MimeType: mimeByFormat[format],
		Format:   format,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Source:   source,
		Bytes:    data,
	}, nil
}

func (v *Validator) formatAllowed(format string) bool {
	if len(v.limits.AllowedFormats) == 0 {
		return true
	}
	format = strings.ToLower(format)
	for _, allowed := range v.limits.AllowedFormats {
		if strings.ToLower(allowed) == format {
			return true
		}
	}
	return false
}

func signatureMatches(data []byte, format string) bool {
	signature, ok := imageSignatures[strings.ToLower(format)]
	if !ok {
		return true
	}
	if len(data) < len(signature) {
		return false
	}
	return bytes.Equal(signature, data[:len(signature)])
}

// cleanFilename strips any path components a client may have smuggled into
// the multipart filename and guarantees a usable non-empty name.
func cleanFilename(name, format string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "image." + format
	}
	return name
}
