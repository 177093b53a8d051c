package payload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/aliskhannn/image-insight/internal/model"
)

// Encoding errors. Either one degrades the record that triggered the
// encode, so they carry enough detail to surface to the user.
var (
	ErrEmptyAsset = errors.New("encode: asset has no bytes")
	ErrTooLarge   = errors.New("encode: asset exceeds encoding limit")
)

// DefaultMaxBytes caps how much raw image data the encoder accepts when no
// explicit limit is configured.
const DefaultMaxBytes = 10 << 20

// Encoder turns a raw image asset into the transport-safe payload submitted
// to the analysis service: plain base64 with no data URL prefix.
type Encoder struct {
	maxBytes int64
}

// NewEncoder creates an Encoder with the given size cap.
func NewEncoder(maxBytes int64) *Encoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Encoder{maxBytes: maxBytes}
}

// Encode produces the transport payload for the asset. The asset bytes are
// streamed through a base64 encoder rather than converted in one shot so the
// cap applies before any large allocation happens.
func (e *Encoder) Encode(ctx context.Context, asset model.Asset) (model.Payload, error) {
	if len(asset.Bytes) == 0 {
		return model.Payload{}, ErrEmptyAsset
	}
	if int64(len(asset.Bytes)) > e.maxBytes {
		return model.Payload{}, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(asset.Bytes), e.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return model.Payload{}, fmt.Errorf("encode: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(base64.StdEncoding.EncodedLen(len(asset.Bytes)))

	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if _, err := io.Copy(enc, bytes.NewReader(asset.Bytes)); err != nil {
		return model.Payload{}, fmt.Errorf("encode: stream asset bytes: %w", err)
	}
	if err := enc.Close(); err != nil {
		return model.Payload{}, fmt.Errorf("encode: finalize base64: %w", err)
	}

	mime := asset.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}

	return model.Payload{MimeType: mime, Data: buf.String()}, nil
}
