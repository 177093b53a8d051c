package model

// Source identifies which intake path supplied an image asset.
type Source string

const (
	SourceUpload Source = "upload"
	SourceDrop   Source = "drop"
	SourceCamera Source = "camera"
)

// IsValid reports whether the source is one of the known intake paths.
func (s Source) IsValid() bool {
	switch s {
	case SourceUpload, SourceDrop, SourceCamera:
		return true
	}
	return false
}

// Asset is the raw bytes of one user-supplied image plus enough type
// information to decode it. The bytes belong to the record holding the
// asset and are never mutated in place.
type Asset struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Format   string `json:"format"` // decoded format: jpeg, png, gif, webp, bmp
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Source   Source `json:"source"`
	Bytes    []byte `json:"-"`
}

// Size returns the asset size in bytes.
func (a Asset) Size() int64 {
	return int64(len(a.Bytes))
}

// Payload is the transport-safe encoding of an asset submitted to the
// external analysis service. Data is plain base64 with no data: URL prefix.
type Payload struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}
