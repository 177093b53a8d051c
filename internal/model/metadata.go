package model

import (
	"fmt"
	"time"
)

// MetadataRecord is the normalized subset of container metadata extracted
// from an image. Every field is optional: a nil field means the tag was not
// present in the source asset, not that extraction failed.
type MetadataRecord struct {
	CameraMake     *string    `json:"camera_make,omitempty"`
	CameraModel    *string    `json:"camera_model,omitempty"`
	Software       *string    `json:"software,omitempty"`
	CapturedAt     *time.Time `json:"captured_at,omitempty"`
	CapturedAtText *string    `json:"captured_at_text,omitempty"`
	ExposureTime   *string    `json:"exposure_time,omitempty"`
	FNumber        *string    `json:"f_number,omitempty"`
	ISO            *int       `json:"iso,omitempty"`
	FocalLength    *string    `json:"focal_length,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	Width          *int       `json:"width,omitempty"`
	Height         *int       `json:"height,omitempty"`
}

// HasLocation reports whether both coordinates were present in the source.
// A latitude without a longitude (or the reverse) is never surfaced.
func (m *MetadataRecord) HasLocation() bool {
	return m != nil && m.Latitude != nil && m.Longitude != nil
}

// GPSText renders the coordinate pair for display rounded to four decimal
// places, e.g. "37.7749, -122.4194". Empty when no location is present.
func (m *MetadataRecord) GPSText() string {
	if !m.HasLocation() {
		return ""
	}
	return fmt.Sprintf("%.4f, %.4f", *m.Latitude, *m.Longitude)
}

// Empty reports whether extraction found nothing at all.
func (m *MetadataRecord) Empty() bool {
	if m == nil {
		return true
	}
	return m.CameraMake == nil &&
		m.CameraModel == nil &&
		m.Software == nil &&
		m.CapturedAt == nil &&
		m.CapturedAtText == nil &&
		m.ExposureTime == nil &&
		m.FNumber == nil &&
		m.ISO == nil &&
		m.FocalLength == nil &&
		m.Latitude == nil &&
		m.Longitude == nil &&
		m.Width == nil &&
		m.Height == nil
}
