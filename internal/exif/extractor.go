package exif

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-insight/internal/model"
)

// displayTimeLayout mirrors how capture timestamps are shown to users.
const displayTimeLayout = "1/2/2006, 3:04:05 PM"

// Extractor pulls a fixed whitelist of tags out of image container
// metadata. It reads three namespaces: the IFD0/TIFF block for camera
// identity, the Exif sub-IFD for capture settings and the GPS IFD for
// coordinates. Tags outside the whitelist are ignored.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract returns the normalized metadata of the asset, or nil when the
// asset carries no usable metadata. It never fails: parse errors of any
// kind are absorbed and reported as "nothing extracted".
func (e *Extractor) Extract(asset model.Asset) (rec *model.MetadataRecord) {
	// The underlying TIFF parser can panic on hostile structures.
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Warn().
				Interface("panic", r).
				Str("filename", asset.Filename).
				Msg("metadata parser panicked")
			rec = nil
		}
	}()

	// Decode returns a partially loaded result when one sub-IFD is broken.
	// The primary namespace stays readable in that case, so a corrupt GPS
	// block must not erase camera tags.
	x, err := goexif.Decode(bytes.NewReader(asset.Bytes))
	if err != nil {
		zlog.Logger.Debug().
			Err(err).
			Str("filename", asset.Filename).
			Msg("metadata decode failed or was partial")
		if x == nil {
			return nil
		}
	}

	rec = &model.MetadataRecord{}
	e.readCameraTags(x, rec)
	e.readCaptureTags(x, rec)
	e.readLocation(x, rec)

	if rec.Empty() {
		return nil
	}
	return rec
}

// readCameraTags covers the IFD0/TIFF namespace.
func (e *Extractor) readCameraTags(x *goexif.Exif, rec *model.MetadataRecord) {
	if s, ok := stringTag(x, goexif.Make); ok {
		rec.CameraMake = &s
	}
	if s, ok := stringTag(x, goexif.Model); ok {
		rec.CameraModel = &s
	}
	if s, ok := stringTag(x, goexif.Software); ok {
		rec.Software = &s
	}
}

// readCaptureTags covers the Exif sub-IFD namespace.
func (e *Extractor) readCaptureTags(x *goexif.Exif, rec *model.MetadataRecord) {
	e.readTimestamp(x, rec)

	if s, ok := exposureDisplay(x); ok {
		rec.ExposureTime = &s
	}
	if s, ok := fNumberDisplay(x); ok {
		rec.FNumber = &s
	}
	if v, ok := intTag(x, goexif.ISOSpeedRatings); ok && v > 0 {
		rec.ISO = &v
	}
	if s, ok := focalDisplay(x); ok {
		rec.FocalLength = &s
	}

	if w, ok := intTag(x, goexif.PixelXDimension); ok && w > 0 {
		rec.Width = &w
	} else if w, ok := intTag(x, goexif.ImageWidth); ok && w > 0 {
		rec.Width = &w
	}
	if h, ok := intTag(x, goexif.PixelYDimension); ok && h > 0 {
		rec.Height = &h
	} else if h, ok := intTag(x, goexif.ImageLength); ok && h > 0 {
		rec.Height = &h
	}
}

// readTimestamp keeps both the parsed capture time and its display form.
// When the tag text does not parse as a timestamp the raw text still
// surfaces, so unusual camera firmware does not lose the field entirely.
func (e *Extractor) readTimestamp(x *goexif.Exif, rec *model.MetadataRecord) {
	if t, err := x.DateTime(); err == nil {
		s := t.Format(displayTimeLayout)
		rec.CapturedAt = &t
		rec.CapturedAtText = &s
		return
	}
	for _, name := range []goexif.FieldName{goexif.DateTimeOriginal, goexif.DateTime} {
		if s, ok := stringTag(x, name); ok {
			rec.CapturedAtText = &s
			return
		}
	}
}

// readLocation covers the GPS namespace. Coordinates surface as a pair or
// not at all.
func (e *Extractor) readLocation(x *goexif.Exif, rec *model.MetadataRecord) {
	lat, long, err := x.LatLong()
	if err != nil {
		return
	}
	rec.Latitude = &lat
	rec.Longitude = &long
}

func stringTag(x *goexif.Exif, name goexif.FieldName) (string, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	if s == "" {
		return "", false
	}
	return s, true
}

func intTag(x *goexif.Exif, name goexif.FieldName) (int, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return v, true
}

func ratTag(x *goexif.Exif, name goexif.FieldName) (num, den int64, ok bool) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, 0, false
	}
	n, d, err := tag.Rat2(0)
	if err != nil || d == 0 {
		return 0, 0, false
	}
	return n, d, true
}

// exposureDisplay renders shutter speed the way cameras label it,
// e.g. "1/250", or "2" for a two second exposure.
func exposureDisplay(x *goexif.Exif) (string, bool) {
	num, den, ok := ratTag(x, goexif.ExposureTime)
	if !ok || num < 0 {
		return "", false
	}
	switch {
	case num == 0:
		return "0", true
	case num%den == 0:
		return strconv.FormatInt(num/den, 10), true
	case den%num == 0:
		return fmt.Sprintf("1/%d", den/num), true
	default:
		return strconv.FormatFloat(float64(num)/float64(den), 'f', -1, 64), true
	}
}

// fNumberDisplay renders aperture as "f/2.8".
func fNumberDisplay(x *goexif.Exif) (string, bool) {
	num, den, ok := ratTag(x, goexif.FNumber)
	if !ok {
		return "", false
	}
	v := math.Round(float64(num)/float64(den)*10) / 10
	return "f/" + strconv.FormatFloat(v, 'f', -1, 64), true
}

// focalDisplay renders focal length as "50mm".
func focalDisplay(x *goexif.Exif) (string, bool) {
	num, den, ok := ratTag(x, goexif.FocalLength)
	if !ok {
		return "", false
	}
	v := math.Round(float64(num)/float64(den)*10) / 10
	return strconv.FormatFloat(v, 'f', -1, 64) + "mm", true
}
