package exif

import (
	"encoding/binary"
	"testing"

	"github.com/aliskhannn/image-insight/internal/model"
)

// TIFF tag ids used by the fixtures.
const (
	tagMake             = 0x010F
	tagModel            = 0x0110
	tagSoftware         = 0x0131
	tagDateTime         = 0x0132
	tagExposureTime     = 0x829A
	tagFNumber          = 0x829D
	tagISO              = 0x8827
	tagGPSPointer       = 0x8825
	tagDateTimeOriginal = 0x9003
	tagFocalLength      = 0x920A
	tagPixelXDimension  = 0xA002
	tagPixelYDimension  = 0xA003

	tagGPSLatitudeRef  = 0x0001
	tagGPSLatitude     = 0x0002
	tagGPSLongitudeRef = 0x0003
	tagGPSLongitude    = 0x0004
)

type tiffTag struct {
	id    uint16
	typ   uint16
	count uint32
	value []byte
}

func asciiTag(id uint16, s string) tiffTag {
	v := append([]byte(s), 0)
	return tiffTag{id: id, typ: 2, count: uint32(len(v)), value: v}
}

func shortTag(id uint16, v uint16) tiffTag {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return tiffTag{id: id, typ: 3, count: 1, value: b}
}

func longTag(id uint16, v uint32) tiffTag {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return tiffTag{id: id, typ: 4, count: 1, value: b}
}

func rationalTag(id uint16, pairs ...[2]uint32) tiffTag {
	b := make([]byte, 0, len(pairs)*8)
	for _, p := range pairs {
		var e [8]byte
		binary.LittleEndian.PutUint32(e[:4], p[0])
		binary.LittleEndian.PutUint32(e[4:], p[1])
		b = append(b, e[:]...)
	}
	return tiffTag{id: id, typ: 5, count: uint32(len(pairs)), value: b}
}

// buildTIFF lays out a little-endian TIFF block with one IFD0 and an
// optional GPS sub-IFD, the way cameras structure the EXIF container.
// Values longer than four bytes go to a data area behind the IFDs.
func buildTIFF(ifd0 []tiffTag, gps []tiffTag) []byte {
	const headerSize = 8
	ifdSize := func(n int) uint32 { return uint32(2 + n*12 + 4) }

	tags := make([]tiffTag, len(ifd0))
	copy(tags, ifd0)

	gpsOffset := headerSize + ifdSize(len(tags))
	if len(gps) > 0 {
		gpsOffset = headerSize + ifdSize(len(tags)+1)
		tags = append(tags, longTag(tagGPSPointer, gpsOffset))
	}

	dataOffset := gpsOffset
	if len(gps) > 0 {
		dataOffset += ifdSize(len(gps))
	}

	var data []byte
	encodeIFD := func(tags []tiffTag) []byte {
		buf := make([]byte, 0, ifdSize(len(tags)))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(tags)))
		for _, tag := range tags {
			entry := make([]byte, 12)
			binary.LittleEndian.PutUint16(entry[0:2], tag.id)
			binary.LittleEndian.PutUint16(entry[2:4], tag.typ)
			binary.LittleEndian.PutUint32(entry[4:8], tag.count)
			if len(tag.value) <= 4 {
				copy(entry[8:12], tag.value)
			} else {
				binary.LittleEndian.PutUint32(entry[8:12], dataOffset+uint32(len(data)))
				data = append(data, tag.value...)
				if len(tag.value)%2 == 1 {
					data = append(data, 0)
				}
			}
			buf = append(buf, entry...)
		}
		return append(buf, 0, 0, 0, 0) // no next IFD
	}

	ifd0Bytes := encodeIFD(tags)
	var gpsBytes []byte
	if len(gps) > 0 {
		gpsBytes = encodeIFD(gps)
	}

	out := []byte{'I', 'I', 0x2A, 0x00}
	out = binary.LittleEndian.AppendUint32(out, headerSize)
	out = append(out, ifd0Bytes...)
	out = append(out, gpsBytes...)
	return append(out, data...)
}

// exifJPEG wraps a TIFF block into a minimal JPEG carrying it as an APP1
// EXIF segment.
func exifJPEG(tiffData []byte) []byte {
	payload := append([]byte("Exif\x00\x00"), tiffData...)
	out := []byte{0xFF, 0xD8, 0xFF, 0xE1}
	out = append(out, byte((len(payload)+2)>>8), byte(len(payload)+2))
	out = append(out, payload...)
	return append(out, 0xFF, 0xD9)
}

func cameraIFD0() []tiffTag {
	return []tiffTag{
		asciiTag(tagMake, "Canon"),
		asciiTag(tagModel, "Canon EOS 5D"),
		asciiTag(tagSoftware, "Firmware 1.2.3"),
		asciiTag(tagDateTime, "2023:08:12 14:30:52"),
		rationalTag(tagExposureTime, [2]uint32{1, 250}),
		rationalTag(tagFNumber, [2]uint32{28, 10}),
		shortTag(tagISO, 200),
		asciiTag(tagDateTimeOriginal, "2023:08:12 14:30:52"),
		rationalTag(tagFocalLength, [2]uint32{50, 1}),
		longTag(tagPixelXDimension, 4000),
		longTag(tagPixelYDimension, 3000),
	}
}

func gpsSanFranciscoIFD() []tiffTag {
	return []tiffTag{
		asciiTag(tagGPSLatitudeRef, "N"),
		rationalTag(tagGPSLatitude, [2]uint32{37, 1}, [2]uint32{46, 1}, [2]uint32{2964, 100}),
		asciiTag(tagGPSLongitudeRef, "W"),
		rationalTag(tagGPSLongitude, [2]uint32{122, 1}, [2]uint32{25, 1}, [2]uint32{984, 100}),
	}
}

func asset(data []byte) model.Asset {
	return model.Asset{Filename: "fixture.jpg", MimeType: "image/jpeg", Format: "jpeg", Bytes: data}
}

func TestExtractReadsWhitelistedFields(t *testing.T) {
	data := exifJPEG(buildTIFF(cameraIFD0(), gpsSanFranciscoIFD()))

	rec := New().Extract(asset(data))
	if rec == nil {
		t.Fatal("expected a metadata record")
	}

	strFields := []struct {
		name string
		got  *string
		want string
	}{
		{"camera make", rec.CameraMake, "Canon"},
		{"camera model", rec.CameraModel, "Canon EOS 5D"},
		{"software", rec.Software, "Firmware 1.2.3"},
		{"captured at text", rec.CapturedAtText, "8/12/2023, 2:30:52 PM"},
		{"exposure time", rec.ExposureTime, "1/250"},
		{"f-number", rec.FNumber, "f/2.8"},
		{"focal length", rec.FocalLength, "50mm"},
	}
	for _, f := range strFields {
		if f.got == nil {
			t.Fatalf("expected %s to be set", f.name)
		}
		if *f.got != f.want {
			t.Fatalf("%s: expected %q, got %q", f.name, f.want, *f.got)
		}
	}

	if rec.CapturedAt == nil {
		t.Fatal("expected parsed capture time")
	}
	if y, m, d := rec.CapturedAt.Date(); y != 2023 || int(m) != 8 || d != 12 {
		t.Fatalf("unexpected capture date: %v", rec.CapturedAt)
	}
	if rec.ISO == nil || *rec.ISO != 200 {
		t.Fatalf("expected ISO 200, got %v", rec.ISO)
	}
	if rec.Width == nil || *rec.Width != 4000 {
		t.Fatalf("expected width 4000, got %v", rec.Width)
	}
	if rec.Height == nil || *rec.Height != 3000 {
		t.Fatalf("expected height 3000, got %v", rec.Height)
	}
	if got, want := rec.GPSText(), "37.7749, -122.4194"; got != want {
		t.Fatalf("expected GPS text %q, got %q", want, got)
	}
}

func TestExtractWithoutGPSLeavesBothCoordinatesAbsent(t *testing.T) {
	data := exifJPEG(buildTIFF(cameraIFD0(), nil))

	rec := New().Extract(asset(data))
	if rec == nil {
		t.Fatal("expected a metadata record")
	}
	if rec.Latitude != nil || rec.Longitude != nil {
		t.Fatalf("expected no coordinates, got lat=%v lon=%v", rec.Latitude, rec.Longitude)
	}
}

func TestExtractIncompleteGPSSurfacesNeitherCoordinate(t *testing.T) {
	// Latitude without longitude must not surface a half pair.
	gps := []tiffTag{
		asciiTag(tagGPSLatitudeRef, "N"),
		rationalTag(tagGPSLatitude, [2]uint32{37, 1}, [2]uint32{46, 1}, [2]uint32{2964, 100}),
	}
	data := exifJPEG(buildTIFF(cameraIFD0(), gps))

	rec := New().Extract(asset(data))
	if rec == nil {
		t.Fatal("expected a metadata record")
	}
	if rec.Latitude != nil || rec.Longitude != nil {
		t.Fatalf("expected no coordinates, got lat=%v lon=%v", rec.Latitude, rec.Longitude)
	}
	if rec.HasLocation() {
		t.Fatal("expected no location")
	}
}

func TestExtractKeepsCameraTagsWhenGPSBlockIsBroken(t *testing.T) {
	// A GPS pointer past the end of the block breaks the sub-IFD parse but
	// must not erase the camera namespace.
	ifd0 := append(cameraIFD0(), longTag(tagGPSPointer, 0xFFFF))
	data := exifJPEG(buildTIFF(ifd0, nil))

	rec := New().Extract(asset(data))
	if rec == nil {
		t.Fatal("expected a metadata record from the partial parse")
	}
	if rec.CameraMake == nil || *rec.CameraMake != "Canon" {
		t.Fatalf("expected camera make to survive, got %v", rec.CameraMake)
	}
	if rec.Latitude != nil || rec.Longitude != nil {
		t.Fatal("expected no coordinates from the broken GPS block")
	}
}

func TestExtractNeverFailsOutward(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
		{"jpeg without app1", []byte{0xFF, 0xD8, 0xFF, 0xD9}},
		{"truncated tiff", exifJPEG(buildTIFF(cameraIFD0(), nil)[:16])},
		{"tiff header only", []byte{'I', 'I', 0x2A, 0x00}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := New().Extract(asset(tc.data)); rec != nil {
				t.Fatalf("expected nil record, got %+v", rec)
			}
		})
	}
}

func TestExtractEmptyIFDYieldsNothing(t *testing.T) {
	// A structurally valid block with no readable tags is "no metadata",
	// not an empty record.
	data := exifJPEG(buildTIFF(nil, nil))
	if rec := New().Extract(asset(data)); rec != nil {
		t.Fatalf("expected nil record for tagless block, got %+v", rec)
	}
}
