package model

import "testing"

func fptr(v float64) *float64 { return &v }

func TestGPSTextRoundsToFourDecimals(t *testing.T) {
	m := &MetadataRecord{
		Latitude:  fptr(37.77491234),
		Longitude: fptr(-122.41935678),
	}

	if !m.HasLocation() {
		t.Fatal("expected location to be present")
	}
	if got, want := m.GPSText(), "37.7749, -122.4194"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestGPSTextRequiresBothCoordinates(t *testing.T) {
	cases := []struct {
		name string
		meta *MetadataRecord
	}{
		{"nil record", nil},
		{"no coordinates", &MetadataRecord{}},
		{"latitude only", &MetadataRecord{Latitude: fptr(37.7749)}},
		{"longitude only", &MetadataRecord{Longitude: fptr(-122.4194)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.meta.HasLocation() {
				t.Fatal("expected no location")
			}
			if got := tc.meta.GPSText(); got != "" {
				t.Fatalf("expected empty GPS text, got %q", got)
			}
		})
	}
}

func TestMetadataEmpty(t *testing.T) {
	var m *MetadataRecord
	if !m.Empty() {
		t.Fatal("expected nil record to be empty")
	}
	if !(&MetadataRecord{}).Empty() {
		t.Fatal("expected zero record to be empty")
	}

	make := "Canon"
	if (&MetadataRecord{CameraMake: &make}).Empty() {
		t.Fatal("expected record with camera make to be non-empty")
	}
	iso := 200
	if (&MetadataRecord{ISO: &iso}).Empty() {
		t.Fatal("expected record with ISO to be non-empty")
	}
}
