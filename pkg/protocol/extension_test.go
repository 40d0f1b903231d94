package protocol

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestCodec_GoldenLatitude(t *testing.T) {
	c := DefaultCodec()

	data, err := c.Encode(map[string]interface{}{FieldLatitude: 35.0})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// 10-bit length=4, 6-bit id=33 -> 0x8404 LE; payload = LE 35,000,000
	want := []byte{0x04, 0x84, 0xC0, 0x0E, 0x16, 0x02}
	if !bytes.Equal(data, want) {
		t.Errorf("Encode(latitude=35.0) = % X, want % X", data, want)
	}
}

func TestCodec_RoundtripAllKinds(t *testing.T) {
	c := DefaultCodec()

	fields := map[string]interface{}{
		FieldLatitude:  35.6762,
		FieldLongitude: 139.6503,
		FieldAlert:     []string{"flood", "landslide"},
		FieldDisaster:  []string{"earthquake"},
		FieldSource:    "192.168.10.21:4050",
		FieldAuthHash:  "deadbeefcafe",
	}

	data, err := c.Encode(fields)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	lat := decoded[FieldLatitude].(float64)
	if math.Abs(lat-35.6762) > 1e-6 {
		t.Errorf("latitude = %v, want 35.6762 within 1e-6", lat)
	}
	lon := decoded[FieldLongitude].(float64)
	if math.Abs(lon-139.6503) > 1e-6 {
		t.Errorf("longitude = %v, want 139.6503 within 1e-6", lon)
	}
	if got := decoded[FieldAlert]; !reflect.DeepEqual(got, []string{"flood", "landslide"}) {
		t.Errorf("alert = %v", got)
	}
	if got := decoded[FieldDisaster]; !reflect.DeepEqual(got, []string{"earthquake"}) {
		t.Errorf("disaster = %v", got)
	}
	if got := decoded[FieldSource]; got != "192.168.10.21:4050" {
		t.Errorf("source = %v", got)
	}
	if got := decoded[FieldAuthHash]; got != "deadbeefcafe" {
		t.Errorf("auth_hash = %v", got)
	}
}

func TestCodec_NegativeCoordinate(t *testing.T) {
	c := DefaultCodec()

	data, err := c.Encode(map[string]interface{}{FieldLongitude: -122.4194})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	lon := decoded[FieldLongitude].(float64)
	if math.Abs(lon-(-122.4194)) > 1e-6 {
		t.Errorf("longitude = %v, want -122.4194 within 1e-6", lon)
	}
}

func TestSourcePacking(t *testing.T) {
	tests := []struct {
		addr   string
		packed uint64
	}{
		// "192" + "168" + "010" + "021" + "04050"
		{"192.168.10.21:4050", 19216801002104050},
		{"1.2.3.4:5", 100200300400005},
		{"0.0.0.1:80", 100080},
		{"255.255.255.255:65535", 25525525525565535},
	}

	for _, tt := range tests {
		got, err := packSource(tt.addr)
		if err != nil {
			t.Errorf("packSource(%q) failed: %v", tt.addr, err)
			continue
		}
		if got != tt.packed {
			t.Errorf("packSource(%q) = %d, want %d", tt.addr, got, tt.packed)
		}
		if back := unpackSource(got); back != tt.addr {
			t.Errorf("unpackSource(%d) = %q, want %q", got, back, tt.addr)
		}
	}
}

func TestSourcePacking_Invalid(t *testing.T) {
	for _, addr := range []string{"", "1.2.3.4", "1.2.3:80", "1.2.3.4.5:80", "1.2.3.999:80", "1.2.3.4:99999", "a.b.c.d:80"} {
		if _, err := packSource(addr); err == nil {
			t.Errorf("packSource(%q) succeeded, want error", addr)
		}
	}
}

func TestCodec_UnregisteredNameSkippedOnEncode(t *testing.T) {
	c := DefaultCodec()

	data, err := c.Encode(map[string]interface{}{"nonexistent": "x"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty block, got % X", data)
	}
}

func TestCodec_OversizedPayloadSilentlyDropped(t *testing.T) {
	c := DefaultCodec()

	big := make([]byte, 1200)
	for i := range big {
		big[i] = 'a'
	}

	data, err := c.Encode(map[string]interface{}{
		FieldAuthHash: string(big),
		FieldLatitude: 1.0,
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, ok := decoded[FieldAuthHash]; ok {
		t.Error("oversized field survived encode")
	}
	if _, ok := decoded[FieldLatitude]; !ok {
		t.Error("in-range field was lost alongside the oversized one")
	}
}

func TestCodec_UnknownIDSkippedOnDecode(t *testing.T) {
	c := DefaultCodec()

	// id 63 is unregistered; entry: length=2, id=63 -> 0xFC02 LE
	unknown := []byte{0x02, 0xFC, 0xAA, 0xBB}
	known, err := c.Encode(map[string]interface{}{FieldLatitude: 35.0})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := c.Decode(append(unknown, known...))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 1 {
		t.Errorf("decoded %d fields, want 1", len(decoded))
	}
	if _, ok := decoded[FieldLatitude]; !ok {
		t.Error("field after unknown entry was lost")
	}
}

func TestCodec_TruncatedTrailerStopsCleanly(t *testing.T) {
	c := DefaultCodec()

	known, err := c.Encode(map[string]interface{}{FieldLatitude: 35.0})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// One stray byte: fewer than 16 header bits remain
	decoded, err := c.Decode(append(known, 0x7F))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, ok := decoded[FieldLatitude]; !ok {
		t.Error("leading field lost on stray trailing byte")
	}

	// Declared length exceeds the remaining bytes
	overrun := []byte{0xFF, 0x87, 0x01} // id=33, length=0x3FF, 1 payload byte
	decoded, err = c.Decode(append(append([]byte{}, known...), overrun...))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 1 {
		t.Errorf("decoded %d fields, want 1", len(decoded))
	}
}

func TestCodec_LastSeenWins(t *testing.T) {
	c := DefaultCodec()

	first, err := c.Encode(map[string]interface{}{FieldLatitude: 10.0})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	second, err := c.Encode(map[string]interface{}{FieldLatitude: 20.0})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := c.Decode(append(first, second...))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if lat := decoded[FieldLatitude].(float64); math.Abs(lat-20.0) > 1e-6 {
		t.Errorf("latitude = %v, want later entry 20.0", lat)
	}
}

func TestCodec_InvalidUTF8(t *testing.T) {
	c := DefaultCodec()

	// auth_hash entry with a malformed UTF-8 payload: length=2, id=38
	hdr := uint16(2) | uint16(IDAuthHash)<<10
	data := []byte{byte(hdr), byte(hdr >> 8), 0xFF, 0xFE}

	if _, err := c.Decode(data); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("Decode error = %v, want ErrInvalidUTF8", err)
	}
}

func TestCodec_EmptyInputs(t *testing.T) {
	c := DefaultCodec()

	data, err := c.Encode(nil)
	if err != nil {
		t.Fatalf("Encode(nil) failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("Encode(nil) = % X, want empty", data)
	}

	decoded, err := c.Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil) failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("Decode(nil) = %v, want empty map", decoded)
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	if _, err := NewRegistry(FieldDef{Name: "x", ID: 64}); err == nil {
		t.Error("expected error for id beyond 6-bit space")
	}
	if _, err := NewRegistry(
		FieldDef{Name: "x", ID: 1},
		FieldDef{Name: "x", ID: 2},
	); err == nil {
		t.Error("expected error for duplicate name")
	}
	if _, err := NewRegistry(
		FieldDef{Name: "x", ID: 1},
		FieldDef{Name: "y", ID: 1},
	); err == nil {
		t.Error("expected error for duplicate id")
	}
}

func TestCodec_WrongValueType(t *testing.T) {
	c := DefaultCodec()

	if _, err := c.Encode(map[string]interface{}{FieldLatitude: "35.0"}); err == nil {
		t.Error("expected error encoding string as coordinate")
	}
	if _, err := c.Encode(map[string]interface{}{FieldAlert: "flood"}); err == nil {
		t.Error("expected error encoding bare string as list")
	}
}
