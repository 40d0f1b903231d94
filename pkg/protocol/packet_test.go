package protocol

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/wipnet/wip-nexus/pkg/wire"
)

func TestLocationRequest_Scenario(t *testing.T) {
	c := DefaultCodec()

	req := &LocationRequest{
		Header: Header{
			PacketID:  0x123,
			Weather:   true,
			Timestamp: 1700000000,
		},
		Latitude:  35.6762,
		Longitude: 139.6503,
	}

	data, err := req.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if len(data) < HeaderSize {
		t.Errorf("serialized length = %d, want >= %d", len(data), HeaderSize)
	}
	if wire.Extract(data, BitExFlag, 1) != 1 {
		t.Error("ex_flag bit (24) not set despite coordinate extensions")
	}
	if !wire.VerifyAt(data, BitChecksum) {
		t.Error("checksum at bits 116-127 does not verify")
	}

	parsed, err := ParseLocationRequest(c, data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.Header.PacketID != 0x123 {
		t.Errorf("packet_id = 0x%X, want 0x123", parsed.Header.PacketID)
	}
	if !parsed.Header.Weather {
		t.Error("weather flag lost")
	}
	if math.Abs(parsed.Latitude-35.6762) > 1e-6 {
		t.Errorf("latitude = %v, want 35.6762 within 1e-6", parsed.Latitude)
	}
	if math.Abs(parsed.Longitude-139.6503) > 1e-6 {
		t.Errorf("longitude = %v, want 139.6503 within 1e-6", parsed.Longitude)
	}
	if parsed.Header.Version != ProtocolVersion {
		t.Errorf("version = %d, want %d", parsed.Header.Version, ProtocolVersion)
	}
}

func TestLocationResponse_Roundtrip(t *testing.T) {
	c := DefaultCodec()

	resp := &LocationResponse{
		Header: Header{
			PacketID:     0x456,
			ResponseAuth: true,
			Timestamp:    1700000100,
			AreaCode:     0x11A2B,
		},
	}

	data, err := resp.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(data) != HeaderSize {
		t.Errorf("serialized length = %d, want %d", len(data), HeaderSize)
	}

	parsed, err := ParseLocationResponse(c, data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.AreaCode() != 0x11A2B {
		t.Errorf("area_code = 0x%X, want 0x11A2B", parsed.AreaCode())
	}
	if !parsed.Header.ResponseAuth {
		t.Error("response_auth flag lost")
	}
}

func TestLocationResponseEx_RecoversExtensions(t *testing.T) {
	c := DefaultCodec()

	resp := &LocationResponse{
		Header: Header{PacketID: 9, AreaCode: 4050, Timestamp: 1700000000},
		Extensions: map[string]interface{}{
			FieldLatitude:  34.6937,
			FieldLongitude: 135.5023,
			FieldSource:    "10.0.0.1:4050",
		},
	}

	data, err := resp.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	ex, err := ParseLocationResponseEx(c, data)
	if err != nil {
		t.Fatalf("ParseLocationResponseEx failed: %v", err)
	}
	if ex.AreaCode() != 4050 {
		t.Errorf("area_code = %d, want 4050", ex.AreaCode())
	}
	if !ex.HasCoordinates {
		t.Fatal("coordinates not recovered")
	}
	if math.Abs(ex.Latitude-34.6937) > 1e-6 || math.Abs(ex.Longitude-135.5023) > 1e-6 {
		t.Errorf("coordinates = (%v, %v)", ex.Latitude, ex.Longitude)
	}
	if ex.Source != "10.0.0.1:4050" {
		t.Errorf("source = %q, want 10.0.0.1:4050", ex.Source)
	}
}

func TestQueryRoundtrip(t *testing.T) {
	c := DefaultCodec()

	req := &QueryRequest{
		Header: Header{
			PacketID:  0x7FF,
			Weather:   true,
			Pop:       true,
			Alert:     true,
			Day:       3,
			Timestamp: 1700000200,
			AreaCode:  13101,
		},
	}

	data, err := req.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(data) != HeaderSize {
		t.Errorf("request length = %d, want %d", len(data), HeaderSize)
	}

	parsedReq, err := ParseQueryRequest(c, data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsedReq.Header.Day != 3 {
		t.Errorf("day = %d, want 3", parsedReq.Header.Day)
	}
	if parsedReq.Header.AreaCode != 13101 {
		t.Errorf("area_code = %d, want 13101", parsedReq.Header.AreaCode)
	}
	if !parsedReq.Header.Weather || !parsedReq.Header.Pop || !parsedReq.Header.Alert {
		t.Error("request flags lost")
	}
	if parsedReq.Header.Temperature || parsedReq.Header.Disaster {
		t.Error("unset request flags appeared")
	}

	resp := &QueryResponse{
		Header: Header{PacketID: 0x7FF, Timestamp: 1700000201, AreaCode: 13101},
		Tail:   Tail{WeatherCode: 200, Temperature: -5, Precipitation: 30},
		Alerts: []string{"heavy rain"},
	}

	data, err = resp.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(data) <= HeaderTailSize {
		t.Errorf("response length = %d, want > %d (tail + extension)", len(data), HeaderTailSize)
	}

	parsedResp, err := ParseQueryResponse(c, data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsedResp.Tail.WeatherCode != 200 {
		t.Errorf("weather_code = %d, want 200", parsedResp.Tail.WeatherCode)
	}
	if parsedResp.Tail.Temperature != -5 {
		t.Errorf("temperature = %d, want -5", parsedResp.Tail.Temperature)
	}
	if parsedResp.Tail.Precipitation != 30 {
		t.Errorf("precipitation = %d, want 30", parsedResp.Tail.Precipitation)
	}
	if !reflect.DeepEqual(parsedResp.Alerts, []string{"heavy rain"}) {
		t.Errorf("alerts = %v", parsedResp.Alerts)
	}
}

func TestTemperatureOffsetOnWire(t *testing.T) {
	c := DefaultCodec()

	resp := &QueryResponse{
		Header: Header{PacketID: 1, Timestamp: 1},
		Tail:   Tail{Temperature: 23},
	}
	data, err := resp.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if got := wire.Extract(data, BitTemperature, 8); got != 123 {
		t.Errorf("stored temperature = %d, want 123 (23+100)", got)
	}
}

func TestReportRequest_AuthScenario(t *testing.T) {
	c := DefaultCodec()

	req := &ReportRequest{
		Header: Header{
			PacketID:  0x2AB,
			Disaster:  true,
			Timestamp: 1700000300,
			AreaCode:  27100,
		},
		Disasters: []string{"earthquake", "tsunami"},
	}
	req.FinalizeAuth(SHA256AuthHasher{}, "test")

	data, err := req.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if wire.Extract(data, BitRequestAuth, 1) != 1 {
		t.Error("request_auth bit (25) not set after FinalizeAuth")
	}

	parsed, err := ParseReportRequest(c, data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.AuthHash() == "" {
		t.Fatal("auth_hash extension missing after roundtrip")
	}

	wantDigest := SHA256AuthHasher{}.Compute(0x2AB, 1700000300, "test")
	if len(parsed.AuthHash()) != len(wantDigest)*2 {
		t.Errorf("auth_hash length = %d, want %d hex chars", len(parsed.AuthHash()), len(wantDigest)*2)
	}
	if parsed.AuthHash() != req.AuthHash() {
		t.Error("auth_hash changed across roundtrip")
	}
	if !reflect.DeepEqual(parsed.Disasters, []string{"earthquake", "tsunami"}) {
		t.Errorf("disasters = %v", parsed.Disasters)
	}
}

func TestReportResponse_Roundtrip(t *testing.T) {
	c := DefaultCodec()

	resp := &ReportResponse{
		Header: Header{PacketID: 0x2AB, ResponseAuth: true, Timestamp: 1700000301, AreaCode: 27100},
		Tail:   Tail{WeatherCode: 301, Temperature: 18, Precipitation: 80},
		Alerts: []string{"evacuation"},
		Source: "203.0.113.7:4050",
	}

	data, err := resp.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	parsed, err := ParseReportResponse(c, data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.Source != "203.0.113.7:4050" {
		t.Errorf("source = %q", parsed.Source)
	}
	if !reflect.DeepEqual(parsed.Alerts, []string{"evacuation"}) {
		t.Errorf("alerts = %v", parsed.Alerts)
	}
	if parsed.Tail.Temperature != 18 {
		t.Errorf("temperature = %d, want 18", parsed.Tail.Temperature)
	}
}

func TestErrorResponse_Scenario(t *testing.T) {
	c := DefaultCodec()

	notFound := &ErrorResponse{
		Header: Header{PacketID: 5, Timestamp: 1700000400},
		Code:   404,
	}
	if notFound.Description() != "Not Found" {
		t.Errorf("404 description = %q, want Not Found", notFound.Description())
	}
	if notFound.IsFatal() {
		t.Error("404 reported fatal")
	}

	internal := &ErrorResponse{Code: 500}
	if internal.Description() != "Internal Server Error" {
		t.Errorf("500 description = %q, want Internal Server Error", internal.Description())
	}
	if !internal.IsFatal() {
		t.Error("500 not reported fatal")
	}

	unknown := &ErrorResponse{Code: 418}
	if unknown.Description() != "Unknown Error" {
		t.Errorf("418 description = %q, want Unknown Error", unknown.Description())
	}

	edge := &ErrorResponse{Code: 599}
	if !edge.IsFatal() {
		t.Error("599 not reported fatal")
	}
	if (&ErrorResponse{Code: 600}).IsFatal() {
		t.Error("600 reported fatal")
	}

	data, err := notFound.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(data) != HeaderTailSize {
		t.Errorf("length = %d, want %d", len(data), HeaderTailSize)
	}
	parsed, err := ParseErrorResponse(c, data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.Code != 404 {
		t.Errorf("code = %d, want 404", parsed.Code)
	}
}

func TestParse_DispatchesEveryVariant(t *testing.T) {
	c := DefaultCodec()

	packets := []Packet{
		&LocationRequest{Header: Header{PacketID: 1, Timestamp: 10}, Latitude: 1, Longitude: 2},
		&LocationResponse{Header: Header{PacketID: 2, Timestamp: 11, AreaCode: 100}},
		&QueryRequest{Header: Header{PacketID: 3, Timestamp: 12, AreaCode: 200}},
		&QueryResponse{Header: Header{PacketID: 4, Timestamp: 13}, Tail: Tail{WeatherCode: 1}},
		&ReportRequest{Header: Header{PacketID: 5, Timestamp: 14}, Disasters: []string{"fire"}},
		&ReportResponse{Header: Header{PacketID: 6, Timestamp: 15}, Tail: Tail{WeatherCode: 2}},
		&ErrorResponse{Header: Header{PacketID: 7, Timestamp: 16}, Code: 503},
	}

	for _, p := range packets {
		data, err := p.Encode(c)
		if err != nil {
			t.Fatalf("Encode type %d failed: %v", p.Type(), err)
		}

		parsed, err := Parse(c, data)
		if err != nil {
			t.Fatalf("Parse type %d failed: %v", p.Type(), err)
		}
		if parsed.Type() != p.Type() {
			t.Errorf("dispatched type = %d, want %d", parsed.Type(), p.Type())
		}
	}
}

func TestParse_ErrorTaxonomy(t *testing.T) {
	c := DefaultCodec()

	// InsufficientData
	if _, err := ParseQueryRequest(c, make([]byte, 10)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("short buffer error = %v, want ErrInsufficientData", err)
	}
	if _, err := ParseQueryResponse(c, make([]byte, HeaderSize)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("headerless-tail error = %v, want ErrInsufficientData", err)
	}

	// WrongPacketType
	req := &QueryRequest{Header: Header{PacketID: 1, Timestamp: 1}}
	data, err := req.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := ParseReportRequest(c, data); !errors.Is(err, ErrWrongPacketType) {
		t.Errorf("mismatched type error = %v, want ErrWrongPacketType", err)
	}

	// ChecksumMismatch: corrupt one non-checksum byte
	corrupted := make([]byte, len(data))
	copy(corrupted, data)
	corrupted[3] ^= 0xFF
	if !wire.VerifyAt(data, BitChecksum) {
		t.Fatal("pristine packet failed verification")
	}
	if wire.VerifyAt(corrupted, BitChecksum) {
		t.Error("corrupted packet passed verification")
	}
	if _, err := ParseQueryRequest(c, corrupted); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("corrupted packet error = %v, want ErrChecksumMismatch", err)
	}
}

func TestHeader_FieldWidthTruncation(t *testing.T) {
	c := DefaultCodec()

	// AreaCode above 20 bits truncates on the wire rather than failing
	req := &QueryRequest{Header: Header{PacketID: 1, Timestamp: 1, AreaCode: 0x1FFFFF}}
	data, err := req.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	parsed, err := ParseQueryRequest(c, data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.Header.AreaCode != 0xFFFFF {
		t.Errorf("area_code = 0x%X, want truncated 0xFFFFF", parsed.Header.AreaCode)
	}
}

func TestHeaderBitPlacement(t *testing.T) {
	c := DefaultCodec()

	req := &QueryRequest{Header: Header{
		PacketID:  0xABC,
		Day:       5,
		Timestamp: 0x1122334455667788,
		AreaCode:  0xFEDCB,
	}}
	data, err := req.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if got := wire.Extract(data, BitVersion, 4); got != ProtocolVersion {
		t.Errorf("version bits = %d, want %d", got, ProtocolVersion)
	}
	if got := wire.Extract(data, BitPacketID, 12); got != 0xABC {
		t.Errorf("packet_id bits = 0x%X, want 0xABC", got)
	}
	if got := wire.Extract(data, BitType, 3); got != TypeQueryRequest {
		t.Errorf("type bits = %d, want %d", got, TypeQueryRequest)
	}
	if got := wire.Extract(data, BitDay, 3); got != 5 {
		t.Errorf("day bits = %d, want 5", got)
	}
	if got := wire.Extract(data, BitTimestamp, 64); got != 0x1122334455667788 {
		t.Errorf("timestamp bits = 0x%X", got)
	}
	if got := wire.Extract(data, BitAreaCode, 20); got != 0xFEDCB {
		t.Errorf("area_code bits = 0x%X, want 0xFEDCB", got)
	}
}

func TestPeekType(t *testing.T) {
	c := DefaultCodec()

	resp := &ErrorResponse{Header: Header{PacketID: 1, Timestamp: 1}, Code: 400}
	data, err := resp.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	typ, err := PeekType(data)
	if err != nil {
		t.Fatalf("PeekType failed: %v", err)
	}
	if typ != TypeErrorResponse {
		t.Errorf("type = %d, want %d", typ, TypeErrorResponse)
	}

	if _, err := PeekType([]byte{0x01}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("PeekType on tiny buffer = %v, want ErrInsufficientData", err)
	}
}
