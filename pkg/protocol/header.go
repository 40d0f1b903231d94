package protocol

import (
	"github.com/wipnet/wip-nexus/pkg/wire"
)

// Header is the shared fixed header carried by every WIP packet. All fields
// live in declared bit ranges of the first 16 bytes; see constants.go for
// the layout. Values wider than their field are truncated on encode, which
// is the documented wire behavior.
type Header struct {
	Version  uint8  // 4 bits, expected ProtocolVersion
	PacketID uint16 // 12 bits, request/response correlation
	Type     uint8  // 3 bits, packet discriminant

	// Request-side "please include this field" markers
	Weather     bool
	Temperature bool
	Pop         bool // probability of precipitation
	Alert       bool
	Disaster    bool

	ExFlag       bool  // extension block present
	RequestAuth  bool  // authentication sub-protocol markers
	ResponseAuth bool
	Day          uint8  // 3 bits, forecast day offset
	Timestamp    uint64 // unix seconds
	AreaCode     uint32 // 20 bits, geographic region
}

// Tail is the scalar tail carried by Query/Report responses and
// ErrorResponse, occupying bytes 16-19.
type Tail struct {
	WeatherCode   uint16
	Temperature   int // degrees Celsius, stored on the wire as degrees+100
	Precipitation uint8
}

// headerTable describes the shared header layout, built once at package
// init and read-only afterwards.
var headerTable = wire.NewFieldTable(
	wire.Field{Name: "version", Start: BitVersion, Width: 4},
	wire.Field{Name: "packet_id", Start: BitPacketID, Width: 12},
	wire.Field{Name: "type", Start: BitType, Width: 3},
	wire.Field{Name: "weather_flag", Start: BitWeatherFlag, Width: 1},
	wire.Field{Name: "temperature_flag", Start: BitTempFlag, Width: 1},
	wire.Field{Name: "pop_flag", Start: BitPopFlag, Width: 1},
	wire.Field{Name: "alert_flag", Start: BitAlertFlag, Width: 1},
	wire.Field{Name: "disaster_flag", Start: BitDisasterFlag, Width: 1},
	wire.Field{Name: "ex_flag", Start: BitExFlag, Width: 1},
	wire.Field{Name: "request_auth", Start: BitRequestAuth, Width: 1},
	wire.Field{Name: "response_auth", Start: BitResponseAuth, Width: 1},
	wire.Field{Name: "day", Start: BitDay, Width: 3},
	wire.Field{Name: "timestamp", Start: BitTimestamp, Width: 64},
	wire.Field{Name: "area_code", Start: BitAreaCode, Width: 20},
	wire.Field{Name: "checksum", Start: BitChecksum, Width: 12},
)

// tailTable describes the response tail layout on 20-byte variants.
var tailTable = wire.NewFieldTable(
	wire.Field{Name: "weather_code", Start: BitWeatherCode, Width: 16},
	wire.Field{Name: "temperature", Start: BitTemperature, Width: 8},
	wire.Field{Name: "precipitation", Start: BitPrecipitation, Width: 8},
)

func setField(buf []byte, t *wire.FieldTable, name string, v uint64) {
	if f, ok := t.Lookup(name); ok {
		wire.Set(buf, f.Start, f.Width, v)
	}
}

func getField(buf []byte, t *wire.FieldTable, name string) uint64 {
	f, ok := t.Lookup(name)
	if !ok {
		return 0
	}
	return wire.Extract(buf, f.Start, f.Width)
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// writeHeader populates the header bit ranges of buf. The checksum field is
// left zero; EmbedAt fills it after the full packet is assembled.
func writeHeader(buf []byte, h *Header) {
	setField(buf, headerTable, "version", uint64(h.Version))
	setField(buf, headerTable, "packet_id", uint64(h.PacketID))
	setField(buf, headerTable, "type", uint64(h.Type))
	setField(buf, headerTable, "weather_flag", b2u(h.Weather))
	setField(buf, headerTable, "temperature_flag", b2u(h.Temperature))
	setField(buf, headerTable, "pop_flag", b2u(h.Pop))
	setField(buf, headerTable, "alert_flag", b2u(h.Alert))
	setField(buf, headerTable, "disaster_flag", b2u(h.Disaster))
	setField(buf, headerTable, "ex_flag", b2u(h.ExFlag))
	setField(buf, headerTable, "request_auth", b2u(h.RequestAuth))
	setField(buf, headerTable, "response_auth", b2u(h.ResponseAuth))
	setField(buf, headerTable, "day", uint64(h.Day))
	setField(buf, headerTable, "timestamp", h.Timestamp)
	setField(buf, headerTable, "area_code", uint64(h.AreaCode))
}

// readHeader extracts the header fields from buf. The caller has already
// checked the buffer length.
func readHeader(buf []byte) Header {
	return Header{
		Version:      uint8(getField(buf, headerTable, "version")),
		PacketID:     uint16(getField(buf, headerTable, "packet_id")),
		Type:         uint8(getField(buf, headerTable, "type")),
		Weather:      getField(buf, headerTable, "weather_flag") != 0,
		Temperature:  getField(buf, headerTable, "temperature_flag") != 0,
		Pop:          getField(buf, headerTable, "pop_flag") != 0,
		Alert:        getField(buf, headerTable, "alert_flag") != 0,
		Disaster:     getField(buf, headerTable, "disaster_flag") != 0,
		ExFlag:       getField(buf, headerTable, "ex_flag") != 0,
		RequestAuth:  getField(buf, headerTable, "request_auth") != 0,
		ResponseAuth: getField(buf, headerTable, "response_auth") != 0,
		Day:          uint8(getField(buf, headerTable, "day")),
		Timestamp:    getField(buf, headerTable, "timestamp"),
		AreaCode:     uint32(getField(buf, headerTable, "area_code")),
	}
}

func writeTail(buf []byte, t *Tail) {
	setField(buf, tailTable, "weather_code", uint64(t.WeatherCode))
	setField(buf, tailTable, "temperature", uint64(uint8(t.Temperature+TemperatureOffset)))
	setField(buf, tailTable, "precipitation", uint64(t.Precipitation))
}

func readTail(buf []byte) Tail {
	return Tail{
		WeatherCode:   uint16(getField(buf, tailTable, "weather_code")),
		Temperature:   int(getField(buf, tailTable, "temperature")) - TemperatureOffset,
		Precipitation: uint8(getField(buf, tailTable, "precipitation")),
	}
}
