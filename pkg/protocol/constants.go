package protocol

// WIP protocol version carried in the header version field
const ProtocolVersion = 1

// Packet type discriminants (3-bit header field)
const (
	TypeLocationRequest  = 0
	TypeLocationResponse = 1
	TypeQueryRequest     = 2
	TypeQueryResponse    = 3
	TypeReportRequest    = 4
	TypeReportResponse   = 5
	TypeErrorResponse    = 7 // 6 is unused
)

// Packet size constants (in bytes)
const (
	HeaderSize     = 16 // fixed header: Location request/response, Query request, Report request
	HeaderTailSize = 20 // header + weather/temperature/precipitation tail: Query/Report responses, ErrorResponse
)

// Header field bit offsets (LSB of byte 0 is bit 0) and widths
const (
	BitVersion      = 0 // 4 bits
	BitPacketID     = 4 // 12 bits
	BitType         = 16 // 3 bits
	BitWeatherFlag  = 19 // 1 bit
	BitTempFlag     = 20 // 1 bit
	BitPopFlag      = 21 // 1 bit
	BitAlertFlag    = 22 // 1 bit
	BitDisasterFlag = 23 // 1 bit
	BitExFlag       = 24 // 1 bit
	BitRequestAuth  = 25 // 1 bit
	BitResponseAuth = 26 // 1 bit
	BitDay          = 27 // 3 bits
	// bits 30-31 reserved
	BitTimestamp = 32  // 64 bits
	BitAreaCode  = 96  // 20 bits
	BitChecksum  = 116 // 12 bits
	// Tail fields, present on 20-byte variants only
	BitWeatherCode   = 128 // 16 bits
	BitTemperature   = 144 // 8 bits, stored as degrees+100
	BitPrecipitation = 152 // 8 bits
)

// Field value limits implied by the bit widths
const (
	MaxPacketID = 0xFFF   // 12-bit packet id space
	MaxAreaCode = 0xFFFFF // 20-bit area code space
	MaxDay      = 7       // 3-bit forecast day offset
)

// Temperature tail encoding offset: stored = degrees + 100
const TemperatureOffset = 100

// Extension entry limits: 16-bit LE entry header packs length:10 | id:6
const (
	MaxExtensionPayload = 1023 // 10-bit length field
	MaxExtensionID      = 63   // 6-bit id field
	extensionHeaderSize = 2
)

// Registered extension field names
const (
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
	FieldAlert     = "alert"
	FieldDisaster  = "disaster"
	FieldSource    = "source"
	FieldAuthHash  = "auth_hash"
)

// Registered extension field ids. Latitude is pinned at 33 by the wire
// format; the rest follow contiguously in the 6-bit id space.
const (
	IDLatitude  = 33
	IDLongitude = 34
	IDAlert     = 35
	IDDisaster  = 36
	IDSource    = 37
	IDAuthHash  = 38
)
