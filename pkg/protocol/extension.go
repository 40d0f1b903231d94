package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// FieldKind selects the value encoding for a registered extension field.
type FieldKind int

const (
	// KindCoordinate: float64 degrees <-> 32-bit LE signed micro-degrees
	// (round(degrees * 1e6), about 0.11 m resolution at the equator).
	KindCoordinate FieldKind = iota

	// KindStringList: []string <-> comma-joined UTF-8 bytes.
	KindStringList

	// KindSource: "ip:port" <-> 64-bit LE unsigned built by decimal digit
	// concatenation (first octet unpadded, three octets %03d, port %05d).
	KindSource

	// KindString: string <-> raw UTF-8 bytes.
	KindString
)

// FieldDef registers one extension field: a name, a 6-bit wire id, and the
// value encoding to apply.
type FieldDef struct {
	Name string
	ID   uint8
	Kind FieldKind
}

// Registry is the bidirectional name <-> (id, kind) mapping for extension
// fields. It is built once and read-only afterwards, so a single Registry is
// safe to share across any number of goroutines.
type Registry struct {
	byName map[string]FieldDef
	byID   map[uint8]FieldDef
}

// NewRegistry builds a registry from defs. Ids must fit the 6-bit wire
// space and names and ids must be unique.
func NewRegistry(defs ...FieldDef) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]FieldDef, len(defs)),
		byID:   make(map[uint8]FieldDef, len(defs)),
	}

	for _, d := range defs {
		if d.ID > MaxExtensionID {
			return nil, fmt.Errorf("extension id %d for %q exceeds 6-bit space", d.ID, d.Name)
		}
		if _, ok := r.byName[d.Name]; ok {
			return nil, fmt.Errorf("duplicate extension name: %q", d.Name)
		}
		if prev, ok := r.byID[d.ID]; ok {
			return nil, fmt.Errorf("duplicate extension id %d (%q and %q)", d.ID, prev.Name, d.Name)
		}
		r.byName[d.Name] = d
		r.byID[d.ID] = d
	}

	return r, nil
}

// LookupName returns the definition registered under name.
func (r *Registry) LookupName(name string) (FieldDef, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// LookupID returns the definition registered under id.
func (r *Registry) LookupID(id uint8) (FieldDef, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// defaultCatalog is the standard WIP extension field catalog.
func defaultCatalog() []FieldDef {
	return []FieldDef{
		{Name: FieldLatitude, ID: IDLatitude, Kind: KindCoordinate},
		{Name: FieldLongitude, ID: IDLongitude, Kind: KindCoordinate},
		{Name: FieldAlert, ID: IDAlert, Kind: KindStringList},
		{Name: FieldDisaster, ID: IDDisaster, Kind: KindStringList},
		{Name: FieldSource, ID: IDSource, Kind: KindSource},
		{Name: FieldAuthHash, ID: IDAuthHash, Kind: KindString},
	}
}

// Codec encodes and decodes extension blocks against one registry. A Codec
// is stateless per call and safe for concurrent use.
type Codec struct {
	reg *Registry
}

// NewCodec creates a codec bound to reg.
func NewCodec(reg *Registry) *Codec {
	return &Codec{reg: reg}
}

var (
	defaultCodecOnce sync.Once
	defaultCodec     *Codec
)

// DefaultCodec returns the shared codec for the standard field catalog,
// built lazily on first use.
func DefaultCodec() *Codec {
	defaultCodecOnce.Do(func() {
		reg, err := NewRegistry(defaultCatalog()...)
		if err != nil {
			// The built-in catalog is a compile-time constant; failing to
			// build it is a bug, not an input condition.
			panic(err)
		}
		defaultCodec = NewCodec(reg)
	})
	return defaultCodec
}

// Registry returns the codec's registry.
func (c *Codec) Registry() *Registry {
	return c.reg
}

// Encode serializes fields into a concatenated sequence of self-describing
// entries: a 16-bit LE header packing length:10 | id:6, then the payload.
// Unregistered names are skipped. Payloads over 1023 bytes are dropped
// without error; that quirk is part of the wire contract. Entry order
// follows map iteration and carries no meaning to the decoder.
func (c *Codec) Encode(fields map[string]interface{}) ([]byte, error) {
	var out []byte

	for name, value := range fields {
		def, ok := c.reg.LookupName(name)
		if !ok {
			continue
		}

		payload, err := encodeValue(def, value)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", name, err)
		}
		if len(payload) > MaxExtensionPayload {
			continue
		}

		hdr := uint16(len(payload)) | uint16(def.ID)<<10
		entry := make([]byte, extensionHeaderSize, extensionHeaderSize+len(payload))
		binary.LittleEndian.PutUint16(entry, hdr)
		out = append(out, append(entry, payload...)...)
	}

	return out, nil
}

// Decode walks the entry sequence and returns a name -> value map. It stops
// cleanly when fewer than two bytes remain or a declared length overruns the
// buffer (truncated trailer), skips unregistered ids for forward
// compatibility, and lets later entries overwrite earlier ones with the
// same name.
func (c *Codec) Decode(data []byte) (map[string]interface{}, error) {
	fields := make(map[string]interface{})

	for len(data) >= extensionHeaderSize {
		hdr := binary.LittleEndian.Uint16(data)
		length := int(hdr & 0x3FF)
		id := uint8(hdr >> 10)

		if length > len(data)-extensionHeaderSize {
			break
		}
		payload := data[extensionHeaderSize : extensionHeaderSize+length]
		data = data[extensionHeaderSize+length:]

		def, ok := c.reg.LookupID(id)
		if !ok {
			continue
		}

		value, err := decodeValue(def, payload)
		if err != nil {
			return nil, fmt.Errorf("decode field %q: %w", def.Name, err)
		}
		fields[def.Name] = value
	}

	return fields, nil
}

func encodeValue(def FieldDef, value interface{}) ([]byte, error) {
	switch def.Kind {
	case KindCoordinate:
		deg, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("expected float64 degrees, got %T", value)
		}
		micro := int32(math.Round(deg * 1e6))
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(micro))
		return buf, nil

	case KindStringList:
		list, ok := value.([]string)
		if !ok {
			return nil, fmt.Errorf("expected []string, got %T", value)
		}
		return []byte(strings.Join(list, ",")), nil

	case KindSource:
		addr, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected ip:port string, got %T", value)
		}
		packed, err := packSource(addr)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, packed)
		return buf, nil

	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return []byte(s), nil
	}

	return nil, fmt.Errorf("unknown field kind %d", def.Kind)
}

func decodeValue(def FieldDef, payload []byte) (interface{}, error) {
	switch def.Kind {
	case KindCoordinate:
		if len(payload) != 4 {
			return nil, fmt.Errorf("coordinate payload is %d bytes (expected 4)", len(payload))
		}
		micro := int32(binary.LittleEndian.Uint32(payload))
		return float64(micro) / 1e6, nil

	case KindStringList:
		if !utf8.Valid(payload) {
			return nil, ErrInvalidUTF8
		}
		if len(payload) == 0 {
			return []string{}, nil
		}
		return strings.Split(string(payload), ","), nil

	case KindSource:
		if len(payload) != 8 {
			return nil, fmt.Errorf("source payload is %d bytes (expected 8)", len(payload))
		}
		return unpackSource(binary.LittleEndian.Uint64(payload)), nil

	case KindString:
		if !utf8.Valid(payload) {
			return nil, ErrInvalidUTF8
		}
		return string(payload), nil
	}

	return nil, fmt.Errorf("unknown field kind %d", def.Kind)
}

// packSource turns "a.b.c.d:port" into one decimal integer: the first octet
// unpadded, the remaining octets zero-padded to 3 digits, the port to 5.
func packSource(addr string) (uint64, error) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return 0, fmt.Errorf("source %q is not ip:port", addr)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("source %q has invalid port", addr)
	}

	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("source %q is not an IPv4 address", addr)
	}
	octets := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return 0, fmt.Errorf("source %q has invalid octet %q", addr, p)
		}
		octets[i] = n
	}

	digits := fmt.Sprintf("%d%03d%03d%03d%05d", octets[0], octets[1], octets[2], octets[3], port)
	return strconv.ParseUint(digits, 10, 64)
}

// unpackSource reverses packSource by slicing the decimal representation
// from the right: 5 digits of port, three 3-digit octets, remainder is the
// first octet (empty means zero).
func unpackSource(v uint64) string {
	digits := strconv.FormatUint(v, 10)
	// Restore leading zeros lost by integer formatting
	for len(digits) < 14 {
		digits = "0" + digits
	}

	port, _ := strconv.Atoi(digits[len(digits)-5:])
	digits = digits[:len(digits)-5]

	var octets [4]int
	for i := 3; i >= 1; i-- {
		octets[i], _ = strconv.Atoi(digits[len(digits)-3:])
		digits = digits[:len(digits)-3]
	}
	if digits != "" {
		octets[0], _ = strconv.Atoi(digits)
	}

	return fmt.Sprintf("%d.%d.%d.%d:%d", octets[0], octets[1], octets[2], octets[3], port)
}
