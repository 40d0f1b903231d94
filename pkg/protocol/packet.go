package protocol

import (
	"fmt"

	"github.com/wipnet/wip-nexus/pkg/wire"
)

// Packet is the tagged union over the seven catalog variants. Packets are
// value objects built per exchange; they have no lifecycle beyond a single
// request/response round trip.
type Packet interface {
	// Type returns the 3-bit wire discriminant of the variant.
	Type() uint8

	// Encode serializes the packet, embedding the checksum over the fully
	// assembled buffer.
	Encode(c *Codec) ([]byte, error)
}

// PeekType reads the 3-bit discriminant without validating the rest of the
// buffer, for transport-level dispatch.
func PeekType(data []byte) (uint8, error) {
	if len(data) < 3 {
		return 0, fmt.Errorf("%w: %d bytes", ErrInsufficientData, len(data))
	}
	return uint8(wire.Extract(data, BitType, 3)), nil
}

// PeekHeader reads the shared header without checksum validation, so error
// replies can still be correlated to requests that fail full decoding. The
// second return is false when not even a full header is present.
func PeekHeader(data []byte) (Header, bool) {
	if len(data) < HeaderSize {
		return Header{}, false
	}
	return readHeader(data), true
}

// Parse decodes data into the catalog variant named by its discriminant.
func Parse(c *Codec, data []byte) (Packet, error) {
	typ, err := PeekType(data)
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeLocationRequest:
		return ParseLocationRequest(c, data)
	case TypeLocationResponse:
		return ParseLocationResponse(c, data)
	case TypeQueryRequest:
		return ParseQueryRequest(c, data)
	case TypeQueryResponse:
		return ParseQueryResponse(c, data)
	case TypeReportRequest:
		return ParseReportRequest(c, data)
	case TypeReportResponse:
		return ParseReportResponse(c, data)
	case TypeErrorResponse:
		return ParseErrorResponse(c, data)
	}

	return nil, fmt.Errorf("%w: unknown discriminant %d", ErrWrongPacketType, typ)
}

// encodePacket assembles header, optional tail, and optional extension
// block, then embeds the checksum over the complete buffer. ExFlag is forced
// on whenever the encoded extension block is non-empty.
func encodePacket(c *Codec, h Header, tail *Tail, ext map[string]interface{}) ([]byte, error) {
	if h.Version == 0 {
		h.Version = ProtocolVersion
	}

	var extBytes []byte
	if len(ext) > 0 {
		var err error
		extBytes, err = c.Encode(ext)
		if err != nil {
			return nil, err
		}
	}
	if len(extBytes) > 0 {
		h.ExFlag = true
	}

	size := HeaderSize
	if tail != nil {
		size = HeaderTailSize
	}

	buf := make([]byte, size, size+len(extBytes))
	writeHeader(buf, &h)
	if tail != nil {
		writeTail(buf, tail)
	}
	buf = append(buf, extBytes...)

	wire.EmbedAt(buf, BitChecksum)
	return buf, nil
}

// decodePacket validates length, discriminant, and checksum, then extracts
// the header, optional tail, and any trailing extension block.
func decodePacket(c *Codec, data []byte, wantType uint8, withTail bool) (Header, Tail, map[string]interface{}, error) {
	minLen := HeaderSize
	if withTail {
		minLen = HeaderTailSize
	}

	if len(data) < minLen {
		return Header{}, Tail{}, nil, fmt.Errorf("%w: %d bytes (minimum %d)",
			ErrInsufficientData, len(data), minLen)
	}

	typ := uint8(wire.Extract(data, BitType, 3))
	if typ != wantType {
		return Header{}, Tail{}, nil, fmt.Errorf("%w: got %d, expected %d",
			ErrWrongPacketType, typ, wantType)
	}

	if !wire.VerifyAt(data, BitChecksum) {
		return Header{}, Tail{}, nil, ErrChecksumMismatch
	}

	h := readHeader(data)
	var t Tail
	if withTail {
		t = readTail(data)
	}

	var ext map[string]interface{}
	if len(data) > minLen {
		var err error
		ext, err = c.Decode(data[minLen:])
		if err != nil {
			return Header{}, Tail{}, nil, err
		}
	}

	return h, t, ext, nil
}
