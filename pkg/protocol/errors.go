package protocol

import "errors"

// Parse error taxonomy. Parse failures wrap one of these sentinels with
// context, so callers can branch with errors.Is. Unknown extension ids are
// not an error: they are skipped for forward compatibility.
var (
	// ErrInsufficientData means the buffer is shorter than the variant's
	// minimum length.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrWrongPacketType means the 3-bit discriminant does not match the
	// expected variant.
	ErrWrongPacketType = errors.New("wrong packet type")

	// ErrChecksumMismatch means the embedded 12-bit checksum does not match
	// a recomputation over the buffer.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrInvalidUTF8 means a string-typed extension payload is not valid
	// UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8 payload")
)
