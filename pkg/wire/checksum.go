package wire

// 12-bit fold-and-complement checksum protecting WIP packets.
//
// The buffer is read as consecutive 12-bit words in the same LSB-first bit
// order used for header fields, with a short final word zero-padded. Words
// are summed into a wide accumulator, carries above bit 12 are folded back
// into the low 12 bits, and the result is complemented. An all-zero buffer
// of any length therefore checksums to 0xFFF.
//
// This is an integrity check against accidental corruption, not a security
// mechanism.

const (
	// ChecksumWidth is the checksum field width in bits.
	ChecksumWidth = 12

	// ChecksumMask masks an accumulator down to one checksum word.
	ChecksumMask = 0xFFF
)

// Calc computes the checksum over data. The result is always in [0, 0xFFF].
func Calc(data []byte) uint16 {
	totalBits := uint(len(data)) * 8

	var sum uint64
	for bit := uint(0); bit < totalBits; bit += ChecksumWidth {
		// Extract reads past-the-end bits as zero, which is exactly the
		// zero-padding the final short word needs.
		sum += Extract(data, bit, ChecksumWidth)
	}

	for sum>>ChecksumWidth != 0 {
		sum = (sum & ChecksumMask) + (sum >> ChecksumWidth)
	}

	return uint16(^sum) & ChecksumMask
}

// EmbedAt zeroes the checksum field at bitOffset, computes the checksum over
// the entire buffer, and writes it back in place. The buffer must be the
// fully assembled packet: header, tail, and extension block. It returns the
// embedded value.
func EmbedAt(buf []byte, bitOffset uint) uint16 {
	Set(buf, bitOffset, ChecksumWidth, 0)
	sum := Calc(buf)
	Set(buf, bitOffset, ChecksumWidth, uint64(sum))
	return sum
}

// VerifyAt checks the checksum stored at bitOffset against a recomputation
// over the whole buffer with the checksum field zeroed. Encode and verify
// always cover the same range: the complete assembled packet.
func VerifyAt(buf []byte, bitOffset uint) bool {
	stored := uint16(Extract(buf, bitOffset, ChecksumWidth))

	scratch := make([]byte, len(buf))
	copy(scratch, buf)
	Set(scratch, bitOffset, ChecksumWidth, 0)

	return stored == Calc(scratch)
}
