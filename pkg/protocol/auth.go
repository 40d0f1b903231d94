package protocol

import (
	"crypto/sha256"
	"encoding/binary"
)

// AuthHasher computes the request authentication digest for the report
// sub-protocol. The digest covers the packet id, the timestamp, and a
// shared passphrase, binding the hash to one specific request.
type AuthHasher interface {
	Compute(packetID uint16, timestamp uint64, passphrase string) []byte
}

// SHA256AuthHasher is the standard AuthHasher: SHA-256 over the
// little-endian packet id, the little-endian timestamp, and the raw
// passphrase bytes, in that order.
type SHA256AuthHasher struct{}

// Compute returns the 32-byte digest.
func (SHA256AuthHasher) Compute(packetID uint16, timestamp uint64, passphrase string) []byte {
	h := sha256.New()

	var buf [10]byte
	binary.LittleEndian.PutUint16(buf[0:2], packetID)
	binary.LittleEndian.PutUint64(buf[2:10], timestamp)
	h.Write(buf[:])
	h.Write([]byte(passphrase))

	return h.Sum(nil)
}
