package protocol

import (
	"math/rand"
	"sync"
)

// PacketIDGenerator hands out 12-bit packet ids from a rolling counter.
// Many senders may request ids concurrently, so the counter is
// mutex-serialized. Uniqueness only holds within one 4096-id window;
// correlating retries across longer horizons is the caller's problem.
type PacketIDGenerator struct {
	mu   sync.Mutex
	next uint16
}

// NewPacketIDGenerator creates a generator starting at a random position in
// the id space, so parallel processes are unlikely to collide.
func NewPacketIDGenerator() *PacketIDGenerator {
	return &PacketIDGenerator{next: uint16(rand.Intn(MaxPacketID + 1))}
}

// NextID returns the next 12-bit packet id, wrapping at 4095.
func (g *PacketIDGenerator) NextID() uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.next
	g.next = (g.next + 1) & MaxPacketID
	return id
}
