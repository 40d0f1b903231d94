package wire

import (
	"fmt"
)

// Bit-level field access for WIP packet buffers.
//
// Bit numbering is least-significant-bit-first: bit 0 is the LSB of byte 0,
// bit 8 is the LSB of byte 1, and so on. Multi-bit fields therefore read as
// little-endian values when they span byte boundaries. This ordering is
// load-bearing for wire compatibility and every field access in the protocol
// package goes through Extract/Set rather than ad hoc shifting.

// Extract returns the width-bit unsigned value starting at startBit.
// Bits beyond the end of the buffer read as zero. Width is capped at 64.
func Extract(buf []byte, startBit, width uint) uint64 {
	if width > 64 {
		width = 64
	}

	var v uint64
	for k := uint(0); k < width; k++ {
		pos := startBit + k
		idx := pos >> 3
		if idx >= uint(len(buf)) {
			break
		}
		if buf[idx]&(1<<(pos&7)) != 0 {
			v |= 1 << k
		}
	}
	return v
}

// Set writes the low width bits of value at startBit without disturbing
// adjacent bits. Value bits above width are masked off silently; callers
// relying on overflow detection must range-check before calling.
func Set(buf []byte, startBit, width uint, value uint64) {
	if width > 64 {
		width = 64
	}
	if width < 64 {
		value &= (1 << width) - 1
	}

	for k := uint(0); k < width; k++ {
		pos := startBit + k
		idx := pos >> 3
		if idx >= uint(len(buf)) {
			break
		}
		if value&(1<<k) != 0 {
			buf[idx] |= 1 << (pos & 7)
		} else {
			buf[idx] &^= 1 << (pos & 7)
		}
	}
}

// Field describes one named bit range inside a packet buffer.
type Field struct {
	Name  string
	Start uint // bit offset, LSB of byte 0 is bit 0
	Width uint // bits
}

// FieldTable is an ordered set of named bit ranges with O(1) name lookup.
// Each packet variant builds one table from its declarative layout at package
// init; tables are read-only afterwards and safe for concurrent use.
type FieldTable struct {
	fields []Field
	index  map[string]int
}

// NewFieldTable builds a table from the given layout. Duplicate names keep
// the first entry.
func NewFieldTable(fields ...Field) *FieldTable {
	t := &FieldTable{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(t.fields, fields)
	for i, f := range fields {
		if _, ok := t.index[f.Name]; !ok {
			t.index[f.Name] = i
		}
	}
	return t
}

// Lookup returns the field definition for name.
func (t *FieldTable) Lookup(name string) (Field, bool) {
	i, ok := t.index[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// Fields returns the layout in declaration order.
func (t *FieldTable) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// Extract reads the named field from buf.
func (t *FieldTable) Extract(buf []byte, name string) (uint64, error) {
	f, ok := t.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("unknown field: %s", name)
	}
	return Extract(buf, f.Start, f.Width), nil
}

// Set writes the named field into buf, truncating value to the field width.
func (t *FieldTable) Set(buf []byte, name string, value uint64) error {
	f, ok := t.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown field: %s", name)
	}
	Set(buf, f.Start, f.Width, value)
	return nil
}

// Uint128 is an unsigned 128-bit value used for whole-header conversions.
type Uint128 struct {
	Lo uint64
	Hi uint64
}

// Uint128FromBytes converts a 16-byte little-endian buffer to a Uint128.
func Uint128FromBytes(b []byte) (Uint128, error) {
	if len(b) != 16 {
		return Uint128{}, fmt.Errorf("invalid buffer length for uint128: %d (expected 16)", len(b))
	}

	var u Uint128
	for i := 0; i < 8; i++ {
		u.Lo |= uint64(b[i]) << (8 * uint(i))
		u.Hi |= uint64(b[i+8]) << (8 * uint(i))
	}
	return u, nil
}

// Bytes returns the 16-byte little-endian representation.
func (u Uint128) Bytes() []byte {
	b := make([]byte, 16)
	for i := 0; i < 8; i++ {
		b[i] = byte(u.Lo >> (8 * uint(i)))
		b[i+8] = byte(u.Hi >> (8 * uint(i)))
	}
	return b
}
