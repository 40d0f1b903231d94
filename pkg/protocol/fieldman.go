package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FieldManager is the general-purpose, validation-heavy field encoder used
// where caller-supplied values need checking before they reach the wire
// (the client validates report fields through it). Scalars use fixed-width
// little-endian encoding; strings and byte strings pass through raw.
//
// It is NOT wire-compatible with the compact extension codec: entries here
// carry no 16-bit length|id header and the two must not be mixed.
type FieldManager struct {
	specs map[string]FieldSpec
	order []string
}

// ScalarType enumerates the value types a FieldSpec can declare.
type ScalarType int

const (
	ScalarUint8 ScalarType = iota
	ScalarUint16
	ScalarUint32
	ScalarUint64
	ScalarInt32
	ScalarFloat64
	ScalarBool
	ScalarString
	ScalarBytes
)

// FieldSpec declares one managed field and its constraints.
type FieldSpec struct {
	Name     string
	Type     ScalarType
	Required bool
	MaxLen   int // for ScalarString/ScalarBytes; 0 means unlimited
}

// NewFieldManager builds a manager over the given specs.
func NewFieldManager(specs ...FieldSpec) *FieldManager {
	m := &FieldManager{
		specs: make(map[string]FieldSpec, len(specs)),
		order: make([]string, 0, len(specs)),
	}
	for _, s := range specs {
		if _, ok := m.specs[s.Name]; ok {
			continue
		}
		m.specs[s.Name] = s
		m.order = append(m.order, s.Name)
	}
	return m
}

// Validate checks fields against the specs: required fields present, no
// unknown names, types and length limits respected.
func (m *FieldManager) Validate(fields map[string]interface{}) error {
	for name := range fields {
		if _, ok := m.specs[name]; !ok {
			return fmt.Errorf("unknown field %q", name)
		}
	}

	for _, name := range m.order {
		spec := m.specs[name]
		value, present := fields[name]
		if !present {
			if spec.Required {
				return fmt.Errorf("missing required field %q", name)
			}
			continue
		}
		if _, err := m.EncodeValue(name, value); err != nil {
			return err
		}
	}

	return nil
}

// EncodeValue encodes one field value per its spec.
func (m *FieldManager) EncodeValue(name string, value interface{}) ([]byte, error) {
	spec, ok := m.specs[name]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", name)
	}

	switch spec.Type {
	case ScalarUint8:
		v, ok := value.(uint8)
		if !ok {
			return nil, typeError(name, "uint8", value)
		}
		return []byte{v}, nil

	case ScalarUint16:
		v, ok := value.(uint16)
		if !ok {
			return nil, typeError(name, "uint16", value)
		}
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b, nil

	case ScalarUint32:
		v, ok := value.(uint32)
		if !ok {
			return nil, typeError(name, "uint32", value)
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b, nil

	case ScalarUint64:
		v, ok := value.(uint64)
		if !ok {
			return nil, typeError(name, "uint64", value)
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		return b, nil

	case ScalarInt32:
		v, ok := value.(int32)
		if !ok {
			return nil, typeError(name, "int32", value)
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		return b, nil

	case ScalarFloat64:
		v, ok := value.(float64)
		if !ok {
			return nil, typeError(name, "float64", value)
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		return b, nil

	case ScalarBool:
		v, ok := value.(bool)
		if !ok {
			return nil, typeError(name, "bool", value)
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case ScalarString:
		v, ok := value.(string)
		if !ok {
			return nil, typeError(name, "string", value)
		}
		if spec.MaxLen > 0 && len(v) > spec.MaxLen {
			return nil, fmt.Errorf("field %q is %d bytes (limit %d)", name, len(v), spec.MaxLen)
		}
		return []byte(v), nil

	case ScalarBytes:
		v, ok := value.([]byte)
		if !ok {
			return nil, typeError(name, "[]byte", value)
		}
		if spec.MaxLen > 0 && len(v) > spec.MaxLen {
			return nil, fmt.Errorf("field %q is %d bytes (limit %d)", name, len(v), spec.MaxLen)
		}
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	}

	return nil, fmt.Errorf("field %q has unknown scalar type %d", name, spec.Type)
}

// DecodeValue decodes one field value per its spec.
func (m *FieldManager) DecodeValue(name string, data []byte) (interface{}, error) {
	spec, ok := m.specs[name]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", name)
	}

	switch spec.Type {
	case ScalarUint8:
		if len(data) != 1 {
			return nil, lengthError(name, 1, len(data))
		}
		return data[0], nil

	case ScalarUint16:
		if len(data) != 2 {
			return nil, lengthError(name, 2, len(data))
		}
		return binary.LittleEndian.Uint16(data), nil

	case ScalarUint32:
		if len(data) != 4 {
			return nil, lengthError(name, 4, len(data))
		}
		return binary.LittleEndian.Uint32(data), nil

	case ScalarUint64:
		if len(data) != 8 {
			return nil, lengthError(name, 8, len(data))
		}
		return binary.LittleEndian.Uint64(data), nil

	case ScalarInt32:
		if len(data) != 4 {
			return nil, lengthError(name, 4, len(data))
		}
		return int32(binary.LittleEndian.Uint32(data)), nil

	case ScalarFloat64:
		if len(data) != 8 {
			return nil, lengthError(name, 8, len(data))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil

	case ScalarBool:
		if len(data) != 1 {
			return nil, lengthError(name, 1, len(data))
		}
		return data[0] != 0, nil

	case ScalarString:
		return string(data), nil

	case ScalarBytes:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	return nil, fmt.Errorf("field %q has unknown scalar type %d", name, spec.Type)
}

func typeError(name, want string, got interface{}) error {
	return fmt.Errorf("field %q: expected %s, got %T", name, want, got)
}

func lengthError(name string, want, got int) error {
	return fmt.Errorf("field %q: payload is %d bytes (expected %d)", name, got, want)
}
