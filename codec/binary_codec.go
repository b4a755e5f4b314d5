package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/repe-org/repe-go/protocol"
)

// BinaryCodec implements the tagged binary serialization format (format tag
// 1). The layout is versioned and self-describing:
//
//	[version u8][tagged value]
//
// where a tagged value is one type byte followed by its payload:
//
//	0x01 float64  8 bytes, IEEE-754 bits, big-endian
//	0x02 int64    8 bytes, big-endian
//	0x03 string   u32 length + bytes
//	0x04 map      u16 entry count, then per entry: u16 key length + key
//	              bytes + tagged value
//
// Map keys are written in sorted order so the encoding is deterministic.
type BinaryCodec struct{}

const binaryVersion byte = 1

const (
	tagFloat  byte = 0x01
	tagInt    byte = 0x02
	tagString byte = 0x03
	tagMap    byte = 0x04
)

var (
	ErrBinaryVersion = errors.New("codec: unsupported binary version")
	ErrBinaryShort   = errors.New("codec: truncated binary value")
	ErrBinaryTag     = errors.New("codec: unknown binary type tag")
	ErrBinaryType    = errors.New("codec: binary value does not fit target type")
)

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	buf := []byte{binaryVersion}
	var err error
	switch val := v.(type) {
	case map[string]float64:
		m := make(map[string]Value, len(val))
		for k, f := range val {
			m[k] = Float(f)
		}
		buf, err = appendMap(buf, m)
	case map[string]string:
		m := make(map[string]Value, len(val))
		for k, s := range val {
			m[k] = String(s)
		}
		buf, err = appendMap(buf, m)
	case map[string]Value:
		buf, err = appendMap(buf, val)
	case Value:
		buf, err = appendValue(buf, val)
	default:
		return nil, fmt.Errorf("codec: cannot binary-encode %T", v)
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	if len(data) < 2 {
		return ErrBinaryShort
	}
	if data[0] != binaryVersion {
		return fmt.Errorf("%w: %d", ErrBinaryVersion, data[0])
	}
	val, rest, err := readValue(data[1:])
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return fmt.Errorf("codec: %d trailing bytes after binary value", len(rest))
	}
	return assign(val, v)
}

func (c *BinaryCodec) Format() protocol.Format {
	return protocol.FormatBinary
}

// node is the decoded form of one tagged value: either a scalar Value or a
// map of them.
type node struct {
	scalar Value
	object map[string]Value
	isMap  bool
}

func appendMap(buf []byte, m map[string]Value) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf = append(buf, tagMap)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(keys)))
	for _, k := range keys {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(k)))
		buf = append(buf, k...)
		var err error
		buf, err = appendValue(buf, m[k])
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendValue(buf []byte, v Value) ([]byte, error) {
	switch v.Kind {
	case KindFloat:
		buf = append(buf, tagFloat)
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v.Float))
	case KindInt:
		buf = append(buf, tagInt)
		buf = binary.BigEndian.AppendUint64(buf, uint64(v.Int))
	case KindString:
		buf = append(buf, tagString)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v.Str)))
		buf = append(buf, v.Str...)
	default:
		return nil, fmt.Errorf("codec: unknown value kind %d", v.Kind)
	}
	return buf, nil
}

func readValue(data []byte) (node, []byte, error) {
	if len(data) < 1 {
		return node{}, nil, ErrBinaryShort
	}
	tag, data := data[0], data[1:]
	switch tag {
	case tagFloat:
		if len(data) < 8 {
			return node{}, nil, ErrBinaryShort
		}
		f := math.Float64frombits(binary.BigEndian.Uint64(data[:8]))
		return node{scalar: Float(f)}, data[8:], nil
	case tagInt:
		if len(data) < 8 {
			return node{}, nil, ErrBinaryShort
		}
		return node{scalar: Int(int64(binary.BigEndian.Uint64(data[:8])))}, data[8:], nil
	case tagString:
		if len(data) < 4 {
			return node{}, nil, ErrBinaryShort
		}
		n := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if len(data) < int(n) {
			return node{}, nil, ErrBinaryShort
		}
		return node{scalar: String(string(data[:n]))}, data[n:], nil
	case tagMap:
		if len(data) < 2 {
			return node{}, nil, ErrBinaryShort
		}
		count := binary.BigEndian.Uint16(data[:2])
		data = data[2:]
		m := make(map[string]Value, count)
		for i := 0; i < int(count); i++ {
			if len(data) < 2 {
				return node{}, nil, ErrBinaryShort
			}
			klen := binary.BigEndian.Uint16(data[:2])
			data = data[2:]
			if len(data) < int(klen) {
				return node{}, nil, ErrBinaryShort
			}
			key := string(data[:klen])
			data = data[klen:]
			val, rest, err := readValue(data)
			if err != nil {
				return node{}, nil, err
			}
			if val.isMap {
				return node{}, nil, fmt.Errorf("%w: nested map", ErrBinaryTag)
			}
			m[key] = val.scalar
			data = rest
		}
		return node{object: m, isMap: true}, data, nil
	}
	return node{}, nil, fmt.Errorf("%w: %#02x", ErrBinaryTag, tag)
}

func assign(n node, v any) error {
	switch target := v.(type) {
	case *map[string]float64:
		if !n.isMap {
			return ErrBinaryType
		}
		m := make(map[string]float64, len(n.object))
		for k, val := range n.object {
			switch val.Kind {
			case KindFloat:
				m[k] = val.Float
			case KindInt:
				m[k] = float64(val.Int)
			default:
				return fmt.Errorf("%w: key %q is not numeric", ErrBinaryType, k)
			}
		}
		*target = m
	case *map[string]string:
		if !n.isMap {
			return ErrBinaryType
		}
		m := make(map[string]string, len(n.object))
		for k, val := range n.object {
			if val.Kind != KindString {
				return fmt.Errorf("%w: key %q is not a string", ErrBinaryType, k)
			}
			m[k] = val.Str
		}
		*target = m
	case *map[string]Value:
		if !n.isMap {
			return ErrBinaryType
		}
		m := make(map[string]Value, len(n.object))
		for k, val := range n.object {
			m[k] = val
		}
		*target = m
	case *Value:
		if n.isMap {
			return ErrBinaryType
		}
		*target = n.scalar
	default:
		return fmt.Errorf("codec: cannot binary-decode into %T", v)
	}
	return nil
}
