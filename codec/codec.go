// Package codec provides the per-format payload codecs for REPE bodies.
//
// Only the binary serialization and JSON formats carry a typed decode; raw
// and UTF-8 bodies are passed through as bytes/text and have no Codec.
package codec

import (
	"github.com/repe-org/repe-go/protocol"
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Format() protocol.Format
}

// GetCodec returns the codec for a format tag. ok is false for formats with
// no typed decode (raw, UTF-8, and anything unknown).
func GetCodec(f protocol.Format) (Codec, bool) {
	switch f {
	case protocol.FormatJSON:
		return &JSONCodec{}, true
	case protocol.FormatBinary:
		return &BinaryCodec{}, true
	}
	return nil, false
}
