// Package protocol implements the REPE binary envelope exchanged over a
// persistent TCP connection.
//
// Every frame is a fixed 48-byte header followed by a variable-length query
// string and a variable-length body. The receiver reads the header first,
// then exactly QueryLength + BodyLength more bytes. The lengths alone
// determine segment boundaries; there are no delimiters or padding.
//
// Header layout (little-endian, 48 bytes):
//
//	0        8     10  11  12       16       24       32       40    42    44    48
//	┌────────┬─────┬───┬───┬────────┬────────┬────────┬────────┬─────┬─────┬─────┐
//	│ length │spec │ver│ntf│reserved│   id   │ query  │  body  │query│body │ ec  │
//	│ uint64 │x1507│ 1 │   │ uint32 │ uint64 │ length │ length │ fmt │ fmt │ u32 │
//	└────────┴─────┴───┴───┴────────┴────────┴────────┴────────┴─────┴─────┴─────┘
//
// length is the total frame size (header + query + body). It is recomputed by
// the writer before every send and ignored on the read side, where the two
// segment lengths drive the reads.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Spec is the REPE magic constant, first thing validated on every frame.
	Spec uint16 = 0x1507
	// Version is the only protocol version this implementation accepts.
	Version uint8 = 1
	// HeaderSize is the fixed byte size of the wire header.
	HeaderSize = 48
)

// Format tags how the body (or query) bytes are to be interpreted.
type Format uint16

const (
	FormatRaw    Format = 0 // raw bytes, passed through untyped
	FormatBinary Format = 1 // tagged binary serialization
	FormatJSON   Format = 2 // JSON text
	FormatUTF8   Format = 3 // plain UTF-8 text (human-readable error bodies)
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatBinary:
		return "binary"
	case FormatJSON:
		return "json"
	case FormatUTF8:
		return "utf8"
	}
	return fmt.Sprintf("format(%d)", uint16(f))
}

// ErrorCode is the response error code carried in the header's ec field.
// Requests leave it zero.
type ErrorCode uint32

const (
	CodeOK              ErrorCode = 0
	CodeVersionMismatch ErrorCode = 1
	CodeInvalidHeader   ErrorCode = 2
	CodeInvalidQuery    ErrorCode = 3
	CodeInvalidBody     ErrorCode = 4
	CodeParseError      ErrorCode = 5
	CodeMethodNotFound  ErrorCode = 6
	CodeTimeout         ErrorCode = 7
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeVersionMismatch:
		return "version_mismatch"
	case CodeInvalidHeader:
		return "invalid_header"
	case CodeInvalidQuery:
		return "invalid_query"
	case CodeInvalidBody:
		return "invalid_body"
	case CodeParseError:
		return "parse_error"
	case CodeMethodNotFound:
		return "method_not_found"
	case CodeTimeout:
		return "timeout"
	}
	return fmt.Sprintf("error_code(%d)", uint32(c))
}

var (
	ErrShortHeader        = errors.New("protocol: short header")
	ErrBadMagic           = errors.New("protocol: invalid spec magic")
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
	ErrTruncated          = errors.New("protocol: truncated frame segment")
	ErrQueryTooLarge      = errors.New("protocol: query exceeds limit")
	ErrBodyTooLarge       = errors.New("protocol: body exceeds limit")
)

// Header is the fixed wire header of every REPE frame.
type Header struct {
	Length      uint64 // total frame length: HeaderSize + QueryLength + BodyLength
	Spec        uint16 // magic, always 0x1507
	Version     uint8
	Notify      bool // fire-and-forget: no response is written for this request
	Reserved    uint32
	ID          uint64 // caller-chosen correlation token, echoed verbatim
	QueryLength uint64
	BodyLength  uint64
	QueryFormat Format
	BodyFormat  Format
	EC          ErrorCode
}

// EncodeHeader serializes h into its 48-byte wire form.
func EncodeHeader(h *Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.Length)
	binary.LittleEndian.PutUint16(buf[8:10], h.Spec)
	buf[10] = h.Version
	if h.Notify {
		buf[11] = 1
	}
	binary.LittleEndian.PutUint32(buf[12:16], h.Reserved)
	binary.LittleEndian.PutUint64(buf[16:24], h.ID)
	binary.LittleEndian.PutUint64(buf[24:32], h.QueryLength)
	binary.LittleEndian.PutUint64(buf[32:40], h.BodyLength)
	binary.LittleEndian.PutUint16(buf[40:42], uint16(h.QueryFormat))
	binary.LittleEndian.PutUint16(buf[42:44], uint16(h.BodyFormat))
	binary.LittleEndian.PutUint32(buf[44:48], uint32(h.EC))
	return buf
}

// DecodeHeader parses a 48-byte wire header and validates the magic and
// version. On ErrUnsupportedVersion the decoded header is still returned so
// the caller can build the version-mismatch response; on any other error the
// returned header is not usable.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(buf))
	}
	h := Header{
		Length:      binary.LittleEndian.Uint64(buf[0:8]),
		Spec:        binary.LittleEndian.Uint16(buf[8:10]),
		Version:     buf[10],
		Notify:      buf[11] != 0,
		Reserved:    binary.LittleEndian.Uint32(buf[12:16]),
		ID:          binary.LittleEndian.Uint64(buf[16:24]),
		QueryLength: binary.LittleEndian.Uint64(buf[24:32]),
		BodyLength:  binary.LittleEndian.Uint64(buf[32:40]),
		QueryFormat: Format(binary.LittleEndian.Uint16(buf[40:42])),
		BodyFormat:  Format(binary.LittleEndian.Uint16(buf[42:44])),
		EC:          ErrorCode(binary.LittleEndian.Uint32(buf[44:48])),
	}
	if h.Spec != Spec {
		return Header{}, fmt.Errorf("%w: %#04x", ErrBadMagic, h.Spec)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}
