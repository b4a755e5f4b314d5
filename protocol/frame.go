package protocol

import (
	"errors"
	"fmt"
	"io"
)

// Limits bounds per-frame allocation so a hostile peer cannot make the
// reader allocate arbitrary memory from a forged length field. Zero means
// unlimited.
type Limits struct {
	MaxQueryBytes uint64
	MaxBodyBytes  uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxQueryBytes: 64 * 1024,
		MaxBodyBytes:  8 * 1024 * 1024,
	}
}

// ReadFrame reads one complete frame from r using io.ReadFull, so every
// segment is either read exactly or fails.
//
// A clean close before any header byte surfaces as io.EOF: normal
// termination, not a protocol error. A partial header is ErrShortHeader and
// a partial query or body is ErrTruncated; both are fatal to the connection.
// On ErrUnsupportedVersion the decoded header is returned with query and
// body left unread, so the caller can answer with a version-mismatch
// response before closing.
func ReadFrame(r io.Reader, limits Limits) (Header, []byte, []byte, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, nil, nil, ErrShortHeader
		}
		return Header{}, nil, nil, err
	}

	h, err := DecodeHeader(buf)
	if err != nil {
		return h, nil, nil, err
	}

	if limits.MaxQueryBytes > 0 && h.QueryLength > limits.MaxQueryBytes {
		return h, nil, nil, fmt.Errorf("%w: %d bytes", ErrQueryTooLarge, h.QueryLength)
	}
	if limits.MaxBodyBytes > 0 && h.BodyLength > limits.MaxBodyBytes {
		return h, nil, nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, h.BodyLength)
	}

	var query []byte
	if h.QueryLength > 0 {
		query = make([]byte, h.QueryLength)
		if _, err := io.ReadFull(r, query); err != nil {
			return h, nil, nil, ErrTruncated
		}
	}

	var body []byte
	if h.BodyLength > 0 {
		body = make([]byte, h.BodyLength)
		if _, err := io.ReadFull(r, body); err != nil {
			return h, nil, nil, ErrTruncated
		}
	}

	return h, query, body, nil
}

// WriteFrame serializes header + query + body into one contiguous buffer and
// writes it with a single Write call, so two frames can never interleave on
// the wire. The header's three length fields are recomputed from the actual
// segment sizes before encoding; they are never trusted from the caller.
func WriteFrame(w io.Writer, h Header, query string, body []byte) error {
	h.QueryLength = uint64(len(query))
	h.BodyLength = uint64(len(body))
	h.Length = HeaderSize + h.QueryLength + h.BodyLength

	buf := make([]byte, h.Length)
	copy(buf[0:HeaderSize], EncodeHeader(&h))
	copy(buf[HeaderSize:], query)
	copy(buf[HeaderSize+len(query):], body)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write frame: %w", err)
	}
	return nil
}
