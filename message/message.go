// Package message defines the REPE message exchanged between client and
// server: one wire header plus the query and body segments that follow it.
//
// A Message is transient: created when a request is read off the
// connection, owned by the worker processing it, and discarded once the
// response is written (or dropped, for notify requests).
package message

import (
	"io"
	"strings"

	"github.com/repe-org/repe-go/protocol"
)

// Message is one complete REPE request or response.
//
//   - On request:  Query names the method ("/add"), Body carries the encoded
//     parameters in the header's body format, EC is zero.
//   - On response: Body carries the encoded result, or UTF-8 error text when
//     EC is non-zero. ID and Query are echoed from the request verbatim.
type Message struct {
	Header protocol.Header
	Query  string
	Body   []byte
}

// NewRequest builds a request message with the server-supported spec and
// version stamped in.
func NewRequest(id uint64, query string, format protocol.Format, body []byte) *Message {
	return &Message{
		Header: protocol.Header{
			Spec:       protocol.Spec,
			Version:    protocol.Version,
			ID:         id,
			BodyFormat: format,
		},
		Query: query,
		Body:  body,
	}
}

// Method returns the method name addressed by the query: a single leading
// "/" is stripped, nothing else is normalized.
func (m *Message) Method() string {
	return strings.TrimPrefix(m.Query, "/")
}

// Response builds a successful response to req with the given body.
// The correlation id and query are copied verbatim; spec and version are
// re-stamped to the supported values regardless of what the request carried.
func Response(req *Message, format protocol.Format, body []byte) *Message {
	return &Message{
		Header: protocol.Header{
			Spec:       protocol.Spec,
			Version:    protocol.Version,
			ID:         req.Header.ID,
			BodyFormat: format,
			EC:         protocol.CodeOK,
		},
		Query: req.Query,
		Body:  body,
	}
}

// ErrorResponse builds an error response to req: the code goes in the ec
// field and text becomes a plain UTF-8 body.
func ErrorResponse(req *Message, code protocol.ErrorCode, text string) *Message {
	resp := Response(req, protocol.FormatUTF8, []byte(text))
	resp.Header.EC = code
	return resp
}

// Read reads one message from r. See protocol.ReadFrame for the error
// contract; on protocol.ErrUnsupportedVersion the message carries the
// decoded header so a version-mismatch response can still be correlated.
func Read(r io.Reader, limits protocol.Limits) (*Message, error) {
	h, query, body, err := protocol.ReadFrame(r, limits)
	if err != nil {
		return &Message{Header: h}, err
	}
	return &Message{Header: h, Query: string(query), Body: body}, nil
}

// Write serializes m to w as a single frame, recomputing the length fields.
func (m *Message) Write(w io.Writer) error {
	return protocol.WriteFrame(w, m.Header, m.Query, m.Body)
}
