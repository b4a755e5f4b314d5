package message

import (
	"bytes"
	"testing"

	"github.com/repe-org/repe-go/protocol"
)

func TestMethodStripsLeadingSlash(t *testing.T) {
	cases := []struct {
		query, want string
	}{
		{"/add", "add"},
		{"add", "add"},
		{"//add", "/add"}, // only a single leading slash is stripped
		{"/", ""},
		{"", ""},
	}
	for _, tc := range cases {
		m := &Message{Query: tc.query}
		if got := m.Method(); got != tc.want {
			t.Errorf("Method(%q): got %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestResponseEchoesRequest(t *testing.T) {
	req := NewRequest(77, "/echo", protocol.FormatJSON, []byte(`{"message":"hi"}`))
	req.Header.Version = 42 // response must re-stamp, not copy

	resp := Response(req, protocol.FormatJSON, []byte(`{"result":"Echo: hi"}`))
	if resp.Header.ID != 77 {
		t.Errorf("id not echoed: %d", resp.Header.ID)
	}
	if resp.Query != "/echo" {
		t.Errorf("query not echoed: %q", resp.Query)
	}
	if resp.Header.Spec != protocol.Spec || resp.Header.Version != protocol.Version {
		t.Errorf("spec/version not re-stamped: %+v", resp.Header)
	}
	if resp.Header.EC != protocol.CodeOK {
		t.Errorf("ec: got %v, want ok", resp.Header.EC)
	}
}

func TestErrorResponse(t *testing.T) {
	req := NewRequest(5, "/nope", protocol.FormatBinary, nil)
	resp := ErrorResponse(req, protocol.CodeMethodNotFound, "Method not found: nope")

	if resp.Header.EC != protocol.CodeMethodNotFound {
		t.Errorf("ec: got %v", resp.Header.EC)
	}
	if resp.Header.BodyFormat != protocol.FormatUTF8 {
		t.Errorf("error bodies must be UTF-8, got %v", resp.Header.BodyFormat)
	}
	if string(resp.Body) != "Method not found: nope" {
		t.Errorf("body: got %q", resp.Body)
	}
	if resp.Header.ID != 5 || resp.Query != "/nope" {
		t.Errorf("correlation lost: %+v", resp)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := NewRequest(9, "/add", protocol.FormatJSON, []byte(`{"a":1,"b":2}`))
	if err := req.Write(&buf); err != nil {
		t.Fatal(err)
	}

	got, err := Read(&buf, protocol.DefaultLimits())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Query != "/add" || string(got.Body) != `{"a":1,"b":2}` {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Header.ID != 9 || got.Header.BodyFormat != protocol.FormatJSON {
		t.Errorf("header mismatch: %+v", got.Header)
	}
}
