// Package transport implements the client side of the wire: an exclusive
// connection that carries one request at a time, and a borrow/return pool
// of such connections.
//
// REPE forbids pipelining on a single connection (the server answers the
// Nth non-notify request with the Nth response), so a connection is used
// exclusively for one call from write to read, then returned to the pool.
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/repe-org/repe-go/message"
	"github.com/repe-org/repe-go/protocol"
)

var ErrIDMismatch = errors.New("transport: response id does not match request")

// ClientConn is one persistent REPE connection. It is not goroutine-safe;
// exclusivity is the pool's job.
type ClientConn struct {
	conn   net.Conn
	seq    atomic.Uint64
	limits protocol.Limits
}

func NewClientConn(conn net.Conn) *ClientConn {
	return &ClientConn{conn: conn, limits: protocol.DefaultLimits()}
}

// Call sends one request frame and blocks for its response. The response's
// echoed correlation id must match the request's; a mismatch means the
// stream desynchronized and the connection is no longer usable.
func (c *ClientConn) Call(query string, format protocol.Format, body []byte) (*message.Message, error) {
	req := message.NewRequest(c.seq.Add(1), query, format, body)
	if err := req.Write(c.conn); err != nil {
		return nil, err
	}

	resp, err := message.Read(c.conn, c.limits)
	if err != nil {
		return nil, fmt.Errorf("transport: read response: %w", err)
	}
	if resp.Header.ID != req.Header.ID {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrIDMismatch, req.Header.ID, resp.Header.ID)
	}
	return resp, nil
}

// Notify sends a fire-and-forget request: the notify flag is set and no
// response is read.
func (c *ClientConn) Notify(query string, format protocol.Format, body []byte) error {
	req := message.NewRequest(c.seq.Add(1), query, format, body)
	req.Header.Notify = true
	return req.Write(c.conn)
}

func (c *ClientConn) Close() error {
	return c.conn.Close()
}
