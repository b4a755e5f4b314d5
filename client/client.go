// Package client implements a pooled REPE client: discover instances via a
// registry, pick one with a balancer, borrow a connection, exchange exactly
// one request and response.
package client

import (
	"fmt"
	"net"
	"sync"

	"github.com/repe-org/repe-go/codec"
	"github.com/repe-org/repe-go/loadbalance"
	"github.com/repe-org/repe-go/message"
	"github.com/repe-org/repe-go/protocol"
	"github.com/repe-org/repe-go/registry"
	"github.com/repe-org/repe-go/transport"
)

// RPCError is a response with a non-zero error code: the server handled the
// request and reported a protocol- or domain-level failure.
type RPCError struct {
	Code protocol.ErrorCode
	Text string // UTF-8 body accompanying the code
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %s: %s", e.Code, e.Text)
}

// Client calls methods on a REPE service by name.
type Client struct {
	registry registry.Registry
	balancer loadbalance.Balancer
	service  string
	format   protocol.Format
	poolSize int

	mu    sync.Mutex
	pools map[string]*transport.ConnPool
}

// New creates a client. format selects the wire encoding for request bodies
// (binary or JSON); the server answers in the same format.
func New(reg registry.Registry, bal loadbalance.Balancer, service string, format protocol.Format, poolSize int) (*Client, error) {
	if _, ok := codec.GetCodec(format); !ok {
		return nil, fmt.Errorf("client: format %s cannot encode parameters", format)
	}
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Client{
		registry: reg,
		balancer: bal,
		service:  service,
		format:   format,
		poolSize: poolSize,
		pools:    make(map[string]*transport.ConnPool),
	}, nil
}

// Call invokes a method and decodes the result body into reply. A non-OK
// response surfaces as *RPCError; reply is left untouched in that case.
func (c *Client) Call(method string, params any, reply any) error {
	resp, err := c.roundTrip(method, params, false)
	if err != nil || resp == nil {
		return err
	}

	respCodec, ok := codec.GetCodec(resp.Header.BodyFormat)
	if !ok {
		return fmt.Errorf("client: response format %s is not decodable", resp.Header.BodyFormat)
	}
	if err := respCodec.Decode(resp.Body, reply); err != nil {
		return fmt.Errorf("client: decode reply: %w", err)
	}
	return nil
}

// Notify invokes a method fire-and-forget: the server executes the handler
// but writes nothing back.
func (c *Client) Notify(method string, params any) error {
	_, err := c.roundTrip(method, params, true)
	return err
}

// roundTrip encodes params, selects an instance, and performs one exchange
// on a pooled connection. The returned message is nil for notify calls.
func (c *Client) roundTrip(method string, params any, notify bool) (*message.Message, error) {
	reqCodec, _ := codec.GetCodec(c.format)
	body, err := reqCodec.Encode(params)
	if err != nil {
		return nil, fmt.Errorf("client: encode params: %w", err)
	}

	instances, err := c.registry.Discover(c.service)
	if err != nil {
		return nil, fmt.Errorf("client: discover %s: %w", c.service, err)
	}
	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return nil, err
	}

	pool := c.pool(instance.Addr)
	conn, err := pool.Get()
	if err != nil {
		return nil, err
	}
	defer pool.Put(conn)

	query := "/" + method
	if notify {
		if err := conn.Notify(query, c.format, body); err != nil {
			conn.MarkUnusable()
			return nil, err
		}
		return nil, nil
	}

	resp, err := conn.Call(query, c.format, body)
	if err != nil {
		conn.MarkUnusable()
		return nil, err
	}
	if resp.Header.EC != protocol.CodeOK {
		return nil, &RPCError{Code: resp.Header.EC, Text: string(resp.Body)}
	}
	return resp, nil
}

// pool returns the connection pool for addr, creating it on first use.
func (c *Client) pool(addr string) *transport.ConnPool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pools[addr]; ok {
		return p
	}
	p := transport.NewConnPool(addr, c.poolSize, func(addr string) (*transport.ClientConn, error) {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, err
		}
		return transport.NewClientConn(conn), nil
	})
	c.pools[addr] = p
	return p
}

// Close shuts down all connection pools.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pools {
		p.Close()
	}
	c.pools = make(map[string]*transport.ConnPool)
	return nil
}
