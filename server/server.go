// Package server implements the REPE server: a TCP accept loop that runs
// one worker per connection, each worker driving a strict
// read → dispatch → write cycle until the peer goes away.
//
// Per connection the worker is fully sequential; REPE allows one in-flight
// request at a time, so the Nth response always answers the Nth non-notify
// request. The only state shared between workers is the immutable method
// registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/repe-org/repe-go/codec"
	"github.com/repe-org/repe-go/message"
	"github.com/repe-org/repe-go/middleware"
	"github.com/repe-org/repe-go/protocol"
	"github.com/repe-org/repe-go/registry"
)

// Options configures a Server. The zero value gives a quiet server with
// default read limits and no connection cap.
type Options struct {
	Logger *zerolog.Logger // nil means no logging
	Limits protocol.Limits // zero means protocol.DefaultLimits
	// MaxConns caps concurrently served connections; over-limit accepts are
	// closed immediately. Zero means unbounded.
	MaxConns int
	// Discovery, when set, registers AdvertiseAddr under ServiceName on
	// Serve and deregisters it on Shutdown.
	Discovery     registry.Registry
	ServiceName   string
	AdvertiseAddr string
}

// Server owns the listener and the method registry and spawns one
// connection worker per accepted connection.
type Server struct {
	methods     *Registry
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	listener net.Listener
	wg       sync.WaitGroup // tracks connection workers for graceful drain
	shutdown atomic.Bool
	sem      chan struct{} // admission semaphore, nil when unbounded

	logger  zerolog.Logger
	limits  protocol.Limits
	opts    Options
	started time.Time
	active  atomic.Int64
}

func NewServer(opts Options) *Server {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	limits := opts.Limits
	if limits == (protocol.Limits{}) {
		limits = protocol.DefaultLimits()
	}
	s := &Server{
		logger:  logger,
		limits:  limits,
		opts:    opts,
		started: time.Now(),
	}
	if opts.MaxConns > 0 {
		s.sem = make(chan struct{}, opts.MaxConns)
	}
	return s
}

// Use registers a middleware. Middlewares apply in the order they are
// added, wrapping the dispatcher. Must be called before Serve.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// Uptime reports how long the server has existed.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.started)
}

// ActiveConns reports the number of currently served connections.
func (s *Server) ActiveConns() int64 {
	return s.active.Load()
}

// Serve binds the method registry, listens on the given address, and
// accepts connections until Shutdown closes the listener. Each accepted
// connection gets its own worker goroutine, tracked for graceful drain.
// The registry must not be mutated once Serve is called: it is shared by
// every worker without locking.
func (s *Server) Serve(methods *Registry, network, address string) error {
	s.methods = methods

	listener, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", address, err)
	}
	s.listener = listener

	// Build the middleware chain once, not per request.
	s.handler = middleware.Chain(s.middlewares...)(s.dispatch)

	if s.opts.Discovery != nil {
		inst := registry.ServiceInstance{Addr: s.opts.AdvertiseAddr, Weight: 1}
		if err := s.opts.Discovery.Register(s.opts.ServiceName, inst, 10); err != nil {
			listener.Close()
			return fmt.Errorf("server: register %s: %w", s.opts.ServiceName, err)
		}
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			// Shutdown closes the listener; that Accept error is expected.
			if s.shutdown.Load() {
				return nil
			}
			return err
		}

		if s.sem != nil {
			select {
			case s.sem <- struct{}{}:
			default:
				s.logger.Warn().Str("remote", conn.RemoteAddr().String()).Msg("connection limit reached")
				conn.Close()
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn is the connection worker: it reads one request, dispatches it,
// writes the response unless the request was a notify, and loops. Any read
// failure, including a clean close, ends the worker and releases the
// connection.
func (s *Server) handleConn(conn net.Conn) {
	connID := uuid.NewString()
	s.active.Add(1)
	logger := s.logger.With().Str("conn", connID).Logger()
	logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connected")

	defer func() {
		conn.Close()
		s.active.Add(-1)
		if s.sem != nil {
			<-s.sem
		}
		s.wg.Done()
		logger.Debug().Msg("disconnected")
	}()

	for {
		req, err := message.Read(conn, s.limits)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return // peer closed cleanly between requests
		case errors.Is(err, protocol.ErrUnsupportedVersion):
			// The one protocol-fatal failure that still answers: exactly one
			// version-mismatch response, then the connection closes.
			resp := message.ErrorResponse(req, protocol.CodeVersionMismatch, "Version mismatch")
			if werr := resp.Write(conn); werr != nil {
				logger.Warn().Err(werr).Msg("version mismatch response failed")
			}
			return
		default:
			logger.Warn().Err(err).Msg("read failed")
			return
		}

		resp := s.handler(context.Background(), req)

		// Notify requests are fully dispatched but never answered.
		if req.Header.Notify {
			continue
		}

		if err := resp.Write(conn); err != nil {
			logger.Warn().Err(err).Msg("write failed")
			return
		}
	}
}

// dispatch resolves the request's method, decodes its parameters in the
// request's body format, invokes the handler, and maps the outcome onto
// response header fields. Every failure is converted to an error response
// here; nothing propagates to the worker as a Go error.
func (s *Server) dispatch(ctx context.Context, req *message.Message) *message.Message {
	name := req.Method()
	mtd, ok := s.methods.Lookup(name)
	if !ok {
		return message.ErrorResponse(req, protocol.CodeMethodNotFound, "Method not found: "+name)
	}

	var params any
	if mtd.NewParams != nil {
		c, decodable := codec.GetCodec(req.Header.BodyFormat)
		if !decodable {
			return message.ErrorResponse(req, protocol.CodeParseError, "Invalid parameters for "+name)
		}
		params = mtd.NewParams()
		if err := c.Decode(req.Body, params); err != nil {
			return message.ErrorResponse(req, protocol.CodeParseError, "Invalid parameters for "+name)
		}
	}

	result, err := mtd.Invoke(ctx, params)
	if err != nil {
		// Domain failure: the connection stays healthy, only this request
		// reports invalid_body with the failure text.
		return message.ErrorResponse(req, protocol.CodeInvalidBody, err.Error())
	}

	// The response echoes the caller's preferred wire format. Parameterless
	// methods can be called in any format; non-decodable tags fall back to
	// JSON, matching the decode rules above.
	respCodec, ok := codec.GetCodec(req.Header.BodyFormat)
	if !ok {
		respCodec, _ = codec.GetCodec(protocol.FormatJSON)
	}
	body, err := respCodec.Encode(result)
	if err != nil {
		return message.ErrorResponse(req, protocol.CodeInvalidBody, "Failed to encode result for "+name)
	}
	return message.Response(req, respCodec.Format(), body)
}

// Shutdown stops the server: deregister from discovery so clients stop
// routing here, close the listener, then wait for in-flight connection
// workers to drain, up to the timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.opts.Discovery != nil {
		if err := s.opts.Discovery.Deregister(s.opts.ServiceName, s.opts.AdvertiseAddr); err != nil {
			s.logger.Warn().Err(err).Msg("deregister failed")
		}
	}

	// Flag first: the Accept error caused by closing the listener must be
	// recognized as intentional.
	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("server: timeout waiting for connections to drain")
	}
}

// Addr reports the bound listener address, useful when Serve was given
// port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
