package transport

import (
	"errors"
	"sync"
)

// ConnPool manages reusable exclusive connections to a single address,
// using a buffered channel as a FIFO queue: channel receives are
// goroutine-safe and blocking-on-empty comes for free.
type ConnPool struct {
	mu       sync.Mutex
	conns    chan *PoolConn
	addr     string
	maxConns int
	curConns int
	factory  func(addr string) (*ClientConn, error)
}

// PoolConn wraps a ClientConn with pool bookkeeping.
type PoolConn struct {
	*ClientConn
	unusable bool // set after an error; Put closes instead of recycling
}

// MarkUnusable flags the connection as broken so Put closes it rather than
// recycling it.
func (c *PoolConn) MarkUnusable() { c.unusable = true }

// NewConnPool creates a pool with the given cap. Connections are created
// lazily; the pool starts empty and grows on demand.
func NewConnPool(addr string, maxConns int, factory func(addr string) (*ClientConn, error)) *ConnPool {
	return &ConnPool{
		conns:    make(chan *PoolConn, maxConns),
		addr:     addr,
		maxConns: maxConns,
		factory:  factory,
	}
}

// Get borrows a connection: an idle one if available, a new one while under
// the cap, otherwise it blocks until a connection is returned.
func (p *ConnPool) Get() (*PoolConn, error) {
	select {
	case conn := <-p.conns:
		if conn.unusable {
			p.retire(conn)
			return p.createNew()
		}
		return conn, nil
	default:
		p.mu.Lock()
		under := p.curConns < p.maxConns
		p.mu.Unlock()
		if under {
			return p.createNew()
		}
		conn := <-p.conns
		if conn.unusable {
			p.retire(conn)
			return p.createNew()
		}
		return conn, nil
	}
}

// retire closes a broken connection and frees its slot.
func (p *ConnPool) retire(conn *PoolConn) {
	conn.Close()
	p.mu.Lock()
	p.curConns--
	p.mu.Unlock()
}

// Put returns a borrowed connection. Unusable connections are closed and
// their slot freed so Get can dial a replacement.
func (p *ConnPool) Put(conn *PoolConn) {
	if conn.unusable {
		p.retire(conn)
		return
	}
	p.conns <- conn
}

// Close shuts down the pool and closes all idle connections. Borrowed
// connections are closed when returned.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.conns)
	for conn := range p.conns {
		conn.Close()
		p.curConns--
	}
	return nil
}

func (p *ConnPool) createNew() (*PoolConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.curConns >= p.maxConns {
		return nil, errors.New("transport: connection pool exhausted")
	}

	cc, err := p.factory(p.addr)
	if err != nil {
		return nil, err
	}

	p.curConns++
	return &PoolConn{ClientConn: cc}, nil
}
