package listener

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// Stream is one request/response byte exchange carried by a connection.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Conn is one accepted client connection, already secured where the transport
// requires it. Stream transports yield exactly one Stream and then io.EOF;
// multiplexed transports (QUIC) yield one Stream per logical stream. The
// request pipeline treats both uniformly.
type Conn interface {
	NextStream(ctx context.Context) (Stream, error)
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Close() error
}

// Acceptor produces a sequence of accepted inbound connections from a bound
// address. Accept blocks until a connection is available, the context is
// cancelled, or the acceptor is closed. Close is idempotent and unblocks any
// pending Accept with ErrAcceptorClosed.
type Acceptor interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
	Addr() net.Addr
}

// streamConn adapts a single byte-stream transport connection to the Conn
// contract: the connection itself is its only stream.
type streamConn struct {
	net.Conn
	claimed atomic.Bool
}

func newStreamConn(c net.Conn) *streamConn {
	return &streamConn{Conn: c}
}

func (c *streamConn) NextStream(_ context.Context) (Stream, error) {
	if c.claimed.Swap(true) {
		return nil, io.EOF
	}
	return c.Conn, nil
}

// NetConn exposes the underlying transport connection for pipelines that
// integrate with net/http directly.
func (c *streamConn) NetConn() net.Conn {
	return c.Conn
}

// netAcceptor adapts a net.Listener to the context-aware Acceptor contract.
// A single pump goroutine feeds accepted connections into a channel so Accept
// can select on context cancellation and Close. wrap runs in the Accept
// caller's goroutine; TLS variants do their handshake there.
type netAcceptor struct {
	ln     net.Listener
	wrap   func(net.Conn) (Conn, error)
	conns  chan net.Conn
	fatal  chan error
	closed chan struct{}
	once   sync.Once
}

func newNetAcceptor(ln net.Listener, wrap func(net.Conn) (Conn, error)) *netAcceptor {
	if wrap == nil {
		wrap = func(c net.Conn) (Conn, error) { return newStreamConn(c), nil }
	}
	a := &netAcceptor{
		ln:     ln,
		wrap:   wrap,
		conns:  make(chan net.Conn),
		fatal:  make(chan error, 1),
		closed: make(chan struct{}),
	}
	go a.pump()
	return a
}

func (a *netAcceptor) pump() {
	for {
		c, err := a.ln.Accept()
		if err != nil {
			select {
			case <-a.closed:
			default:
				a.fatal <- err
			}
			return
		}

		select {
		case a.conns <- c:
		case <-a.closed:
			_ = c.Close()
			return
		}
	}
}

func (a *netAcceptor) Accept(ctx context.Context) (Conn, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-a.closed:
			return nil, ErrAcceptorClosed
		case err := <-a.fatal:
			// Listener-level failure terminates the acceptor; surfaced once,
			// ErrAcceptorClosed afterwards.
			_ = a.Close()
			return nil, err
		case raw := <-a.conns:
			conn, err := a.wrap(raw)
			if err == nil {
				return conn, nil
			}
			if isInternalConn(err) {
				continue
			}
			return nil, err
		}
	}
}

func (a *netAcceptor) Close() error {
	a.once.Do(func() {
		close(a.closed)
		_ = a.ln.Close()
	})
	return nil
}

func (a *netAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// NewPlain wraps an already bound stream listener (TCP or Unix domain) into
// an Acceptor without any transport security.
func NewPlain(ln net.Listener) Acceptor {
	return newNetAcceptor(ln, nil)
}
