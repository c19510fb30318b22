package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"net"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"github.com/moatkit/moat/core/certstore"
)

// NewQUIC binds a QUIC/HTTP3 acceptor on the given UDP address. Accepted
// connections are multiplexed handles: each logical stream surfaces through
// Conn.NextStream, with the multiplexing itself hidden from the caller.
// Certificate selection goes through the resolver like every other TLS-bearing
// variant; the QUIC handshake completes before Accept returns the connection.
func NewQUIC(addr string, resolver *certstore.Resolver) (Acceptor, error) {
	if resolver == nil {
		return nil, ErrResolverRequired
	}

	tlsConf := &tls.Config{
		MinVersion:     tls.VersionTLS13,
		GetCertificate: resolver.GetCertificate,
		NextProtos:     []string{http3.NextProtoH3},
	}

	ln, err := quic.ListenAddr(addr, tlsConf, nil)
	if err != nil {
		return nil, err
	}

	return &quicAcceptor{ln: ln}, nil
}

type quicAcceptor struct {
	ln *quic.Listener
}

func (a *quicAcceptor) Accept(ctx context.Context) (Conn, error) {
	conn, err := a.ln.Accept(ctx)
	if err != nil {
		if errors.Is(err, quic.ErrServerClosed) {
			return nil, ErrAcceptorClosed
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return &quicConn{conn: conn}, nil
}

func (a *quicAcceptor) Close() error {
	return a.ln.Close()
}

func (a *quicAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// quicConn adapts one QUIC connection to the Conn contract: every accepted
// bidirectional stream is one request/response exchange.
type quicConn struct {
	conn *quic.Conn
}

func (c *quicConn) NextStream(ctx context.Context) (Stream, error) {
	stream, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (c *quicConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *quicConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *quicConn) Close() error {
	return c.conn.CloseWithError(0, "")
}
