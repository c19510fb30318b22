package listener

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/acme"

	"github.com/moatkit/moat/core/certstore"
)

// HandshakeError reports a single connection's handshake failure. It is
// local to that connection: the acceptor keeps serving subsequent ones.
type HandshakeError struct {
	Remote net.Addr
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("tls handshake with %s failed: %v", e.Remote, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// errACMEValidation marks a completed acme-tls/1 validation handshake. Such
// connections exist only for the CA's benefit and are never handed to the
// pipeline.
var errACMEValidation = errors.New("acme validation connection")

func isInternalConn(err error) bool {
	return errors.Is(err, errACMEValidation)
}

// NewTLS wraps a bound stream listener with TLS. The handshake runs
// synchronously inside Accept: certificate selection goes through the
// resolver by SNI, acme-tls/1 validation handshakes are served the challenge
// marker certificate and absorbed, and a handshake failure surfaces as a
// *HandshakeError without disturbing the acceptor.
func NewTLS(ln net.Listener, backend TLSBackend, resolver *certstore.Resolver, opts ...TLSOption) (Acceptor, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}

	o := tlsOptions{
		handshakeTimeout: 10 * time.Second,
		nextProtos:       []string{"h2", "http/1.1"},
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := backend.ServerConfig()
	cfg.GetCertificate = resolver.GetCertificate
	// The validation protocol must always be offered so the CA can reach the
	// marker certificate through this same listener.
	cfg.NextProtos = append(append([]string{}, o.nextProtos...), acme.ALPNProto)

	wrap := func(raw net.Conn) (Conn, error) {
		tc := tls.Server(raw, cfg)

		if err := tc.SetDeadline(time.Now().Add(o.handshakeTimeout)); err != nil {
			_ = raw.Close()
			return nil, &HandshakeError{Remote: raw.RemoteAddr(), Err: err}
		}
		if err := tc.Handshake(); err != nil {
			_ = raw.Close()
			return nil, &HandshakeError{Remote: raw.RemoteAddr(), Err: err}
		}
		if err := tc.SetDeadline(time.Time{}); err != nil {
			_ = tc.Close()
			return nil, &HandshakeError{Remote: raw.RemoteAddr(), Err: err}
		}

		if tc.ConnectionState().NegotiatedProtocol == acme.ALPNProto {
			_ = tc.Close()
			return nil, errACMEValidation
		}

		return newStreamConn(tc), nil
	}

	return newNetAcceptor(ln, wrap), nil
}

type tlsOptions struct {
	handshakeTimeout time.Duration
	nextProtos       []string
}

// TLSOption configures a TLS acceptor during construction.
type TLSOption func(*tlsOptions)

// WithHandshakeTimeout bounds how long a single handshake may take before the
// connection is dropped.
func WithHandshakeTimeout(d time.Duration) TLSOption {
	return func(o *tlsOptions) {
		if d > 0 {
			o.handshakeTimeout = d
		}
	}
}

// WithNextProtos sets the application protocols offered during ALPN, in
// preference order. The ACME validation protocol is always appended.
func WithNextProtos(protos ...string) TLSOption {
	return func(o *tlsOptions) {
		o.nextProtos = protos
	}
}
