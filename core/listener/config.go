package listener

import (
	"fmt"
	"net"
	"time"

	"github.com/moatkit/moat/core/certstore"
)

// Kind selects the transport an acceptor binds.
type Kind string

const (
	// KindTCP is a plain TCP stream listener with no transport security.
	KindTCP Kind = "tcp"

	// KindUnix is a Unix domain socket listener, same contract as KindTCP.
	KindUnix Kind = "unix"

	// KindTLS is TLS over TCP; the backend field selects the configuration
	// profile.
	KindTLS Kind = "tls"

	// KindQUIC is the QUIC/HTTP3 datagram transport.
	KindQUIC Kind = "quic"
)

// Valid reports whether the kind is one this package can bind.
func (k Kind) Valid() bool {
	switch k {
	case KindTCP, KindUnix, KindTLS, KindQUIC:
		return true
	}
	return false
}

// TLSCapable reports whether the kind consults the certificate resolver.
func (k Kind) TLSCapable() bool {
	return k == KindTLS || k == KindQUIC
}

// Config describes one listener, supplied once at startup.
type Config struct {
	// Addr is the bind address: host:port for tcp/tls/quic, a socket path
	// for unix.
	Addr string `env:"LISTENER_ADDR" envDefault:":8443"`

	// Kind selects the transport.
	Kind Kind `env:"LISTENER_KIND" envDefault:"tcp"`

	// TLSBackend selects the TLS configuration profile for KindTLS:
	// modern, intermediate, or strict.
	TLSBackend string `env:"LISTENER_TLS_BACKEND" envDefault:"modern"`

	// Domains are the host identities served on this listener; they drive
	// certificate management for TLS-capable kinds.
	Domains []string `env:"LISTENER_DOMAINS" envSeparator:","`

	// HandshakeTimeout bounds a single TLS handshake.
	HandshakeTimeout time.Duration `env:"LISTENER_HANDSHAKE_TIMEOUT" envDefault:"10s"`
}

// New binds an acceptor for the config. This is the single dispatch point
// over all transport variants; TLS-capable kinds require a resolver.
func New(cfg Config, resolver *certstore.Resolver) (Acceptor, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
	if cfg.Addr == "" {
		return nil, ErrMissingAddress
	}
	if cfg.Kind.TLSCapable() && resolver == nil {
		return nil, ErrResolverRequired
	}

	switch cfg.Kind {
	case KindTCP:
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("bind tcp %s: %w", cfg.Addr, err)
		}
		return NewPlain(ln), nil

	case KindUnix:
		ln, err := net.Listen("unix", cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("bind unix %s: %w", cfg.Addr, err)
		}
		return NewPlain(ln), nil

	case KindTLS:
		backend, err := BackendByName(cfg.TLSBackend)
		if err != nil {
			return nil, err
		}
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("bind tcp %s: %w", cfg.Addr, err)
		}
		return NewTLS(ln, backend, resolver, WithHandshakeTimeout(cfg.HandshakeTimeout))

	case KindQUIC:
		return NewQUIC(cfg.Addr, resolver)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
}
