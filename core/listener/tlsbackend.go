package listener

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// TLSBackend shapes the TLS configuration a secured acceptor runs with. The
// three shipped backends are interchangeable behind this interface and differ
// only in protocol floor and cipher policy; selection happens once, at
// acceptor construction.
type TLSBackend interface {
	// Name identifies the backend in configuration and logs.
	Name() string

	// ServerConfig returns a fresh tls.Config for server-side handshakes.
	// Certificate selection is attached by the acceptor afterwards.
	ServerConfig() *tls.Config
}

// ModernBackend follows Mozilla's Modern compatibility guidelines:
// TLS 1.3 only, cipher suites auto-selected.
type ModernBackend struct{}

func (ModernBackend) Name() string { return "modern" }

func (ModernBackend) ServerConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
}

// IntermediateBackend follows Mozilla's Intermediate compatibility
// guidelines: TLS 1.2+ with ECDHE AEAD cipher suites for older clients.
type IntermediateBackend struct{}

func (IntermediateBackend) Name() string { return "intermediate" }

func (IntermediateBackend) ServerConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
			tls.CurveP384,
		},
	}
}

// StrictBackend is ModernBackend with additional hardening for environments
// that control all clients.
type StrictBackend struct{}

func (StrictBackend) Name() string { return "strict" }

func (StrictBackend) ServerConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		SessionTicketsDisabled: true,
		Renegotiation:          tls.RenegotiateNever,
	}
}

// BackendByName resolves a configured backend name.
func BackendByName(name string) (TLSBackend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "modern":
		return ModernBackend{}, nil
	case "intermediate":
		return IntermediateBackend{}, nil
	case "strict":
		return StrictBackend{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTLSBackend, name)
	}
}
