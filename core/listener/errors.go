package listener

import "errors"

var (
	// ErrAcceptorClosed is returned by Accept after Close, including to any
	// Accept that was pending when Close was called.
	ErrAcceptorClosed = errors.New("acceptor is closed")

	// ErrUnknownKind is returned for a transport kind this package cannot bind.
	ErrUnknownKind = errors.New("unknown listener kind")

	// ErrUnknownTLSBackend is returned for an unrecognized TLS backend name.
	ErrUnknownTLSBackend = errors.New("unknown tls backend")

	// ErrMissingAddress is returned when a listener config has no bind address.
	ErrMissingAddress = errors.New("listener address is required")

	// ErrBackendRequired is returned when a TLS acceptor is built without a backend.
	ErrBackendRequired = errors.New("tls backend is required")

	// ErrResolverRequired is returned when a TLS-capable acceptor is built
	// without a certificate resolver.
	ErrResolverRequired = errors.New("certificate resolver is required")
)
