package keymaterial

import "errors"

var (
	// ErrNoDomains is returned when an operation requires at least one domain.
	ErrNoDomains = errors.New("at least one domain is required")

	// ErrUnsupportedKeyType is returned when a parsed or generated key cannot sign.
	ErrUnsupportedKeyType = errors.New("unsupported private key type")

	// ErrInvalidPrivateKey is returned when PEM key data cannot be parsed.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrInvalidCertificate is returned when PEM certificate data cannot be parsed.
	ErrInvalidCertificate = errors.New("invalid certificate")

	// ErrEmptyCertificateChain is returned when a PEM bundle contains no certificates.
	ErrEmptyCertificateChain = errors.New("certificate chain is empty")

	// ErrInvalidValidity is returned when a requested validity period is not positive.
	ErrInvalidValidity = errors.New("validity period must be positive")
)
