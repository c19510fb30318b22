package certstore

import "errors"

var (
	// ErrCertificateNotFound is returned when no certificate exists for a host.
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrCertificateExpired is returned when the published certificate's
	// validity window has closed.
	ErrCertificateExpired = errors.New("certificate expired")

	// ErrNoCertificateAvailable is returned to a handshake when neither a host
	// identity nor a fallback certificate can serve it.
	ErrNoCertificateAvailable = errors.New("no certificate available")

	// ErrNoChallengeCertificate is returned when an acme-tls/1 validation
	// handshake arrives outside a challenge window.
	ErrNoChallengeCertificate = errors.New("no acme challenge certificate for domain")

	// ErrNilCertifiedKey is returned when publishing a nil key.
	ErrNilCertifiedKey = errors.New("certified key is nil")

	// ErrKeyOutsideValidity is returned when publishing a key whose validity
	// window does not cover the current time.
	ErrKeyOutsideValidity = errors.New("certified key outside validity window")

	// ErrInvalidValidityWindow is returned when a certificate's not-after is
	// not later than its not-before.
	ErrInvalidValidityWindow = errors.New("certificate validity window is invalid")

	// ErrEmptyHost is returned when a host identity is empty.
	ErrEmptyHost = errors.New("host is required")

	// ErrNoDomains is returned when a domain set is empty.
	ErrNoDomains = errors.New("at least one domain is required")

	// ErrEmptyStoreDir is returned when the storage directory is not provided.
	ErrEmptyStoreDir = errors.New("storage directory is required")

	// ErrEmptyDirectoryURL is returned when an account record has no directory URL.
	ErrEmptyDirectoryURL = errors.New("directory URL is required")

	// ErrAccountNotFound is returned when no persisted account exists for a directory.
	ErrAccountNotFound = errors.New("account not found")
)
