package certstore

import (
	"crypto/tls"
	"crypto/x509"
	"time"

	"github.com/moatkit/moat/core/keymaterial"
)

// CertifiedKey is an immutable private key plus certificate chain, ordered
// leaf first. Instances are replaced wholesale by the resolver, never mutated
// in place; handshakes that picked up a superseded instance keep it alive
// until they complete.
type CertifiedKey struct {
	certificate tls.Certificate
	leaf        *x509.Certificate
}

// NewCertifiedKey builds a CertifiedKey from PEM-encoded certificate chain
// and private key.
func NewCertifiedKey(certPEM, keyPEM []byte) (*CertifiedKey, error) {
	chain, err := keymaterial.ParseCertificateChain(certPEM)
	if err != nil {
		return nil, err
	}

	key, err := keymaterial.ParsePrivateKeyPEM(keyPEM)
	if err != nil {
		return nil, err
	}

	der := make([][]byte, len(chain))
	for i, c := range chain {
		der[i] = c.Raw
	}

	ck := &CertifiedKey{
		certificate: tls.Certificate{
			Certificate: der,
			PrivateKey:  key,
			Leaf:        chain[0],
		},
		leaf: chain[0],
	}

	if !ck.leaf.NotAfter.After(ck.leaf.NotBefore) {
		return nil, ErrInvalidValidityWindow
	}

	return ck, nil
}

// Certificate returns the chain and key in the form the TLS stack consumes.
// The returned value must not be modified.
func (ck *CertifiedKey) Certificate() *tls.Certificate {
	return &ck.certificate
}

// Leaf returns the parsed leaf certificate.
func (ck *CertifiedKey) Leaf() *x509.Certificate {
	return ck.leaf
}

// NotBefore returns the start of the leaf's validity window.
func (ck *CertifiedKey) NotBefore() time.Time {
	return ck.leaf.NotBefore
}

// NotAfter returns the end of the leaf's validity window.
func (ck *CertifiedKey) NotAfter() time.Time {
	return ck.leaf.NotAfter
}

// ValidAt reports whether the key is usable at the given instant.
func (ck *CertifiedKey) ValidAt(t time.Time) bool {
	return !t.Before(ck.leaf.NotBefore) && t.Before(ck.leaf.NotAfter)
}

// RemainingValidity returns how long the key stays valid after now.
// Negative once expired.
func (ck *CertifiedKey) RemainingValidity(now time.Time) time.Duration {
	return ck.leaf.NotAfter.Sub(now)
}

// Domains returns the DNS identifiers the leaf covers.
func (ck *CertifiedKey) Domains() []string {
	return ck.leaf.DNSNames
}
