package certstore

import (
	"crypto/tls"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/acme"
)

// Resolver holds the currently active certificate per host identity and
// selects one for each incoming TLS handshake by SNI.
//
// Reads are lock-free: the identity table is an immutable map behind an
// atomic pointer, replaced wholesale on every publish. A handshake that has
// already fetched a CertifiedKey keeps using it even if a newer one is
// published mid-handshake.
type Resolver struct {
	mu         sync.Mutex // serializes writers only
	identities atomic.Pointer[map[string]*CertifiedKey]
	challenges atomic.Pointer[map[string]*tls.Certificate]
	fallback   atomic.Pointer[CertifiedKey]
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	r := &Resolver{}
	r.identities.Store(&map[string]*CertifiedKey{})
	r.challenges.Store(&map[string]*tls.Certificate{})
	return r
}

// Current returns the published CertifiedKey for the host.
// Returns ErrCertificateNotFound when the host has no entry and
// ErrCertificateExpired when the entry's validity window has closed;
// an expired certificate is never handed to a handshake.
func (r *Resolver) Current(host string) (*CertifiedKey, error) {
	ck, ok := (*r.identities.Load())[normalizeHost(host)]
	if !ok {
		return nil, ErrCertificateNotFound
	}
	if !ck.ValidAt(time.Now()) {
		return nil, ErrCertificateExpired
	}
	return ck, nil
}

// Publish atomically replaces the certificate for the host. The key must be
// inside its validity window at publish time; a publish is observable by the
// next Current call on any goroutine.
func (r *Resolver) Publish(host string, ck *CertifiedKey) error {
	if ck == nil {
		return ErrNilCertifiedKey
	}
	if !ck.ValidAt(time.Now()) {
		return ErrKeyOutsideValidity
	}

	host = normalizeHost(host)
	if host == "" {
		return ErrEmptyHost
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.identities.Load()
	next := make(map[string]*CertifiedKey, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[host] = ck
	r.identities.Store(&next)

	return nil
}

// Remove drops the entry for the host, if any.
func (r *Resolver) Remove(host string) {
	host = normalizeHost(host)

	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.identities.Load()
	if _, ok := old[host]; !ok {
		return
	}
	next := make(map[string]*CertifiedKey, len(old))
	for k, v := range old {
		if k != host {
			next[k] = v
		}
	}
	r.identities.Store(&next)
}

// Hosts returns the identities currently published.
func (r *Resolver) Hosts() []string {
	m := *r.identities.Load()
	hosts := make([]string, 0, len(m))
	for k := range m {
		hosts = append(hosts, k)
	}
	return hosts
}

// SetFallback sets the certificate served when SNI is absent or matches no
// configured identity. Without a fallback such handshakes fail with
// ErrNoCertificateAvailable.
func (r *Resolver) SetFallback(ck *CertifiedKey) {
	r.fallback.Store(ck)
}

// PutChallengeCertificate installs the TLS-ALPN-01 marker certificate for a
// domain under validation. TLS acceptors serve it for acme-tls/1 handshakes
// until DeleteChallengeCertificate reverts to the real identity.
func (r *Resolver) PutChallengeCertificate(domain string, cert *tls.Certificate) {
	domain = normalizeHost(domain)

	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.challenges.Load()
	next := make(map[string]*tls.Certificate, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[domain] = cert
	r.challenges.Store(&next)
}

// DeleteChallengeCertificate removes the marker certificate for a domain.
func (r *Resolver) DeleteChallengeCertificate(domain string) {
	domain = normalizeHost(domain)

	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.challenges.Load()
	if _, ok := old[domain]; !ok {
		return
	}
	next := make(map[string]*tls.Certificate, len(old))
	for k, v := range old {
		if k != domain {
			next[k] = v
		}
	}
	r.challenges.Store(&next)
}

// GetCertificate selects the certificate for an incoming handshake. It is
// the single dispatch point every TLS-bearing acceptor plugs into
// tls.Config.GetCertificate.
//
// ACME validation connections announce the acme-tls/1 protocol and are served
// the challenge marker certificate for the identifier under validation.
func (r *Resolver) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if isACMEChallengeHello(hello) {
		cert, ok := (*r.challenges.Load())[normalizeHost(hello.ServerName)]
		if !ok {
			return nil, ErrNoChallengeCertificate
		}
		return cert, nil
	}

	ck, err := r.Current(hello.ServerName)
	if err != nil {
		// An expired configured identity fails the handshake outright. The
		// fallback serves only hosts this resolver was never configured for.
		if errors.Is(err, ErrCertificateExpired) {
			return nil, ErrNoCertificateAvailable
		}
		if fb := r.fallback.Load(); fb != nil && fb.ValidAt(time.Now()) {
			return fb.Certificate(), nil
		}
		return nil, ErrNoCertificateAvailable
	}

	return ck.Certificate(), nil
}

func isACMEChallengeHello(hello *tls.ClientHelloInfo) bool {
	return len(hello.SupportedProtos) == 1 && hello.SupportedProtos[0] == acme.ALPNProto
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	// SNI never carries a port, but direct callers may pass host:port.
	if idx := strings.LastIndex(host, ":"); idx != -1 && !strings.Contains(host, "]") && strings.Count(host, ":") == 1 {
		host = host[:idx]
	}
	return strings.TrimSuffix(host, ".")
}
