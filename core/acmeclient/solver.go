package acmeclient

import (
	"context"
	"crypto/tls"

	"github.com/moatkit/moat/core/certstore"
)

// ChallengeSolver presents proof-of-control material for a domain under
// validation and removes it once the challenge settles.
type ChallengeSolver interface {
	// Present installs the challenge response for the domain. For TLS-ALPN-01
	// this is the marker certificate served to acme-tls/1 handshakes.
	Present(ctx context.Context, domain string, cert *tls.Certificate) error

	// CleanUp removes the challenge response for the domain. Called regardless
	// of validation outcome.
	CleanUp(ctx context.Context, domain string) error
}

// TLSALPNSolver fulfills TLS-ALPN-01 challenges through the same resolver the
// production listeners read: the marker certificate goes into the resolver's
// challenge slot, the CA's validation connection arrives over the regular TLS
// acceptor, and no separate HTTP listener or DNS mutation is involved.
type TLSALPNSolver struct {
	resolver *certstore.Resolver
}

// NewTLSALPNSolver creates a solver backed by the given resolver.
func NewTLSALPNSolver(resolver *certstore.Resolver) *TLSALPNSolver {
	return &TLSALPNSolver{resolver: resolver}
}

func (s *TLSALPNSolver) Present(_ context.Context, domain string, cert *tls.Certificate) error {
	s.resolver.PutChallengeCertificate(domain, cert)
	return nil
}

func (s *TLSALPNSolver) CleanUp(_ context.Context, domain string) error {
	s.resolver.DeleteChallengeCertificate(domain)
	return nil
}
