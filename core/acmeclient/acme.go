package acmeclient

import (
	"context"
	"crypto"
	"crypto/tls"
	"net/http"
	"time"

	"golang.org/x/crypto/acme"
)

// directoryClient is the narrow slice of the ACME directory protocol the
// issuance state machine needs. It exists so tests can substitute a scripted
// CA without real network round-trips; the default implementation wraps
// acme.Client, which carries the JWS signing and nonce handling.
type directoryClient interface {
	Register(ctx context.Context, acct *acme.Account, prompt func(tosURL string) bool) (*acme.Account, error)
	GetReg(ctx context.Context, url string) (*acme.Account, error)
	AuthorizeOrder(ctx context.Context, ids []acme.AuthzID) (*acme.Order, error)
	GetOrder(ctx context.Context, url string) (*acme.Order, error)
	GetAuthorization(ctx context.Context, url string) (*acme.Authorization, error)
	Accept(ctx context.Context, chal *acme.Challenge) (*acme.Challenge, error)
	CreateOrderCert(ctx context.Context, finalizeURL string, csr []byte, bundle bool) ([][]byte, string, error)
	TLSALPN01ChallengeCert(token, domain string) (tls.Certificate, error)
}

// directoryFactory builds a directoryClient bound to an account key.
type directoryFactory func(directoryURL string, key crypto.Signer, timeout time.Duration) directoryClient

func defaultDirectoryFactory(directoryURL string, key crypto.Signer, timeout time.Duration) directoryClient {
	return &directoryAdapter{
		client: &acme.Client{
			Key:          key,
			DirectoryURL: directoryURL,
			HTTPClient:   &http.Client{Timeout: timeout},
			UserAgent:    "moat",
		},
	}
}

type directoryAdapter struct {
	client *acme.Client
}

func (d *directoryAdapter) Register(ctx context.Context, acct *acme.Account, prompt func(string) bool) (*acme.Account, error) {
	return d.client.Register(ctx, acct, prompt)
}

func (d *directoryAdapter) GetReg(ctx context.Context, url string) (*acme.Account, error) {
	return d.client.GetReg(ctx, url)
}

func (d *directoryAdapter) AuthorizeOrder(ctx context.Context, ids []acme.AuthzID) (*acme.Order, error) {
	return d.client.AuthorizeOrder(ctx, ids)
}

func (d *directoryAdapter) GetOrder(ctx context.Context, url string) (*acme.Order, error) {
	return d.client.GetOrder(ctx, url)
}

func (d *directoryAdapter) GetAuthorization(ctx context.Context, url string) (*acme.Authorization, error) {
	return d.client.GetAuthorization(ctx, url)
}

func (d *directoryAdapter) Accept(ctx context.Context, chal *acme.Challenge) (*acme.Challenge, error) {
	return d.client.Accept(ctx, chal)
}

func (d *directoryAdapter) CreateOrderCert(ctx context.Context, finalizeURL string, csr []byte, bundle bool) ([][]byte, string, error) {
	return d.client.CreateOrderCert(ctx, finalizeURL, csr, bundle)
}

func (d *directoryAdapter) TLSALPN01ChallengeCert(token, domain string) (tls.Certificate, error) {
	return d.client.TLSALPN01ChallengeCert(token, domain)
}
