package keymaterial

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
)

// Generate creates a new private key of the given type.
// The returned key always satisfies crypto.Signer, which is what the ACME
// account and certificate paths require.
func Generate(keyType certcrypto.KeyType) (crypto.Signer, error) {
	key, err := certcrypto.GeneratePrivateKey(keyType)
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", keyType, err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, key)
	}

	return signer, nil
}

// EncodePrivateKeyPEM serializes a private key to PEM.
func EncodePrivateKeyPEM(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParsePrivateKeyPEM parses a PEM-encoded private key in any of the formats
// Generate and EncodePrivateKeyPEM produce.
func ParsePrivateKeyPEM(data []byte) (crypto.Signer, error) {
	key, err := certcrypto.ParsePEMPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, key)
	}

	return signer, nil
}

// ParseCertificateChain parses a PEM bundle into its certificates,
// ordered as they appear in the bundle (leaf first for ACME-issued chains).
func ParseCertificateChain(data []byte) ([]*x509.Certificate, error) {
	certs, err := certcrypto.ParsePEMBundle(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	if len(certs) == 0 {
		return nil, ErrEmptyCertificateChain
	}

	return certs, nil
}

// EncodeCertificateChainPEM serializes DER certificates into one PEM bundle,
// preserving order.
func EncodeCertificateChainPEM(der [][]byte) []byte {
	var out []byte
	for _, b := range der {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: b})...)
	}
	return out
}

// CreateCSR builds a DER-encoded certificate signing request for the given
// key and identifier list. The first domain becomes the subject common name,
// the full list goes into the SAN extension.
func CreateCSR(key crypto.Signer, domains []string) ([]byte, error) {
	domains = normalizeDomains(domains)
	if len(domains) == 0 {
		return nil, ErrNoDomains
	}

	template := &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: domains[0]},
		DNSNames: domains,
	}

	csr, err := x509.CreateCertificateRequest(rand.Reader, template, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate request: %w", err)
	}

	return csr, nil
}

// SelfSigned generates a throwaway self-signed certificate for the given
// domains, valid from one hour in the past until now+validity. Intended for
// development listeners and as a resolver fallback identity, never for
// production trust.
func SelfSigned(domains []string, keyType certcrypto.KeyType, validity time.Duration) (certPEM, keyPEM []byte, err error) {
	domains = normalizeDomains(domains)
	if len(domains) == 0 {
		return nil, nil, ErrNoDomains
	}
	if validity <= 0 {
		return nil, nil, ErrInvalidValidity
	}

	key, err := Generate(keyType)
	if err != nil {
		return nil, nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: domains[0]},
		NotBefore:    now.Add(-1 * time.Hour),
		NotAfter:     now.Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     domains,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, key.Public(), key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	keyPEM, err = EncodePrivateKeyPEM(key)
	if err != nil {
		return nil, nil, err
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return certPEM, keyPEM, nil
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
