package keymaterial_test

import (
	"crypto/ecdsa"
	"crypto/x509"
	"testing"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moatkit/moat/core/keymaterial"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("ec256", func(t *testing.T) {
		t.Parallel()

		key, err := keymaterial.Generate(certcrypto.EC256)
		require.NoError(t, err)
		require.NotNil(t, key)

		ec, ok := key.(*ecdsa.PrivateKey)
		require.True(t, ok)
		assert.Equal(t, "P-256", ec.Curve.Params().Name)
	})

	t.Run("rsa2048", func(t *testing.T) {
		t.Parallel()

		key, err := keymaterial.Generate(certcrypto.RSA2048)
		require.NoError(t, err)
		require.NotNil(t, key)
	})
}

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	t.Parallel()

	key, err := keymaterial.Generate(certcrypto.EC256)
	require.NoError(t, err)

	pemData, err := keymaterial.EncodePrivateKeyPEM(key)
	require.NoError(t, err)
	assert.Contains(t, string(pemData), "PRIVATE KEY")

	parsed, err := keymaterial.ParsePrivateKeyPEM(pemData)
	require.NoError(t, err)
	assert.Equal(t, key.Public(), parsed.Public())
}

func TestParsePrivateKeyPEMInvalid(t *testing.T) {
	t.Parallel()

	_, err := keymaterial.ParsePrivateKeyPEM([]byte("not a key"))
	assert.ErrorIs(t, err, keymaterial.ErrInvalidPrivateKey)
}

func TestParseCertificateChain(t *testing.T) {
	t.Parallel()

	t.Run("valid chain", func(t *testing.T) {
		t.Parallel()

		certPEM, _, err := keymaterial.SelfSigned([]string{"example.com"}, certcrypto.EC256, time.Hour)
		require.NoError(t, err)

		certs, err := keymaterial.ParseCertificateChain(certPEM)
		require.NoError(t, err)
		require.Len(t, certs, 1)
		assert.Equal(t, "example.com", certs[0].Subject.CommonName)
	})

	t.Run("garbage input", func(t *testing.T) {
		t.Parallel()

		_, err := keymaterial.ParseCertificateChain([]byte("garbage"))
		assert.ErrorIs(t, err, keymaterial.ErrInvalidCertificate)
	})
}

func TestCreateCSR(t *testing.T) {
	t.Parallel()

	key, err := keymaterial.Generate(certcrypto.EC256)
	require.NoError(t, err)

	t.Run("domains land in subject and SAN", func(t *testing.T) {
		t.Parallel()

		der, err := keymaterial.CreateCSR(key, []string{"Example.COM", " www.example.com "})
		require.NoError(t, err)

		csr, err := x509.ParseCertificateRequest(der)
		require.NoError(t, err)
		require.NoError(t, csr.CheckSignature())

		assert.Equal(t, "example.com", csr.Subject.CommonName)
		assert.Equal(t, []string{"example.com", "www.example.com"}, csr.DNSNames)
	})

	t.Run("no domains", func(t *testing.T) {
		t.Parallel()

		_, err := keymaterial.CreateCSR(key, []string{" ", ""})
		assert.ErrorIs(t, err, keymaterial.ErrNoDomains)
	})
}

func TestSelfSigned(t *testing.T) {
	t.Parallel()

	t.Run("produces matching pair", func(t *testing.T) {
		t.Parallel()

		certPEM, keyPEM, err := keymaterial.SelfSigned([]string{"dev.local", "api.dev.local"}, certcrypto.EC256, 24*time.Hour)
		require.NoError(t, err)

		certs, err := keymaterial.ParseCertificateChain(certPEM)
		require.NoError(t, err)
		require.Len(t, certs, 1)

		leaf := certs[0]
		assert.Equal(t, []string{"dev.local", "api.dev.local"}, leaf.DNSNames)
		assert.True(t, leaf.NotBefore.Before(time.Now()))
		assert.True(t, leaf.NotAfter.After(time.Now().Add(23*time.Hour)))
		require.NoError(t, leaf.VerifyHostname("api.dev.local"))

		key, err := keymaterial.ParsePrivateKeyPEM(keyPEM)
		require.NoError(t, err)
		assert.Equal(t, leaf.PublicKey, key.Public())
	})

	t.Run("rejects empty domain list", func(t *testing.T) {
		t.Parallel()

		_, _, err := keymaterial.SelfSigned(nil, certcrypto.EC256, time.Hour)
		assert.ErrorIs(t, err, keymaterial.ErrNoDomains)
	})

	t.Run("rejects non-positive validity", func(t *testing.T) {
		t.Parallel()

		_, _, err := keymaterial.SelfSigned([]string{"dev.local"}, certcrypto.EC256, 0)
		assert.ErrorIs(t, err, keymaterial.ErrInvalidValidity)
	})
}
