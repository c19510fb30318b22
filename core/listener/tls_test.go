package listener_test

import (
	"context"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/acme"

	"github.com/moatkit/moat/core/certstore"
	"github.com/moatkit/moat/core/keymaterial"
	"github.com/moatkit/moat/core/listener"
)

func newResolverWith(t *testing.T, domains ...string) *certstore.Resolver {
	t.Helper()

	resolver := certstore.NewResolver()
	certPEM, keyPEM, err := keymaterial.SelfSigned(domains, certcrypto.EC256, time.Hour)
	require.NoError(t, err)
	ck, err := certstore.NewCertifiedKey(certPEM, keyPEM)
	require.NoError(t, err)
	for _, d := range domains {
		require.NoError(t, resolver.Publish(d, ck))
	}
	return resolver
}

func newTLSAcceptor(t *testing.T, resolver *certstore.Resolver) listener.Acceptor {
	t.Helper()

	ln := newTCPListener(t)
	acceptor, err := listener.NewTLS(ln, listener.ModernBackend{}, resolver,
		listener.WithHandshakeTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = acceptor.Close() })
	return acceptor
}

// dialTLS handshakes in a goroutine; the server side of the handshake runs
// inside Accept on the test goroutine.
func dialTLS(addr string, cfg *tls.Config) chan error {
	done := make(chan error, 1)
	go func() {
		conn, err := tls.Dial("tcp", addr, cfg)
		if err != nil {
			done <- err
			return
		}
		done <- conn.Handshake()
		// Keep the connection open briefly so the server can use it.
		time.Sleep(100 * time.Millisecond)
		_ = conn.Close()
	}()
	return done
}

func TestNewTLSValidation(t *testing.T) {
	t.Parallel()

	ln := newTCPListener(t)
	defer ln.Close()

	_, err := listener.NewTLS(ln, nil, certstore.NewResolver())
	assert.ErrorIs(t, err, listener.ErrBackendRequired)

	_, err = listener.NewTLS(ln, listener.ModernBackend{}, nil)
	assert.ErrorIs(t, err, listener.ErrResolverRequired)
}

func TestTLSAcceptorHandshake(t *testing.T) {
	t.Parallel()

	resolver := newResolverWith(t, "example.com")
	acceptor := newTLSAcceptor(t, resolver)

	clientDone := dialTLS(acceptor.Addr().String(), &tls.Config{
		ServerName:         "example.com",
		InsecureSkipVerify: true,
	})

	conn, err := acceptor.Accept(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, <-clientDone)

	stream, err := conn.NextStream(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stream)

	tc, ok := stream.(*tls.Conn)
	require.True(t, ok)
	assert.Equal(t, "example.com", tc.ConnectionState().ServerName)
}

func TestTLSAcceptorSurvivesHandshakeFailure(t *testing.T) {
	t.Parallel()

	resolver := newResolverWith(t, "example.com")
	acceptor := newTLSAcceptor(t, resolver)
	addr := acceptor.Addr().String()

	// No certificate for this identity and no fallback: the handshake fails.
	badDone := dialTLS(addr, &tls.Config{
		ServerName:         "unknown.test",
		InsecureSkipVerify: true,
	})

	_, err := acceptor.Accept(context.Background())
	var hs *listener.HandshakeError
	require.ErrorAs(t, err, &hs)
	assert.NotNil(t, hs.Remote)
	require.Error(t, <-badDone)

	// The acceptor keeps serving.
	goodDone := dialTLS(addr, &tls.Config{
		ServerName:         "example.com",
		InsecureSkipVerify: true,
	})

	conn, err := acceptor.Accept(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, <-goodDone)
}

func TestTLSAcceptorAbsorbsACMEValidation(t *testing.T) {
	t.Parallel()

	resolver := newResolverWith(t, "example.com")

	// Marker certificate for the identifier under validation.
	markerPEM, markerKeyPEM, err := keymaterial.SelfSigned([]string{"example.com"}, certcrypto.EC256, time.Hour)
	require.NoError(t, err)
	marker, err := tls.X509KeyPair(markerPEM, markerKeyPEM)
	require.NoError(t, err)
	resolver.PutChallengeCertificate("example.com", &marker)

	acceptor := newTLSAcceptor(t, resolver)
	addr := acceptor.Addr().String()

	// A validation handshake completes for the CA but never reaches Accept.
	validationDone := dialTLS(addr, &tls.Config{
		ServerName:         "example.com",
		NextProtos:         []string{acme.ALPNProto},
		InsecureSkipVerify: true,
	})
	require.NoError(t, <-validationDone)

	regularDone := dialTLS(addr, &tls.Config{
		ServerName:         "example.com",
		InsecureSkipVerify: true,
	})

	conn, err := acceptor.Accept(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, <-regularDone)

	stream, err := conn.NextStream(context.Background())
	require.NoError(t, err)
	tc := stream.(*tls.Conn)
	assert.NotEqual(t, acme.ALPNProto, tc.ConnectionState().NegotiatedProtocol)
}

func TestTLSAcceptorFallbackIdentity(t *testing.T) {
	t.Parallel()

	resolver := certstore.NewResolver()
	certPEM, keyPEM, err := keymaterial.SelfSigned([]string{"fallback.test"}, certcrypto.EC256, time.Hour)
	require.NoError(t, err)
	fb, err := certstore.NewCertifiedKey(certPEM, keyPEM)
	require.NoError(t, err)
	resolver.SetFallback(fb)

	acceptor := newTLSAcceptor(t, resolver)

	clientDone := dialTLS(acceptor.Addr().String(), &tls.Config{
		ServerName:         "anything.test",
		InsecureSkipVerify: true,
	})

	conn, err := acceptor.Accept(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, <-clientDone)
}

func TestStreamConnExposesNetConn(t *testing.T) {
	t.Parallel()

	ln := newTCPListener(t)
	acceptor := listener.NewPlain(ln)
	defer acceptor.Close()

	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err == nil {
			time.Sleep(100 * time.Millisecond)
			_ = c.Close()
		}
	}()

	conn, err := acceptor.Accept(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	nc, ok := conn.(interface{ NetConn() net.Conn })
	require.True(t, ok)
	assert.NotNil(t, nc.NetConn())
}

func TestQUICAcceptor(t *testing.T) {
	t.Parallel()

	t.Run("requires resolver", func(t *testing.T) {
		t.Parallel()
		_, err := listener.NewQUIC("127.0.0.1:0", nil)
		assert.ErrorIs(t, err, listener.ErrResolverRequired)
	})

	t.Run("bind and close", func(t *testing.T) {
		t.Parallel()

		resolver := newResolverWith(t, "example.com")
		acceptor, err := listener.NewQUIC("127.0.0.1:0", resolver)
		require.NoError(t, err)
		assert.Equal(t, "udp", acceptor.Addr().Network())

		require.NoError(t, acceptor.Close())

		_, err = acceptor.Accept(context.Background())
		assert.ErrorIs(t, err, listener.ErrAcceptorClosed)
	})
}
