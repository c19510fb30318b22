package listener_test

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moatkit/moat/core/certstore"
	"github.com/moatkit/moat/core/listener"
)

func newTCPListener(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestPlainAcceptor(t *testing.T) {
	t.Parallel()

	ln := newTCPListener(t)
	acceptor := listener.NewPlain(ln)
	defer acceptor.Close()

	assert.Equal(t, ln.Addr(), acceptor.Addr())

	clientDone := make(chan error, 1)
	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			clientDone <- err
			return
		}
		defer c.Close()

		if _, err := c.Write([]byte("ping")); err != nil {
			clientDone <- err
			return
		}
		buf := make([]byte, 4)
		if _, err := io.ReadFull(c, buf); err != nil {
			clientDone <- err
			return
		}
		clientDone <- nil
	}()

	conn, err := acceptor.Accept(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	stream, err := conn.NextStream(context.Background())
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(stream, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	_, err = stream.Write(buf)
	require.NoError(t, err)
	require.NoError(t, <-clientDone)

	// A byte-stream connection is its own single stream.
	_, err = conn.NextStream(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestPlainAcceptorClose(t *testing.T) {
	t.Parallel()

	acceptor := listener.NewPlain(newTCPListener(t))

	accepted := make(chan error, 1)
	go func() {
		_, err := acceptor.Accept(context.Background())
		accepted <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, acceptor.Close())

	select {
	case err := <-accepted:
		assert.ErrorIs(t, err, listener.ErrAcceptorClosed)
	case <-time.After(time.Second):
		t.Fatal("Accept did not unblock after Close")
	}

	// Idempotent, and Accept keeps reporting closed.
	require.NoError(t, acceptor.Close())
	_, err := acceptor.Accept(context.Background())
	assert.ErrorIs(t, err, listener.ErrAcceptorClosed)
}

func TestPlainAcceptorContextCancel(t *testing.T) {
	t.Parallel()

	acceptor := listener.NewPlain(newTCPListener(t))
	defer acceptor.Close()

	ctx, cancel := context.WithCancel(context.Background())

	accepted := make(chan error, 1)
	go func() {
		_, err := acceptor.Accept(ctx)
		accepted <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-accepted:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Accept did not unblock on context cancellation")
	}
}

func TestBackendByName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		want       string
		minVersion uint16
	}{
		{"", "modern", tls.VersionTLS13},
		{"modern", "modern", tls.VersionTLS13},
		{"Intermediate", "intermediate", tls.VersionTLS12},
		{" strict ", "strict", tls.VersionTLS13},
	}
	for _, tc := range cases {
		backend, err := listener.BackendByName(tc.name)
		require.NoError(t, err, "backend %q", tc.name)
		assert.Equal(t, tc.want, backend.Name())
		assert.Equal(t, tc.minVersion, backend.ServerConfig().MinVersion)
	}

	_, err := listener.BackendByName("openssl")
	assert.ErrorIs(t, err, listener.ErrUnknownTLSBackend)
}

func TestNewConfigDispatch(t *testing.T) {
	t.Parallel()

	resolver := certstore.NewResolver()

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		_, err := listener.New(listener.Config{Addr: ":0", Kind: "carrier-pigeon"}, nil)
		assert.ErrorIs(t, err, listener.ErrUnknownKind)
	})

	t.Run("missing address", func(t *testing.T) {
		t.Parallel()
		_, err := listener.New(listener.Config{Kind: listener.KindTCP}, nil)
		assert.ErrorIs(t, err, listener.ErrMissingAddress)
	})

	t.Run("tls without resolver", func(t *testing.T) {
		t.Parallel()
		_, err := listener.New(listener.Config{Addr: ":0", Kind: listener.KindTLS}, nil)
		assert.ErrorIs(t, err, listener.ErrResolverRequired)
	})

	t.Run("tcp", func(t *testing.T) {
		t.Parallel()
		a, err := listener.New(listener.Config{Addr: "127.0.0.1:0", Kind: listener.KindTCP}, nil)
		require.NoError(t, err)
		defer a.Close()
		assert.Equal(t, "tcp", a.Addr().Network())
	})

	t.Run("unix", func(t *testing.T) {
		t.Parallel()
		sock := filepath.Join(t.TempDir(), "moat.sock")
		a, err := listener.New(listener.Config{Addr: sock, Kind: listener.KindUnix}, nil)
		require.NoError(t, err)
		defer a.Close()
		assert.Equal(t, "unix", a.Addr().Network())
	})

	t.Run("tls with unknown backend", func(t *testing.T) {
		t.Parallel()
		_, err := listener.New(listener.Config{
			Addr:       "127.0.0.1:0",
			Kind:       listener.KindTLS,
			TLSBackend: "gnutls",
		}, resolver)
		assert.ErrorIs(t, err, listener.ErrUnknownTLSBackend)
	})

	t.Run("quic", func(t *testing.T) {
		t.Parallel()
		a, err := listener.New(listener.Config{Addr: "127.0.0.1:0", Kind: listener.KindQUIC}, resolver)
		require.NoError(t, err)
		defer a.Close()
		assert.Equal(t, "udp", a.Addr().Network())
	})
}
