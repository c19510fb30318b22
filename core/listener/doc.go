// Package listener unifies heterogeneous transports behind one accept
// contract. An Acceptor produces accepted, already-secured connections; the
// five variants are plain TCP, Unix domain sockets, TLS over TCP with three
// interchangeable configuration backends (modern, intermediate, strict), and
// QUIC/HTTP3.
//
// TLS-bearing variants complete the handshake synchronously inside Accept and
// select their certificate per handshake through a certstore.Resolver, so a
// published certificate swap takes effect on the very next connection. ACME
// TLS-ALPN-01 validation handshakes are recognized by ALPN, served the marker
// certificate, and absorbed without reaching the caller.
//
// # Failure semantics
//
// A single connection's handshake failure surfaces as *HandshakeError and
// leaves the acceptor serving; a listener-level failure terminates the
// acceptor and is surfaced once. Close idempotently unblocks any pending
// Accept with ErrAcceptorClosed.
//
// # Basic Usage
//
//	acceptor, err := listener.New(listener.Config{
//		Addr:       ":443",
//		Kind:       listener.KindTLS,
//		TLSBackend: "modern",
//		Domains:    []string{"example.com"},
//	}, resolver)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer acceptor.Close()
//
//	for {
//		conn, err := acceptor.Accept(ctx)
//		var hs *listener.HandshakeError
//		switch {
//		case errors.As(err, &hs):
//			continue // one bad connection, keep serving
//		case err != nil:
//			return err
//		}
//		go handle(conn)
//	}
package listener
