// Package certstore holds the active certificate material for TLS listeners:
// an atomically swappable per-host resolver consulted on every handshake, and
// a disk store for account and certificate persistence across restarts.
//
// # Types
//
//   - CertifiedKey: Immutable private key + leaf-first certificate chain
//   - Resolver: Lock-free per-host certificate selection with hot-swap publish
//   - Store: Atomic on-disk persistence of accounts and issued certificates
//
// # Hot-swap semantics
//
// Resolver reads never wait on writers. Publish replaces an immutable
// identity table behind an atomic pointer; an in-flight handshake completes
// with whichever CertifiedKey it fetched, and superseded instances are
// collected once the last handshake referencing them finishes.
//
// # Basic Usage
//
//	resolver := certstore.NewResolver()
//
//	ck, err := certstore.NewCertifiedKey(certPEM, keyPEM)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := resolver.Publish("example.com", ck); err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := &tls.Config{GetCertificate: resolver.GetCertificate}
package certstore
