// Package acmeclient obtains TLS certificates from an ACME certificate
// authority. One Client serves one directory URL and account; each call to
// Obtain runs a full issuance attempt through an explicit state machine:
//
//	NoAccount -> Registered -> OrderCreated -> Authorizing -> OrderReady
//	          -> Finalizing -> OrderValid -> Downloaded
//
// Any order, authorization, or challenge the CA marks invalid fails the whole
// attempt; no partial certificate is ever returned.
//
// Challenge fulfillment is TLS-ALPN-01 and protocol-embedded: the marker
// certificate is published into the certstore.Resolver challenge slot, and the
// CA's validation connection is served by the same TLS acceptor that carries
// production traffic. No plain-HTTP listener and no DNS mutation is required.
//
// # Errors
//
//   - ErrAccountRegistrationFailed: Account creation or recovery failed
//   - ErrOrderRejected: CA refused or invalidated the order
//   - ErrChallengeTimeout: Polling budget exhausted before the CA settled
//   - ErrChallengeInvalid: CA marked an authorization or challenge invalid
//   - ErrFinalizeFailed: CSR submission failed
//   - ErrDownloadFailed: Issued certificate unusable
//   - ErrRateLimited: CA throttling; callers apply a longer backoff
//
// # Basic Usage
//
//	resolver := certstore.NewResolver()
//	solver := acmeclient.NewTLSALPNSolver(resolver)
//
//	client, err := acmeclient.New(acmeclient.Config{
//		DirectoryURL: acmeclient.DefaultDirectoryURL,
//		Contact:      "admin@example.com",
//	}, solver)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ck, err := client.Obtain(ctx, []string{"example.com"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	_ = resolver.Publish("example.com", ck)
package acmeclient
