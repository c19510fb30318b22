// Package moat provides the listener and certificate core of a self-hosting
// HTTP server: multi-transport accept loops, automatic certificate issuance
// over ACME with the TLS-ALPN-01 challenge, lock-free certificate hot-swap,
// and background renewal. The request pipeline itself stays outside this
// module behind the server.Handler boundary.
//
// # Package Organization
//
//   - core/listener: unified Acceptor over plain TCP, Unix sockets, TLS with
//     three configuration backends (modern, intermediate, strict), and
//     QUIC/HTTP3.
//   - core/certstore: per-handshake certificate resolution with atomic
//     publication, the TLS-ALPN-01 challenge slot, and disk persistence of
//     accounts and issued certificates.
//   - core/acmeclient: the issuance state machine against an ACME directory.
//   - core/renewal: background scheduling that keeps every configured domain
//     set renewed ahead of expiry.
//   - core/keymaterial: key generation, PEM codecs, CSRs, and self-signed
//     development certificates.
//   - core/server: accept-loop runtime with graceful shutdown.
//   - core/config: cached environment configuration loading.
//   - core/logger: nil-safe slog attribute constructors.
//
// # Wiring
//
// A typical deployment publishes certificates through one resolver shared by
// every TLS-bearing listener:
//
//	resolver := certstore.NewResolver()
//	store, _ := certstore.NewStore("/var/lib/moat/certs")
//
//	client, _ := acmeclient.New(acmeCfg, acmeclient.NewTLSALPNSolver(resolver),
//		acmeclient.WithStore(store))
//
//	sched, _ := renewal.New(renewCfg, client, resolver, renewal.WithStore(store))
//	sched.AddDomainSet("example.com", "www.example.com")
//	if err := sched.EnsureInitial(ctx); err != nil {
//		log.Fatal(err)
//	}
//	sched.Start(ctx)
//	defer sched.Stop()
//
//	rt, _ := server.NewFromConfigs(handler, listenerCfgs, resolver)
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(rt.Run(ctx))
package moat
