// Package renewal keeps issued certificates fresh. A Scheduler runs one
// background loop per configured domain set, compares the published
// certificate's expiry against the renewal threshold on every tick, and asks
// the issuer for a replacement when due. Successful renewals are hot-swapped
// into the resolver; failed attempts retry with exponential backoff (a much
// longer one when the CA is rate limiting) while the still-valid certificate
// keeps serving.
//
// EnsureInitial runs before listeners start: it loads a cached certificate
// from the store or performs a synchronous first issuance, so a TLS socket is
// never bound without a usable certificate.
//
// # Basic Usage
//
//	sched, err := renewal.New(renewal.DefaultConfig(), client, resolver)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := sched.AddDomainSet("example.com", "www.example.com"); err != nil {
//		log.Fatal(err)
//	}
//	if err := sched.EnsureInitial(ctx); err != nil {
//		log.Fatal(err) // fail fast: no TLS listener without a certificate
//	}
//	if err := sched.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer sched.Stop()
package renewal
