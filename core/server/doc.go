// Package server drives the accept loops of a set of listeners and hands
// every accepted stream to a pipeline Handler. It owns lifecycle only:
// binding, accepting, per-connection bookkeeping, and graceful shutdown.
// Everything about interpreting the bytes on a stream lives behind the
// Handler boundary.
//
// Each acceptor runs its own loop. Handshake failures are logged and skipped;
// a fatal listener error terminates that one loop while the remaining
// listeners keep serving. Stop (or context cancellation through Run) closes
// the acceptors and gives in-flight connections a bounded window to finish.
//
// # Basic Usage
//
//	rt, err := server.NewFromConfigs(handler, cfgs, resolver,
//		server.WithLogger(logger),
//		server.WithShutdownTimeout(15*time.Second),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(rt.Run(ctx))
//	if err := g.Wait(); err != nil {
//		log.Fatal(err)
//	}
//
// # Thread Safety
//
// Runtime is safe for concurrent use. Start and Stop may be called from
// different goroutines; a second Start on a running runtime returns
// ErrAlreadyRunning.
package server
