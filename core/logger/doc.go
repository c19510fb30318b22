// Package logger provides structured logging utilities built on Go's
// standard slog package: nil-safe attribute constructors for the concerns
// this module logs about (errors, durations, domain sets, certificate
// lifetimes, listener and connection identity).
//
// All constructors return an empty slog.Attr for zero values, so call sites
// never need nil or empty checks:
//
//	log.Info("certificate renewed",
//		logger.Domains(domains),
//		logger.NotAfter(cert.NotAfter()),
//		logger.Elapsed(start),
//	)
//
//	log.Error("renewal failed",
//		logger.Domains(domains),
//		logger.Error(err),
//		logger.RetryCount(attempt),
//	)
package logger
