package server

import "time"

const (
	// DefaultShutdownTimeout is the default window for draining in-flight
	// connections during graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)
