package server

import "errors"

var (
	// ErrHandlerRequired is returned when a Runtime is created without a
	// pipeline handler.
	ErrHandlerRequired = errors.New("handler is required")

	// ErrNoAcceptors is returned by Start when no acceptor was registered.
	ErrNoAcceptors = errors.New("no acceptors registered")

	// ErrAlreadyRunning is returned when Start is called on a running runtime
	// or an acceptor is added after Start.
	ErrAlreadyRunning = errors.New("runtime is already running")

	// ErrShutdownTimeout is returned by Stop when in-flight connections did
	// not finish within the shutdown timeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)
