package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/moatkit/moat/core/certstore"
	"github.com/moatkit/moat/core/listener"
)

// Handler is the boundary to the request-handling pipeline. The runtime
// invokes it once per accepted stream; routing, extraction, and response
// shaping all live behind it.
type Handler interface {
	ServeStream(ctx context.Context, stream listener.Stream, conn listener.Conn)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, stream listener.Stream, conn listener.Conn)

func (f HandlerFunc) ServeStream(ctx context.Context, stream listener.Stream, conn listener.Conn) {
	f(ctx, stream, conn)
}

// Runtime composes acceptors and drives their accept loops, handing every
// accepted stream to the pipeline. Acceptors run independently: a fatal
// listener error terminates that acceptor only, never its siblings.
// Safe for concurrent use.
type Runtime struct {
	mu        sync.Mutex
	acceptors []listener.Acceptor
	handler   Handler
	logger    *slog.Logger
	shutdown  time.Duration
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	conns     sync.WaitGroup
}

// Option configures runtime behavior.
type Option func(*Runtime)

// WithLogger sets a custom logger for runtime operations.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight
// connections during graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		r.shutdown = d
	}
}

// New creates a Runtime serving the given pipeline handler.
// Defaults to a 30-second graceful shutdown timeout and a no-op logger.
func New(handler Handler, opts ...Option) (*Runtime, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	r := &Runtime{
		handler:  handler,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		shutdown: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// NewFromConfigs creates a Runtime and binds one acceptor per listener
// config. TLS-capable configs consult the resolver for certificates.
func NewFromConfigs(handler Handler, cfgs []listener.Config, resolver *certstore.Resolver, opts ...Option) (*Runtime, error) {
	r, err := New(handler, opts...)
	if err != nil {
		return nil, err
	}

	for _, cfg := range cfgs {
		a, err := listener.New(cfg, resolver)
		if err != nil {
			for _, bound := range r.acceptors {
				_ = bound.Close()
			}
			return nil, err
		}
		r.acceptors = append(r.acceptors, a)
	}

	return r, nil
}

// AddAcceptor registers an already bound acceptor. Must be called before
// Start.
func (r *Runtime) AddAcceptor(a listener.Acceptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}
	r.acceptors = append(r.acceptors, a)
	return nil
}

// Start drives all accept loops and blocks until the context is cancelled,
// Stop is called, or every acceptor has terminated. In-flight connections are
// drained (bounded by the shutdown timeout) before Start returns.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	if len(r.acceptors) == 0 {
		r.mu.Unlock()
		return ErrNoAcceptors
	}
	r.running = true
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	acceptors := append([]listener.Acceptor(nil), r.acceptors...)
	r.mu.Unlock()

	defer close(r.done)
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.logger.InfoContext(ctx, "starting accept loops", "listeners", len(acceptors))

	var g errgroup.Group
	for _, a := range acceptors {
		g.Go(func() error {
			r.acceptLoop(runCtx, a)
			return nil
		})
	}
	_ = g.Wait()

	r.drain(ctx)
	// Stop's internal cancellation is a clean shutdown, only the caller's own
	// context cancellation is worth reporting.
	return ctx.Err()
}

// Stop gracefully shuts the runtime down: acceptors stop producing,
// in-flight connections get the shutdown timeout to finish.
// Returns immediately if the runtime is not running.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	done := r.done
	acceptors := append([]listener.Acceptor(nil), r.acceptors...)
	r.mu.Unlock()

	r.logger.Info("shutting down runtime", "timeout", r.shutdown)

	for _, a := range acceptors {
		_ = a.Close()
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(r.shutdown + time.Second):
		return ErrShutdownTimeout
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management:
// it starts the runtime, monitors context cancellation, and shuts down
// gracefully when the context is cancelled.
func (r *Runtime) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- r.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			if stopErr := r.Stop(); stopErr != nil {
				r.logger.Error("failed to stop runtime during context cancellation", "error", stopErr)
			}
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// acceptLoop serves one acceptor until it terminates. Handshake failures are
// connection-local and never stop the loop.
func (r *Runtime) acceptLoop(ctx context.Context, a listener.Acceptor) {
	log := r.logger.With("addr", a.Addr().String())
	log.Info("listener accepting")

	for {
		conn, err := a.Accept(ctx)
		if err == nil {
			r.conns.Add(1)
			go func() {
				defer r.conns.Done()
				r.serveConn(ctx, conn)
			}()
			continue
		}

		var hs *listener.HandshakeError
		switch {
		case errors.As(err, &hs):
			log.Warn("handshake failed", "remote", hs.Remote, "error", hs.Err)
		case errors.Is(err, listener.ErrAcceptorClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			log.Info("listener stopped")
			return
		default:
			// Transport-fatal: this acceptor is done, siblings keep serving.
			log.Error("listener failed", "error", err)
			return
		}
	}
}

// serveConn feeds every stream of one connection to the pipeline and closes
// the connection once all of them finish.
func (r *Runtime) serveConn(ctx context.Context, conn listener.Conn) {
	id := uuid.NewString()
	log := r.logger.With("conn_id", id, "remote", conn.RemoteAddr().String())
	log.Debug("connection accepted")

	defer func() {
		_ = conn.Close()
		log.Debug("connection closed")
	}()

	var streams sync.WaitGroup
	defer streams.Wait()

	for {
		stream, err := conn.NextStream(ctx)
		if err != nil {
			return
		}

		streams.Add(1)
		go func() {
			defer streams.Done()
			defer func() { _ = stream.Close() }()
			r.handler.ServeStream(ctx, stream, conn)
		}()
	}
}

// drain waits for in-flight connections, bounded by the shutdown timeout.
func (r *Runtime) drain(ctx context.Context) {
	finished := make(chan struct{})
	go func() {
		r.conns.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		r.logger.InfoContext(ctx, "runtime drained")
	case <-time.After(r.shutdown):
		r.logger.Warn("shutdown timeout exceeded with connections in flight")
	}
}
