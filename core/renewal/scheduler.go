package renewal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/moatkit/moat/core/acmeclient"
	"github.com/moatkit/moat/core/certstore"
)

// Issuer obtains a fresh certificate for a domain set. Satisfied by
// acmeclient.Client.
type Issuer interface {
	Obtain(ctx context.Context, domains []string) (*certstore.CertifiedKey, error)
}

// Config holds renewal scheduling configuration with environment variable
// support.
type Config struct {
	// Threshold is how long before expiry a certificate becomes due for
	// renewal. Defaults to 30 days.
	Threshold time.Duration `env:"RENEWAL_THRESHOLD" envDefault:"720h"`

	// CheckInterval is how often each domain set's expiry is inspected.
	CheckInterval time.Duration `env:"RENEWAL_CHECK_INTERVAL" envDefault:"1h"`

	// RetryInterval is the initial backoff after a failed renewal attempt.
	RetryInterval time.Duration `env:"RENEWAL_RETRY_INTERVAL" envDefault:"1m"`

	// MaxRetryInterval caps the exponential retry backoff.
	MaxRetryInterval time.Duration `env:"RENEWAL_MAX_RETRY_INTERVAL" envDefault:"1h"`

	// RateLimitInterval is the minimum wait after the CA reports rate
	// limiting, typically much longer than the ordinary retry backoff.
	RateLimitInterval time.Duration `env:"RENEWAL_RATE_LIMIT_INTERVAL" envDefault:"24h"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:         30 * 24 * time.Hour,
		CheckInterval:     time.Hour,
		RetryInterval:     time.Minute,
		MaxRetryInterval:  time.Hour,
		RateLimitInterval: 24 * time.Hour,
	}
}

// domainSet is the per-set mutable state. Confined to the scheduler; the
// in-flight mutex guarantees at most one order per domain set at any time.
type domainSet struct {
	domains []string

	inFlight sync.Mutex

	mu          sync.Mutex
	lastAttempt time.Time
	lastError   error
	renewals    int
}

// SetStatus is an observability snapshot of one domain set.
type SetStatus struct {
	Domains     []string
	NotAfter    time.Time
	LastAttempt time.Time
	LastError   string
	Renewals    int
}

// Scheduler keeps every configured domain set's certificate renewed ahead of
// expiry and publishes replacements into the resolver. A failed attempt never
// disturbs the currently published certificate.
type Scheduler struct {
	cfg      Config
	issuer   Issuer
	resolver *certstore.Resolver
	store    *certstore.Store
	logger   *slog.Logger

	mu      sync.Mutex
	sets    []*domainSet
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Scheduler during initialization.
type Option func(*Scheduler)

// WithLogger sets the logger for renewal activity.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithStore enables loading cached certificates at startup before falling
// back to a fresh issuance.
func WithStore(store *certstore.Store) Option {
	return func(s *Scheduler) {
		s.store = store
	}
}

// New creates a renewal scheduler.
func New(cfg Config, issuer Issuer, resolver *certstore.Resolver, opts ...Option) (*Scheduler, error) {
	if issuer == nil {
		return nil, ErrIssuerRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 30 * 24 * time.Hour
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Minute
	}
	if cfg.MaxRetryInterval < cfg.RetryInterval {
		cfg.MaxRetryInterval = cfg.RetryInterval
	}
	if cfg.RateLimitInterval <= 0 {
		cfg.RateLimitInterval = 24 * time.Hour
	}

	s := &Scheduler{
		cfg:      cfg,
		issuer:   issuer,
		resolver: resolver,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// AddDomainSet registers a domain set for management. Must be called before
// Start.
func (s *Scheduler) AddDomainSet(domains ...string) error {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	if len(normalized) == 0 {
		return ErrNoDomains
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.sets = append(s.sets, &domainSet{domains: normalized})
	return nil
}

// EnsureInitial makes every domain set serve a usable certificate before any
// TLS listener starts accepting: cached certificates are loaded from the
// store when still valid, otherwise a synchronous issuance runs. Any set left
// without a certificate fails the whole call (fail-fast).
func (s *Scheduler) EnsureInitial(ctx context.Context) error {
	s.mu.Lock()
	sets := s.sets
	s.mu.Unlock()

	for _, set := range sets {
		if err := s.ensureInitialSet(ctx, set); err != nil {
			return fmt.Errorf("initial certificate for %s: %w", strings.Join(set.domains, ","), err)
		}
	}
	return nil
}

func (s *Scheduler) ensureInitialSet(ctx context.Context, set *domainSet) error {
	if s.store != nil {
		if ck, err := s.store.LoadCertificate(set.domains); err == nil && ck.ValidAt(time.Now()) {
			if err := s.publish(set, ck); err == nil {
				s.logger.InfoContext(ctx, "loaded cached certificate",
					"domains", strings.Join(set.domains, ","),
					"not_after", ck.NotAfter())
				return nil
			}
		}
	}

	return s.renew(ctx, set)
}

// Start launches one background loop per domain set. Stop tears them down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if len(s.sets) == 0 {
		return ErrNoDomains
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, set := range s.sets {
		s.wg.Add(1)
		go func(set *domainSet) {
			defer s.wg.Done()
			s.runSet(ctx, set)
		}(set)
	}

	return nil
}

// Stop cancels the background loops and waits for them to drain. Any
// half-completed order is abandoned; nothing partial is ever published.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// RenewNow forces an immediate renewal attempt for the given domain set,
// serialized against the background loop for the same set.
func (s *Scheduler) RenewNow(ctx context.Context, domains ...string) error {
	set := s.findSet(domains)
	if set == nil {
		return ErrUnknownDomainSet
	}
	return s.renew(ctx, set)
}

// Status reports a snapshot of every managed domain set.
func (s *Scheduler) Status() []SetStatus {
	s.mu.Lock()
	sets := s.sets
	s.mu.Unlock()

	out := make([]SetStatus, 0, len(sets))
	for _, set := range sets {
		set.mu.Lock()
		st := SetStatus{
			Domains:     set.domains,
			LastAttempt: set.lastAttempt,
			Renewals:    set.renewals,
		}
		if set.lastError != nil {
			st.LastError = set.lastError.Error()
		}
		set.mu.Unlock()

		if ck, err := s.resolver.Current(set.domains[0]); err == nil {
			st.NotAfter = ck.NotAfter()
		}
		out = append(out, st)
	}
	return out
}

func (s *Scheduler) runSet(ctx context.Context, set *domainSet) {
	log := s.logger.With("domains", strings.Join(set.domains, ","))
	failures := 0

	for {
		wait := s.cfg.CheckInterval

		if s.due(set) {
			err := s.renew(ctx, set)
			switch {
			case err == nil:
				failures = 0
			case ctx.Err() != nil:
				return
			default:
				failures++
				wait = s.retryDelay(failures, err)
				log.Error("renewal attempt failed",
					"error", err,
					"consecutive_failures", failures,
					"next_attempt_in", wait)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// due reports whether the set's published certificate is missing, expired, or
// inside the renewal threshold.
func (s *Scheduler) due(set *domainSet) bool {
	ck, err := s.resolver.Current(set.domains[0])
	if err != nil {
		return true
	}
	return ck.RemainingValidity(time.Now()) < s.cfg.Threshold
}

// renew runs one issuance attempt and publishes the result. On failure the
// previously published certificate stays in service untouched.
func (s *Scheduler) renew(ctx context.Context, set *domainSet) error {
	set.inFlight.Lock()
	defer set.inFlight.Unlock()

	set.mu.Lock()
	set.lastAttempt = time.Now()
	set.mu.Unlock()

	ck, err := s.issuer.Obtain(ctx, set.domains)
	if err == nil {
		err = s.publish(set, ck)
	}

	set.mu.Lock()
	set.lastError = err
	if err == nil {
		set.renewals++
	}
	set.mu.Unlock()

	if err != nil {
		return err
	}

	s.logger.Info("certificate renewed",
		"domains", strings.Join(set.domains, ","),
		"not_after", ck.NotAfter())
	return nil
}

func (s *Scheduler) publish(set *domainSet, ck *certstore.CertifiedKey) error {
	for _, domain := range set.domains {
		if err := s.resolver.Publish(domain, ck); err != nil {
			return fmt.Errorf("publish %s: %w", domain, err)
		}
	}
	return nil
}

// retryDelay grows exponentially from RetryInterval up to MaxRetryInterval;
// rate-limit responses from the CA wait at least RateLimitInterval.
func (s *Scheduler) retryDelay(failures int, err error) time.Duration {
	d := s.cfg.RetryInterval
	for i := 1; i < failures && d < s.cfg.MaxRetryInterval; i++ {
		d *= 2
	}
	if d > s.cfg.MaxRetryInterval {
		d = s.cfg.MaxRetryInterval
	}
	if errors.Is(err, acmeclient.ErrRateLimited) && d < s.cfg.RateLimitInterval {
		d = s.cfg.RateLimitInterval
	}
	return d
}

func (s *Scheduler) findSet(domains []string) *domainSet {
	normalized := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		normalized[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, set := range s.sets {
		if len(set.domains) != len(normalized) {
			continue
		}
		match := true
		for _, d := range set.domains {
			if _, ok := normalized[d]; !ok {
				match = false
				break
			}
		}
		if match {
			return set
		}
	}
	return nil
}
