package acmeclient

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"golang.org/x/crypto/acme"

	"github.com/moatkit/moat/core/certstore"
	"github.com/moatkit/moat/core/keymaterial"
)

// DefaultDirectoryURL points at the Let's Encrypt production directory.
const DefaultDirectoryURL = "https://acme-v02.api.letsencrypt.org/directory"

// Config holds ACME client configuration with environment variable support.
type Config struct {
	// DirectoryURL is the ACME directory endpoint.
	DirectoryURL string `env:"ACME_DIRECTORY_URL" envDefault:"https://acme-v02.api.letsencrypt.org/directory"`

	// Contact is the account contact email.
	Contact string `env:"ACME_CONTACT"`

	// HTTPTimeout bounds every directory/order/challenge HTTP call.
	HTTPTimeout time.Duration `env:"ACME_HTTP_TIMEOUT" envDefault:"30s"`

	// PollInterval is the initial authorization polling interval.
	PollInterval time.Duration `env:"ACME_POLL_INTERVAL" envDefault:"1s"`

	// MaxPollInterval caps the exponential polling backoff.
	MaxPollInterval time.Duration `env:"ACME_MAX_POLL_INTERVAL" envDefault:"30s"`

	// MaxPollAttempts bounds polling before the attempt fails with
	// ErrChallengeTimeout.
	MaxPollAttempts int `env:"ACME_MAX_POLL_ATTEMPTS" envDefault:"12"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DirectoryURL:    DefaultDirectoryURL,
		HTTPTimeout:     30 * time.Second,
		PollInterval:    time.Second,
		MaxPollInterval: 30 * time.Second,
		MaxPollAttempts: 12,
	}
}

// Client drives the ACME issuance state machine against one directory.
// Safe for concurrent use; the caller (normally the renewal scheduler) is
// responsible for not running two orders for the same domain set at once.
type Client struct {
	directoryURL    string
	contact         string
	httpTimeout     time.Duration
	pollInterval    time.Duration
	maxPollInterval time.Duration
	maxPollAttempts int

	solver         ChallengeSolver
	store          *certstore.Store
	logger         *slog.Logger
	accountKeyType certcrypto.KeyType
	certKeyType    certcrypto.KeyType
	newDirectory   directoryFactory

	mu      sync.Mutex
	dir     directoryClient
	account *acme.Account
	key     crypto.Signer
}

// Option configures a Client during initialization.
type Option func(*Client)

// WithLogger sets the logger for issuance progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithStore enables persistence of the account registration and issued
// certificates for restart continuity.
func WithStore(store *certstore.Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithCertificateKeyType sets the key type generated for issued certificates.
func WithCertificateKeyType(kt certcrypto.KeyType) Option {
	return func(c *Client) {
		c.certKeyType = kt
	}
}

// WithAccountKeyType sets the key type generated for new ACME accounts.
func WithAccountKeyType(kt certcrypto.KeyType) Option {
	return func(c *Client) {
		c.accountKeyType = kt
	}
}

// withDirectoryFactory swaps the directory client constructor. Test hook.
func withDirectoryFactory(f directoryFactory) Option {
	return func(c *Client) {
		c.newDirectory = f
	}
}

// New creates an ACME client. The solver fulfills challenges through the
// listener stack; without one no authorization can ever validate.
func New(cfg Config, solver ChallengeSolver, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.DirectoryURL) == "" {
		return nil, ErrDirectoryURLRequired
	}
	if strings.TrimSpace(cfg.Contact) == "" {
		return nil, ErrContactRequired
	}
	if solver == nil {
		return nil, ErrSolverRequired
	}

	c := &Client{
		directoryURL:    strings.TrimSpace(cfg.DirectoryURL),
		contact:         strings.TrimSpace(cfg.Contact),
		httpTimeout:     cfg.HTTPTimeout,
		pollInterval:    cfg.PollInterval,
		maxPollInterval: cfg.MaxPollInterval,
		maxPollAttempts: cfg.MaxPollAttempts,
		solver:          solver,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		accountKeyType:  certcrypto.EC256,
		certKeyType:     certcrypto.EC256,
		newDirectory:    defaultDirectoryFactory,
	}

	if c.httpTimeout <= 0 {
		c.httpTimeout = 30 * time.Second
	}
	if c.pollInterval <= 0 {
		c.pollInterval = time.Second
	}
	if c.maxPollInterval < c.pollInterval {
		c.maxPollInterval = 30 * time.Second
	}
	if c.maxPollAttempts <= 0 {
		c.maxPollAttempts = 12
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Obtain runs one full issuance attempt for the domain set and returns the
// resulting certificate. No partial certificate is ever returned: any
// invalid order, authorization, or challenge fails the whole attempt.
func (c *Client) Obtain(ctx context.Context, domains []string) (*certstore.CertifiedKey, error) {
	domains = normalizeDomains(domains)
	if len(domains) == 0 {
		return nil, ErrNoDomains
	}

	log := c.logger.With("domains", strings.Join(domains, ","))
	log.InfoContext(ctx, "starting certificate issuance")

	at := newAttempt(domains)
	for !at.state.Terminal() {
		prev := at.state
		if err := c.advance(ctx, at); err != nil {
			at.fail(err)
		}
		log.DebugContext(ctx, "issuance state transition", "from", string(prev), "to", string(at.state))
	}

	if at.state == StateFailed {
		log.ErrorContext(ctx, "certificate issuance failed", "error", at.err)
		return nil, at.err
	}

	ck, err := certstore.NewCertifiedKey(at.chainPEM, at.keyPEM)
	if err != nil {
		return nil, classify(err, ErrDownloadFailed)
	}

	if c.store != nil {
		if err := c.store.SaveCertificate(domains, at.chainPEM, at.keyPEM); err != nil {
			// The certificate is good; a persistence failure only costs
			// restart continuity.
			log.WarnContext(ctx, "failed to persist issued certificate", "error", err)
		}
	}

	log.InfoContext(ctx, "certificate issued", "not_after", ck.NotAfter())
	return ck, nil
}

// advance performs exactly one state transition of the issuance machine.
func (c *Client) advance(ctx context.Context, at *attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch at.state {
	case StateNoAccount:
		if err := c.ensureAccount(ctx); err != nil {
			return classify(err, ErrAccountRegistrationFailed)
		}
		at.to(StateRegistered)

	case StateRegistered:
		order, err := c.dir.AuthorizeOrder(ctx, acme.DomainIDs(at.domains...))
		if err != nil {
			return classify(err, ErrOrderRejected)
		}
		at.order = order
		at.to(StateOrderCreated)

	case StateOrderCreated:
		if at.order.Status == acme.StatusReady {
			at.to(StateOrderReady)
			return nil
		}
		at.to(StateAuthorizing)

	case StateAuthorizing:
		for _, authzURL := range at.order.AuthzURLs {
			if err := c.fulfillAuthorization(ctx, authzURL); err != nil {
				return err
			}
		}
		order, err := c.waitOrderReady(ctx, at.order.URI)
		if err != nil {
			return err
		}
		at.order = order
		at.to(StateOrderReady)

	case StateOrderReady:
		at.to(StateFinalizing)

	case StateFinalizing:
		key, err := keymaterial.Generate(c.certKeyType)
		if err != nil {
			return classify(err, ErrFinalizeFailed)
		}
		csr, err := keymaterial.CreateCSR(key, at.domains)
		if err != nil {
			return classify(err, ErrFinalizeFailed)
		}
		der, _, err := c.dir.CreateOrderCert(ctx, at.order.FinalizeURL, csr, true)
		if err != nil {
			return classify(err, ErrFinalizeFailed)
		}
		keyPEM, err := keymaterial.EncodePrivateKeyPEM(key)
		if err != nil {
			return classify(err, ErrFinalizeFailed)
		}
		at.chainPEM = keymaterial.EncodeCertificateChainPEM(der)
		at.keyPEM = keyPEM
		at.to(StateOrderValid)

	case StateOrderValid:
		chain, err := keymaterial.ParseCertificateChain(at.chainPEM)
		if err != nil {
			return classify(err, ErrDownloadFailed)
		}
		if err := chain[0].VerifyHostname(at.domains[0]); err != nil {
			return classify(err, ErrDownloadFailed)
		}
		at.to(StateDownloaded)

	default:
		return fmt.Errorf("acmeclient: advance called in terminal state %s", at.state)
	}

	return nil
}

// ensureAccount loads or registers the ACME account, reusing one persisted
// registration per directory+contact combination across renewals.
func (c *Client) ensureAccount(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dir != nil && c.account != nil {
		return nil
	}

	var key crypto.Signer
	if c.store != nil {
		if rec, keyPEM, err := c.store.LoadAccount(c.directoryURL); err == nil && rec.Contact == c.contact {
			if parsed, perr := keymaterial.ParsePrivateKeyPEM(keyPEM); perr == nil {
				key = parsed
				c.logger.DebugContext(ctx, "reusing persisted acme account", "uri", rec.URI)
			}
		}
	}

	fresh := key == nil
	if fresh {
		generated, err := keymaterial.Generate(c.accountKeyType)
		if err != nil {
			return err
		}
		key = generated
	}

	dir := c.newDirectory(c.directoryURL, key, c.httpTimeout)

	account, err := dir.Register(ctx, &acme.Account{Contact: []string{"mailto:" + c.contact}}, acme.AcceptTOS)
	if errors.Is(err, acme.ErrAccountAlreadyExists) {
		account, err = dir.GetReg(ctx, "")
	}
	if err != nil {
		return err
	}

	if c.store != nil && fresh {
		keyPEM, err := keymaterial.EncodePrivateKeyPEM(key)
		if err != nil {
			return err
		}
		rec := certstore.AccountRecord{
			URI:          account.URI,
			Contact:      c.contact,
			DirectoryURL: c.directoryURL,
			TermsAgreed:  true,
			CreatedAt:    time.Now().UTC(),
		}
		if err := c.store.SaveAccount(rec, keyPEM); err != nil {
			c.logger.WarnContext(ctx, "failed to persist acme account", "error", err)
		}
	}

	c.dir = dir
	c.account = account
	c.key = key
	return nil
}

// fulfillAuthorization selects the tls-alpn-01 challenge for one identifier,
// presents the marker certificate, announces readiness, and polls until the
// CA settles the authorization.
func (c *Client) fulfillAuthorization(ctx context.Context, authzURL string) error {
	authz, err := c.dir.GetAuthorization(ctx, authzURL)
	if err != nil {
		return classify(err, ErrChallengeInvalid)
	}

	switch authz.Status {
	case acme.StatusValid:
		return nil
	case acme.StatusInvalid, acme.StatusExpired, acme.StatusDeactivated, acme.StatusRevoked:
		return fmt.Errorf("%w: authorization for %s is %s", ErrChallengeInvalid, authz.Identifier.Value, authz.Status)
	}

	domain := authz.Identifier.Value

	var chal *acme.Challenge
	for _, ch := range authz.Challenges {
		if ch.Type == "tls-alpn-01" {
			chal = ch
			break
		}
	}
	if chal == nil {
		return fmt.Errorf("%w: %s", ErrNoSupportedChallenge, domain)
	}

	cert, err := c.dir.TLSALPN01ChallengeCert(chal.Token, domain)
	if err != nil {
		return classify(err, ErrChallengeInvalid)
	}

	if err := c.solver.Present(ctx, domain, &cert); err != nil {
		return classify(err, ErrChallengeInvalid)
	}
	// The marker certificate must come down even when the attempt is
	// cancelled mid-validation.
	defer func() {
		if err := c.solver.CleanUp(context.WithoutCancel(ctx), domain); err != nil {
			c.logger.Warn("failed to clean up challenge certificate", "domain", domain, "error", err)
		}
	}()

	if _, err := c.dir.Accept(ctx, chal); err != nil {
		return classify(err, ErrChallengeInvalid)
	}

	return c.pollAuthorization(ctx, authzURL, domain)
}

func (c *Client) pollAuthorization(ctx context.Context, authzURL, domain string) error {
	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		if err := sleepCtx(ctx, c.pollDelay(attempt)); err != nil {
			return err
		}

		authz, err := c.dir.GetAuthorization(ctx, authzURL)
		if err != nil {
			return classify(err, ErrChallengeInvalid)
		}

		switch authz.Status {
		case acme.StatusValid:
			return nil
		case acme.StatusInvalid, acme.StatusExpired, acme.StatusDeactivated, acme.StatusRevoked:
			return fmt.Errorf("%w: authorization for %s is %s", ErrChallengeInvalid, domain, authz.Status)
		}
	}

	return fmt.Errorf("%w: authorization for %s", ErrChallengeTimeout, domain)
}

// waitOrderReady polls the order after all authorizations validate, with the
// same backoff discipline as authorization polling.
func (c *Client) waitOrderReady(ctx context.Context, orderURL string) (*acme.Order, error) {
	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		order, err := c.dir.GetOrder(ctx, orderURL)
		if err != nil {
			return nil, classify(err, ErrOrderRejected)
		}

		switch order.Status {
		case acme.StatusReady, acme.StatusValid:
			return order, nil
		case acme.StatusInvalid:
			return nil, fmt.Errorf("%w: order is invalid", ErrOrderRejected)
		}

		if err := sleepCtx(ctx, c.pollDelay(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: order never became ready", ErrChallengeTimeout)
}

// pollDelay returns the exponential backoff delay for the given attempt,
// capped at the configured maximum, with +-20% jitter.
func (c *Client) pollDelay(attempt int) time.Duration {
	d := c.pollInterval
	for i := 0; i < attempt && d < c.maxPollInterval; i++ {
		d *= 2
	}
	if d > c.maxPollInterval {
		d = c.maxPollInterval
	}

	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
