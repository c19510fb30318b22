package renewal

import "errors"

var (
	// ErrIssuerRequired is returned when no certificate issuer is provided.
	ErrIssuerRequired = errors.New("certificate issuer is required")

	// ErrResolverRequired is returned when no certificate resolver is provided.
	ErrResolverRequired = errors.New("certificate resolver is required")

	// ErrNoDomains is returned when the scheduler has no domain sets to manage.
	ErrNoDomains = errors.New("at least one domain is required")

	// ErrAlreadyRunning is returned when Start or AddDomainSet is called on a
	// running scheduler.
	ErrAlreadyRunning = errors.New("renewal scheduler is already running")

	// ErrUnknownDomainSet is returned when a manual renewal targets a domain
	// set the scheduler does not manage.
	ErrUnknownDomainSet = errors.New("unknown domain set")
)
