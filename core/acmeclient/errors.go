package acmeclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/acme"
)

var (
	// ErrAccountRegistrationFailed is returned when the ACME account cannot be
	// created or recovered.
	ErrAccountRegistrationFailed = errors.New("acme account registration failed")

	// ErrOrderRejected is returned when the CA refuses the order submission.
	ErrOrderRejected = errors.New("acme order rejected")

	// ErrChallengeTimeout is returned when authorization polling exhausts its
	// attempt budget without the CA settling the challenge.
	ErrChallengeTimeout = errors.New("acme challenge polling timed out")

	// ErrChallengeInvalid is returned when the CA marks an authorization or
	// challenge invalid.
	ErrChallengeInvalid = errors.New("acme challenge invalid")

	// ErrFinalizeFailed is returned when the CSR submission fails.
	ErrFinalizeFailed = errors.New("acme order finalization failed")

	// ErrDownloadFailed is returned when the issued certificate cannot be
	// retrieved or parsed.
	ErrDownloadFailed = errors.New("acme certificate download failed")

	// ErrRateLimited is returned when the CA throttles the account; callers
	// should back off substantially longer than for other failures.
	ErrRateLimited = errors.New("acme rate limited")

	// ErrNoSupportedChallenge is returned when an authorization offers no
	// challenge type this client can fulfill.
	ErrNoSupportedChallenge = errors.New("authorization offers no tls-alpn-01 challenge")

	// ErrContactRequired is returned when no contact address is configured.
	ErrContactRequired = errors.New("contact email is required")

	// ErrDirectoryURLRequired is returned when no directory URL is configured.
	ErrDirectoryURLRequired = errors.New("acme directory URL is required")

	// ErrSolverRequired is returned when no challenge solver is provided.
	ErrSolverRequired = errors.New("challenge solver is required")

	// ErrNoDomains is returned when Obtain is called with an empty domain set.
	ErrNoDomains = errors.New("at least one domain is required")
)

// classify wraps err with the taxonomy sentinel callers branch on, promoting
// CA throttling responses to ErrRateLimited so the renewal scheduler can
// apply its longer backoff.
func classify(err, fallback error) error {
	if err == nil {
		return nil
	}

	// Cancellation is not a CA failure; let it propagate untouched so the
	// scheduler can tell shutdown apart from a failed attempt.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var ae *acme.Error
	if errors.As(err, &ae) {
		if ae.StatusCode == http.StatusTooManyRequests || strings.HasSuffix(ae.ProblemType, ":rateLimited") {
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
	}

	return fmt.Errorf("%w: %w", fallback, err)
}
