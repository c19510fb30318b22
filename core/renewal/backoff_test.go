package renewal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moatkit/moat/core/acmeclient"
	"github.com/moatkit/moat/core/certstore"
	"github.com/moatkit/moat/core/keymaterial"
)

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Threshold:         30 * 24 * time.Hour,
		CheckInterval:     time.Hour,
		RetryInterval:     time.Minute,
		MaxRetryInterval:  8 * time.Minute,
		RateLimitInterval: 24 * time.Hour,
	}
	s, err := New(cfg, &nopIssuer{}, certstore.NewResolver())
	require.NoError(t, err)

	failure := errors.New("boom")

	assert.Equal(t, time.Minute, s.retryDelay(1, failure))
	assert.Equal(t, 2*time.Minute, s.retryDelay(2, failure))
	assert.Equal(t, 4*time.Minute, s.retryDelay(3, failure))
	assert.Equal(t, 8*time.Minute, s.retryDelay(4, failure))

	// Capped at MaxRetryInterval from there on.
	assert.Equal(t, 8*time.Minute, s.retryDelay(10, failure))

	// Rate limiting floors the wait regardless of failure count.
	assert.Equal(t, 24*time.Hour, s.retryDelay(1, acmeclient.ErrRateLimited))
}

func TestDue(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig() // 30-day threshold
	resolver := certstore.NewResolver()
	s, err := New(cfg, &nopIssuer{}, resolver)
	require.NoError(t, err)

	set := &domainSet{domains: []string{"example.com"}}

	// Nothing published yet.
	assert.True(t, s.due(set))

	publish := func(validity time.Duration) {
		certPEM, keyPEM, err := keymaterial.SelfSigned(set.domains, certcrypto.EC256, validity)
		require.NoError(t, err)
		ck, err := certstore.NewCertifiedKey(certPEM, keyPEM)
		require.NoError(t, err)
		require.NoError(t, resolver.Publish("example.com", ck))
	}

	// 25 days remaining is inside the 30-day threshold.
	publish(25 * 24 * time.Hour)
	assert.True(t, s.due(set))

	// 60 days remaining is not.
	publish(60 * 24 * time.Hour)
	assert.False(t, s.due(set))
}

type nopIssuer struct{}

func (nopIssuer) Obtain(ctx context.Context, domains []string) (*certstore.CertifiedKey, error) {
	return nil, errors.New("not implemented")
}
