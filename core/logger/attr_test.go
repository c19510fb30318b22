package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moatkit/moat/core/logger"
)

func TestNilSafety(t *testing.T) {
	t.Parallel()

	// Zero inputs produce empty attrs that slog drops silently.
	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	assert.Equal(t, slog.Attr{}, logger.Errors(nil, nil))
	assert.Equal(t, slog.Attr{}, logger.Domain(""))
	assert.Equal(t, slog.Attr{}, logger.Domains(nil))
	assert.Equal(t, slog.Attr{}, logger.Listener(""))
	assert.Equal(t, slog.Attr{}, logger.Remote(""))
	assert.Equal(t, slog.Attr{}, logger.ConnID(""))
	assert.Equal(t, slog.Attr{}, logger.OrderURI(""))
}

func TestErrorAttr(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	attr := logger.Error(err)
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
}

func TestErrorsAttr(t *testing.T) {
	t.Parallel()

	attr := logger.Errors(errors.New("first"), nil, errors.New("third"))
	assert.Equal(t, "errors", attr.Key)

	group := attr.Value.Group()
	assert.Len(t, group, 2)
	assert.Equal(t, "0", group[0].Key)
	assert.Equal(t, "2", group[1].Key)
}

func TestDomainsAttr(t *testing.T) {
	t.Parallel()

	attr := logger.Domains([]string{"example.com", "www.example.com"})
	assert.Equal(t, "domains", attr.Key)
	assert.Equal(t, "example.com,www.example.com", attr.Value.String())
}

func TestDurationAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "duration", logger.Duration(time.Second).Key)
	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())

	elapsed := logger.Elapsed(time.Now().Add(-time.Minute))
	assert.Equal(t, "elapsed", elapsed.Key)
	assert.GreaterOrEqual(t, elapsed.Value.Duration(), time.Minute)
}

func TestIdentityAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "domain", logger.Domain("example.com").Key)
	assert.Equal(t, "listener", logger.Listener(":443").Key)
	assert.Equal(t, "remote", logger.Remote("10.0.0.1:1234").Key)
	assert.Equal(t, "conn_id", logger.ConnID("abc").Key)
	assert.Equal(t, "component", logger.Component("renewal").Key)
	assert.Equal(t, "retry_count", logger.RetryCount(3).Key)
	assert.Equal(t, "not_after", logger.NotAfter(time.Now()).Key)
}
