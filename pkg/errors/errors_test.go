package errors_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/seekmed/medharvest/pkg/errors"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestConfigError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.ConfigError{
			Component: "category",
			Message:   "category Q12136 excludes itself",
		}
		assert.Equal(t, "configuration error in category: category Q12136 excludes itself", err.Error())
		assert.True(t, pkgerrors.IsConfig(err))
	})

	t.Run("never retryable", func(t *testing.T) {
		err := pkgerrors.NewConfigError("identifier", "invalid QID format", nil)
		assert.False(t, pkgerrors.Retryable(err))
	})

	t.Run("unwrap", func(t *testing.T) {
		base := errors.New("yaml: line 3: mapping values are not allowed")
		err := pkgerrors.NewConfigError("catalog", "unparseable catalog", base)
		assert.Equal(t, base, errors.Unwrap(err))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Field:   "qid",
			Message: "malformed identifier",
		}
		assert.Equal(t, "validation failed for field qid: malformed identifier", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("constructor", func(t *testing.T) {
		err := pkgerrors.NewValidationError("entity_uri", "http://example.com/X1", "not a Wikidata entity URI")
		assert.Contains(t, err.Error(), "entity_uri")
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("never retryable", func(t *testing.T) {
		err := pkgerrors.NewValidationError("qid", "X99", "malformed identifier")
		assert.False(t, pkgerrors.Retryable(err))
	})
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{Resource: "concept", ID: "Q12136"}
		assert.Equal(t, "concept with ID Q12136 not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("run", "abc")
		wrapped := errors.Join(errors.New("lookup failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestAPIError(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		err := &pkgerrors.APIError{
			Endpoint:   "https://query.wikidata.org/sparql",
			StatusCode: 429,
			Message:    "too many requests",
		}
		assert.Contains(t, err.Error(), "429")
		assert.True(t, errors.Is(err, pkgerrors.ErrRateLimited))
		assert.False(t, errors.Is(err, pkgerrors.ErrOverloaded))
		assert.True(t, pkgerrors.Retryable(err))
	})

	t.Run("gateway statuses map to overloaded", func(t *testing.T) {
		for _, status := range []int{502, 503, 504} {
			err := pkgerrors.NewAPIError("sparql", status, "upstream timeout")
			assert.True(t, pkgerrors.IsOverloaded(err), "status %d", status)
			assert.True(t, pkgerrors.Retryable(err), "status %d", status)
		}
	})

	t.Run("plain 500 is retryable but unclassified", func(t *testing.T) {
		err := pkgerrors.NewAPIError("sparql", 500, "internal error")
		assert.False(t, pkgerrors.IsRateLimited(err))
		assert.False(t, pkgerrors.IsOverloaded(err))
		assert.True(t, pkgerrors.Retryable(err))
	})

	t.Run("client errors are not retryable", func(t *testing.T) {
		err := pkgerrors.NewAPIError("sparql", 400, "malformed query")
		assert.False(t, pkgerrors.Retryable(err))
	})

	t.Run("retry-after hint", func(t *testing.T) {
		err := &pkgerrors.APIError{StatusCode: 429, RetryAfter: 30 * time.Second}
		assert.Equal(t, 30*time.Second, err.RetryAfter)
	})

	t.Run("unwrap", func(t *testing.T) {
		base := errors.New("connection reset")
		err := &pkgerrors.APIError{Endpoint: "action", Message: "request failed", Err: base}
		assert.Equal(t, base, err.Unwrap())
	})
}

func TestNetworkError(t *testing.T) {
	base := errors.New("dial tcp: connection refused")
	err := pkgerrors.WrapNetwork("https://query.wikidata.org/sparql", base)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNetworkTransient(err))
	assert.True(t, pkgerrors.Retryable(err))
	assert.Equal(t, base, errors.Unwrap(err))

	assert.NoError(t, pkgerrors.WrapNetwork("x", nil))
}

func TestConflictError(t *testing.T) {
	err := pkgerrors.NewConflictError("concept", "Q12136")
	assert.Equal(t, "concurrent write detected on concept Q12136", err.Error())
	assert.True(t, pkgerrors.IsStorageConflict(err))
	// Conflicts are handled by the reconcile engine, not the transport
	// retry loop.
	assert.False(t, pkgerrors.Retryable(err))
}

func TestRetriesExhausted(t *testing.T) {
	base := pkgerrors.NewAPIError("sparql", 504, "gateway timeout")
	err := pkgerrors.ExhaustRetries(base, 3)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsRetriesExhausted(err))
	// The original classification stays visible through the wrap.
	assert.True(t, pkgerrors.IsOverloaded(err))
	assert.Contains(t, err.Error(), "3 attempts")

	assert.NoError(t, pkgerrors.ExhaustRetries(nil, 3))
}

func TestWrapHelpers(t *testing.T) {
	t.Run("io", func(t *testing.T) {
		base := errors.New("permission denied")
		err := pkgerrors.WrapIO("read", "/etc/medharvest/config.yaml", base)
		assert.Contains(t, err.Error(), "read")
		assert.Contains(t, err.Error(), "config.yaml")
		assert.Equal(t, base, errors.Unwrap(err))
	})

	t.Run("parse is retryable", func(t *testing.T) {
		base := errors.New("unexpected EOF")
		err := pkgerrors.WrapParse("json", "sparql response", base)
		assert.Contains(t, err.Error(), "json")
		assert.True(t, pkgerrors.Retryable(err))
	})

	t.Run("resource", func(t *testing.T) {
		base := errors.New("boom")
		err := pkgerrors.WrapResource("update", "concept", "Q42", base)
		assert.Contains(t, err.Error(), "failed to update concept Q42")
	})

	t.Run("nil passthrough", func(t *testing.T) {
		assert.NoError(t, pkgerrors.WrapIO("read", "x", nil))
		assert.NoError(t, pkgerrors.WrapParse("json", "x", nil))
		assert.NoError(t, pkgerrors.WrapResource("op", "res", "id", nil))
	})
}

func TestHarvestError(t *testing.T) {
	base := pkgerrors.ErrRetriesExhausted
	err := pkgerrors.NewHarvestError("disease", []string{"Q1", "Q2"}, base)
	assert.Contains(t, err.Error(), "disease")
	assert.Contains(t, err.Error(), "Q1")
	assert.True(t, errors.Is(err, pkgerrors.ErrRetriesExhausted))
}
