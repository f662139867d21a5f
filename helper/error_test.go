package helper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	t.Run("Wraps error with operation", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := NewError("open database", cause)

		require.NotNil(t, err)
		assert.Equal(t, "open database: connection refused", err.Error(), "Expected operation prefix in message")
		assert.ErrorIs(t, err, cause, "Expected wrapped error to be reachable via errors.Is")
	})

	t.Run("Preserves kind of wrapped error", func(t *testing.T) {
		inner := NewKindError("vectorize", KindPortTimeout, fmt.Errorf("deadline"))
		outer := NewError("retrieve", inner)

		assert.Equal(t, KindPortTimeout, outer.Kind, "Expected kind of inner error to survive wrapping")
		assert.Equal(t, KindPortTimeout, KindOf(outer))
	})

	t.Run("Unclassified error defaults to internal", func(t *testing.T) {
		err := NewError("something", errors.New("boom"))
		assert.Equal(t, KindInternal, err.Kind)
	})
}

func TestKindOf(t *testing.T) {
	t.Run("Extracts kind through layered wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer layer: %w", NewKindError("upsert", KindStorage, errors.New("down")))
		assert.Equal(t, KindStorage, KindOf(err))
	})

	t.Run("Context deadline maps to port timeout", func(t *testing.T) {
		assert.Equal(t, KindPortTimeout, KindOf(context.DeadlineExceeded))
		assert.Equal(t, KindPortTimeout, KindOf(fmt.Errorf("call: %w", context.Canceled)))
	})

	t.Run("Nil and plain errors are internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	})
}

func TestKindString(t *testing.T) {
	t.Run("Wire names are stable", func(t *testing.T) {
		assert.Equal(t, "invalid_input", KindInvalidInput.String())
		assert.Equal(t, "port_timeout", KindPortTimeout.String())
		assert.Equal(t, "port_unavailable", KindPortUnavailable.String())
		assert.Equal(t, "permanent_port_error", KindPermanentPort.String())
		assert.Equal(t, "storage_error", KindStorage.String())
		assert.Equal(t, "internal_error", KindInternal.String())
	})
}

func TestTransientAndPermanent(t *testing.T) {
	t.Run("Transient kinds are retried", func(t *testing.T) {
		assert.True(t, IsTransient(NewKindError("a", KindPortTimeout, errors.New("x"))))
		assert.True(t, IsTransient(NewKindError("a", KindPortUnavailable, errors.New("x"))))
		assert.True(t, IsTransient(NewKindError("a", KindStorage, errors.New("x"))))
		assert.True(t, IsTransient(errors.New("unclassified")), "Expected internal errors to be retryable")
	})

	t.Run("Permanent kinds are not retried", func(t *testing.T) {
		assert.True(t, IsPermanent(NewKindError("a", KindInvalidInput, errors.New("x"))))
		assert.True(t, IsPermanent(NewKindError("a", KindPermanentPort, errors.New("x"))))
		assert.False(t, IsPermanent(NewKindError("a", KindStorage, errors.New("x"))))
	})

	t.Run("Transient and permanent are disjoint", func(t *testing.T) {
		for _, kind := range []Kind{KindInternal, KindInvalidInput, KindPortTimeout, KindPortUnavailable, KindPermanentPort, KindStorage} {
			err := NewKindError("op", kind, errors.New("x"))
			assert.NotEqual(t, IsTransient(err), IsPermanent(err), "Expected kind %v to be either transient or permanent", kind)
		}
	})
}
