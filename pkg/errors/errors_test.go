package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypePredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", NewValidation("bad threshold"), IsValidation},
		{"validation formatted", NewValidationf("bad %s", "vector"), IsValidation},
		{"not found", NewNotFound("idea x"), IsNotFound},
		{"state", NewState("no selection"), IsState},
		{"internal", NewInternal("boom", stderrors.New("cause")), IsInternal},
		{"unavailable", NewUnavailable("store", nil), IsUnavailable},
		{"canceled", NewCanceled("client gone", context.Canceled), IsCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(fmt.Errorf("wrapped: %w", tt.err)), "predicates must see through fmt wrapping")
		})
	}

	assert.False(t, IsNotFound(NewValidation("x")))
	assert.False(t, IsValidation(stderrors.New("plain")))
	assert.False(t, IsState(nil))
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "context"))
	})

	t.Run("preserves app error type", func(t *testing.T) {
		err := Wrap(NewNotFound("idea 42 not found"), "focus idea")
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "focus idea: idea 42 not found")
	})

	t.Run("foreign errors become internal", func(t *testing.T) {
		cause := stderrors.New("socket closed")
		err := Wrap(cause, "load ideas")
		assert.True(t, IsInternal(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("context errors keep their meaning", func(t *testing.T) {
		canceled := Wrap(context.Canceled, "load ideas")
		assert.True(t, IsCanceled(canceled))
		assert.ErrorIs(t, canceled, context.Canceled)

		expired := Wrap(fmt.Errorf("read: %w", context.DeadlineExceeded), "load ideas")
		assert.True(t, IsUnavailable(expired))
	})
}

func TestFromContext(t *testing.T) {
	assert.True(t, IsCanceled(FromContext(context.Canceled, "gone")))
	assert.True(t, IsUnavailable(FromContext(context.DeadlineExceeded, "slow")))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeState, TypeOf(NewState("x")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("x")))
}
