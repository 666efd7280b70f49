package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError(t *testing.T) {
	t.Run("message without cause", func(t *testing.T) {
		err := NewDomainError(ErrorTypeValidation, "bad input", nil)
		assert.Equal(t, "validation: bad input", err.Error())
	})

	t.Run("message with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewDomainError(ErrorTypeUpstream, "fetching run events", cause)
		assert.Contains(t, err.Error(), "fetching run events")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("unwraps to the cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := WrapUpstream("fetching run events", cause)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("errors.Is matches on type", func(t *testing.T) {
		err := NewDomainError(ErrorTypeNotFound, "no events found for correlation id", nil)
		assert.ErrorIs(t, err, ErrRunNotFound)
		assert.NotErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("survives wrapping with fmt.Errorf", func(t *testing.T) {
		err := fmt.Errorf("building report: %w", ErrRunNotFound)
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("WithDetail accumulates context", func(t *testing.T) {
		err := NewDomainError(ErrorTypeValidation, "unknown checkpoint stage", nil).
			WithDetail("checkpoint", "TELEPORTED").
			WithDetail("source_system", "MAINFRAME_GL")

		details := GetErrorDetails(err)
		require.NotNil(t, details)
		assert.Equal(t, "TELEPORTED", details["checkpoint"])
		assert.Equal(t, "MAINFRAME_GL", details["source_system"])
	})
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", ErrRunNotFound, IsNotFoundError},
		{"validation", ErrInvalidPagination, IsValidationError},
		{"upstream", ErrEventStoreUnavailable, IsUpstreamError},
		{"inconsistent data", ErrMalformedEvent, IsInconsistentDataError},
		{"internal", ErrInternal, IsInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(errors.New("plain error")))
			assert.False(t, tt.check(nil))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeUpstream, GetErrorType(ErrEventStoreUnavailable))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain error")))
	assert.Equal(t, ErrorType(""), GetErrorType(nil))
}
