package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ingestRequest struct {
	SourceSystem string `validate:"required"`
	Checkpoint   string `validate:"required"`
	Status       string `validate:"required,oneof=SUCCESS FAILURE WARNING"`
	Size         int    `validate:"gte=0"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		s := ingestRequest{
			SourceSystem: "MAINFRAME_GL",
			Checkpoint:   "RHEL_LANDING",
			Status:       "SUCCESS",
		}

		err := ValidateStruct(&s)
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		s := ingestRequest{
			Checkpoint: "RHEL_LANDING",
			Status:     "SUCCESS",
		}

		err := ValidateStruct(&s)
		assert.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "SourceSystem")
		assert.Contains(t, fields["SourceSystem"], "required")
	})

	t.Run("value outside oneof set", func(t *testing.T) {
		s := ingestRequest{
			SourceSystem: "MAINFRAME_GL",
			Checkpoint:   "RHEL_LANDING",
			Status:       "MAYBE",
		}

		err := ValidateStruct(&s)
		assert.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "Status")
		assert.Contains(t, fields["Status"], "must be one of")
	})

	t.Run("multiple failures report every field", func(t *testing.T) {
		s := ingestRequest{Size: -1}

		err := ValidateStruct(&s)
		assert.Error(t, err)

		fields := GetValidationFields(err)
		assert.Len(t, fields, 4)
	})
}

func TestIsValidationError(t *testing.T) {
	assert.False(t, IsValidationError(nil))
	assert.False(t, IsValidationError(errors.New("plain error")))
	assert.True(t, IsValidationError(&ValidationError{Message: "validation failed"}))
}

func TestGetValidationFields(t *testing.T) {
	t.Run("non validation error returns nil", func(t *testing.T) {
		assert.Nil(t, GetValidationFields(errors.New("plain error")))
	})

	t.Run("returns wrapped fields", func(t *testing.T) {
		err := &ValidationError{
			Message: "validation failed",
			Fields:  map[string]string{"Checkpoint": "Checkpoint is required"},
		}
		fields := GetValidationFields(err)
		assert.Equal(t, "Checkpoint is required", fields["Checkpoint"])
	})
}
