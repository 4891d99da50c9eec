package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("register: %w", &ValidationError{Fields: map[string]string{
		"phone": "must contain 7 to 15 digits",
		"dni":   "must contain 7 or 8 digits",
	}})

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrSlotConflict))
	assert.Equal(t, "register: validation failed: dni: must contain 7 or 8 digits; phone: must contain 7 to 15 digits", err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Fields, 2)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("cancel: %w", ErrBookingNotFound)))
	assert.True(t, IsNotFound(ErrFieldNotFound))
	assert.False(t, IsNotFound(ErrInvalidState))
}
