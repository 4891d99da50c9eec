package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotAuthenticated   = errors.New("user is not authenticated")
	ErrNotAuthorized      = errors.New("operation is forbidden for user")
	ErrFieldUnavailable   = errors.New("field is not available for booking")
	ErrSlotConflict       = errors.New("slot is already booked")
	ErrInvalidState       = errors.New("operation is not allowed in current booking state")
	ErrBackendUnreachable = errors.New("backend is unreachable")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidDate        = errors.New("date is in the past")

	ErrFieldNotFound   = errors.New("field not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrUserNotFound    = errors.New("user not found")

	ErrConfirmationRequired = errors.New("destructive action requires confirmation")
)

// ValidationError describes malformed input per field. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFieldNotFound) || errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrUserNotFound)
}
