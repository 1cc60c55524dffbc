package services

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped to HTTP status codes by the handlers.
var (
	ErrValidationFailed = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
)

// InsufficientSampleError aborts an analysis run when too few eligible
// students remain. Downstream statistics would be meaningless, so there is no
// partial result.
type InsufficientSampleError struct {
	Required int
	Actual   int
}

func (e *InsufficientSampleError) Error() string {
	return fmt.Sprintf("insufficient sample size: need at least %d eligible students, got %d", e.Required, e.Actual)
}

// IsInsufficientSampleError reports whether err is a sample-size failure.
func IsInsufficientSampleError(err error) bool {
	var target *InsufficientSampleError
	return errors.As(err, &target)
}

// ValidationError carries the offending field and value.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a field-level validation error
func NewValidationError(field, message string, value interface{}) error {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// PermissionError is returned when a caller lacks the required role.
type PermissionError struct {
	UserID   string
	Resource string
	Action   string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s: %s", e.UserID, e.Action, e.Resource, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

// NewPermissionError creates a permission error
func NewPermissionError(userID, resource, action, reason string) error {
	return &PermissionError{
		UserID:   userID,
		Resource: resource,
		Action:   action,
		Reason:   reason,
	}
}
