package invoice

import (
	"errors"
	"fmt"
)

var (
	// ErrNilOrder is returned when Build is called without an order.
	ErrNilOrder = errors.New("order is required")

	// ErrNoCustomerResolver is returned when the builder has no way to resolve customer numbers.
	ErrNoCustomerResolver = errors.New("customer resolver is required")
)

// ValidationError describes a defect in an order that does not stop the invoice from
// being built. Defects are written to the activity log.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
