package core

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySupplier        = errors.New("empty supplier name")
	ErrEmptyItem            = errors.New("empty item description")
	ErrNoItems              = errors.New("at least one line with an item description is required")
	ErrUnknownInvoice       = errors.New("invoice does not exist")
	ErrInvalidUnit          = errors.New("invalid unit of measure")
	ErrNoAllocationLines    = errors.New("no lines to allocate the discount to")
	ErrZeroAllocationWeight = errors.New("lines have no value to allocate the discount against")
	ErrUnknownDerivedField  = errors.New("unknown derived field")
)

// ValidationError is a user-facing validation failure. The operation that
// returned it did not mutate anything.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid wraps err as a ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
