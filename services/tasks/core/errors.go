package core

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDependency          = errors.New("dependency failure")
	ErrRecipientUnresolved = errors.New("recipient unresolved")
)

// Not found
var (
	ErrTaskNotFound     = fmt.Errorf("task %w", ErrNotFound)
	ErrReminderNotFound = fmt.Errorf("reminder %w", ErrNotFound)
)

// Invalid input
var (
	ErrInvalidTitle    = fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	ErrInvalidDuration = fmt.Errorf("%w: duration", ErrInvalidInput)
	ErrInvalidDeadline = fmt.Errorf("%w: deadline", ErrInvalidInput)
	ErrInvalidStatus   = fmt.Errorf("%w: status", ErrInvalidInput)
	ErrInvalidSchedule = fmt.Errorf("%w: schedule", ErrInvalidInput)
	ErrInvalidContact  = fmt.Errorf("%w: contact address", ErrInvalidInput)
)

// ErrClaimLost is returned by the store when a reminder is no longer held by
// the claim token presented.
var ErrClaimLost = errors.New("reminder claim lost")

// FieldError names the input field that failed validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErr(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

// dependency converts an unexpected store or sink error into ErrDependency,
// leaving the domain kinds untouched.
func dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrDependency),
		errors.Is(err, ErrRecipientUnresolved):
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrDependency, err)
}
