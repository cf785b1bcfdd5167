package errs

import (
	"errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrCopyUnavailable    = errors.New("copy is already borrowed")
	ErrInvalidReference   = errors.New("unknown author or category")
	ErrValidation         = errors.New("validation failed")
)

// StoreError is a backing store failure whose Error text is meant for operators.
type StoreError struct {
	Diagnostic string
	Err        error
}

func (e *StoreError) Error() string {
	return e.Diagnostic
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

const (
	DiagTableMissing    = "required table is missing: run the database migrations"
	DiagDatabaseMissing = "database not found: check DB_NAME"
	DiagCannotConnect   = "cannot connect to the database: check the service and credentials"
)

// ValidationError carries a client-facing message and matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(msg string) error {
	return &ValidationError{Msg: msg}
}
