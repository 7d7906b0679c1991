package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrNameConflict = errors.New("name already in use")
	ErrInUse        = errors.New("still referenced")
	ErrEmailTaken   = errors.New("email already registered")
	ErrForbidden    = errors.New("forbidden")
)

// ErrInvalid marks bad input to the catalog, user and report services.
var ErrInvalid = errors.New("invalid input")

type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Reason }

func (e *FieldError) Is(target error) bool { return target == ErrInvalid }
